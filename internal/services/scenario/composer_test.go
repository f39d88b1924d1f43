package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoEye/internal/domain/models"
)

var now = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func iso(t time.Time) *models.ISOTime {
	v := models.NewISOTime(t)
	return &v
}

func priced(p float64) models.Market {
	return models.Market{Price: &p, Source: "MT5", TickTimeUTC: iso(now)}
}

func trendDoc(direction string) *models.TrendDocument {
	return &models.TrendDocument{Symbol: "EURUSD", Trend: models.TrendBlock{Timeframe: "H1", Direction: direction}}
}

func newState(price float64, h1, m5 models.StateElements) *models.StateDocument {
	h1Block, m5Block := models.NewStateTimeframe(), models.NewStateTimeframe()
	h1Block.Elements, m5Block.Elements = h1, m5
	return &models.StateDocument{
		Symbol:     "EURUSD",
		Market:     priced(price),
		Timeframes: map[string]*models.StateTimeframe{"H1": h1Block, "M5": m5Block},
	}
}

func continuationState(price float64, extraH1 ...models.StateFVG) *models.StateDocument {
	h1 := models.NewStateElements()
	h1.FVG = append([]models.StateFVG{
		{ID: "g1", Direction: models.DirectionBullish, Status: models.StatusActive, FormationTimeUTC: iso(now.Add(-5 * time.Hour)), FVGLow: 1.0990, FVGHigh: 1.1010},
		{ID: "g2", Direction: models.DirectionBullish, Status: models.StatusActive, FormationTimeUTC: iso(now.Add(-10 * time.Hour)), FVGLow: 1.1050, FVGHigh: 1.1060},
	}, extraH1...)
	h1.Fractals = []models.StateFractal{
		{ID: "f1", FractalType: models.FractalHigh, ConfirmTimeUTC: iso(now.Add(-3 * time.Hour)), ExtremePrice: 1.1020},
	}
	m5 := models.NewStateElements()
	m5.SNR = []models.StateSNR{
		{ID: "s1", Role: models.RoleSupport, BreakType: models.BreakUpClose, Status: models.StatusActive, BreakTimeUTC: iso(now.Add(-time.Hour)), SNRLow: 1.0995, SNRHigh: 1.1000},
	}
	return newState(price, h1, m5)
}

func TestBuild_TrendContinuation(t *testing.T) {
	c := NewComposer(DefaultConfig())
	res := c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendBullish), nil, now)

	require.Len(t, res.Created, 1)
	s := res.Created[0]
	assert.Equal(t, models.ScenarioTrendContinuation, s.ScenarioType)
	assert.Equal(t, models.TradeLong, s.Direction)
	assert.Equal(t, models.ScenarioPending, s.Status)
	assert.Equal(t, "h1_fvg", s.HTFAnchor.Type)
	assert.Equal(t, "g1", s.HTFAnchor.ElementID)
	assert.Equal(t, "m5_snr", s.LTFConfirmation.Type)
	assert.Equal(t, "s1", s.LTFConfirmation.ElementID)
	assert.InDelta(t, 1.0990, s.SL.Price, 1e-12)
	assert.Equal(t, [2]float64{1.0995, 1.1000}, s.Entry.Zone)
	require.NotNil(t, s.TP)
	assert.Equal(t, "g2", s.TP.TargetElement.ID)
	assert.InDelta(t, 1.1050, s.TP.Price, 1e-12)
	assert.Equal(t, []string{"h1_fvg:g1", "m5_snr:s1"}, s.EvidenceIDs)
	assert.True(t, s.ExpiresAtUTC.Equal(now.Add(12*time.Hour)))
	assert.Equal(t, ScenarioID(&s), s.ScenarioID)
	assert.Len(t, s.ScenarioID, 40)
	assert.Len(t, res.Document.Active, 1)
}

func TestBuild_FractalTargetWhenZonesNotPreferred(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TPPreferZones = false
	res := NewComposer(cfg).Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendBullish), nil, now)

	require.Len(t, res.Created, 1)
	require.NotNil(t, res.Created[0].TP)
	assert.Equal(t, "h1_fractal", res.Created[0].TP.TargetElement.Type)
	assert.InDelta(t, 1.1020, res.Created[0].TP.Price, 1e-12)
}

func TestBuild_NoScenariosOnNeutralTrend(t *testing.T) {
	res := NewComposer(DefaultConfig()).Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendNeutral), nil, now)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Document.Active)
	assert.NotNil(t, res.Document.History)
}

func TestBuild_NoScenariosWithoutPrice(t *testing.T) {
	state := continuationState(1.1000)
	state.Market.Price = nil
	res := NewComposer(DefaultConfig()).Build("EURUSD", state, trendDoc(models.TrendBullish), nil, now)
	assert.Empty(t, res.Created)
}

func TestBuild_DoesNotDuplicateAcrossCycles(t *testing.T) {
	c := NewComposer(DefaultConfig())
	first := c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendBullish), nil, now)
	require.Len(t, first.Created, 1)
	id := first.Created[0].ScenarioID

	second := c.Build("EURUSD", continuationState(1.1005), trendDoc(models.TrendBullish), first.Document, now.Add(5*time.Minute))
	assert.Empty(t, second.Created)
	require.Len(t, second.Document.Active, 1)
	assert.Equal(t, id, second.Document.Active[0].ScenarioID)

	// a nearer target changes the hash but the anchor and confirmation are the same
	nearer := models.StateFVG{ID: "g3", Direction: models.DirectionBullish, Status: models.StatusActive, FormationTimeUTC: iso(now.Add(-8 * time.Hour)), FVGLow: 1.1030, FVGHigh: 1.1040}
	third := c.Build("EURUSD", continuationState(1.1000, nearer), trendDoc(models.TrendBullish), second.Document, now.Add(10*time.Minute))
	assert.Empty(t, third.Created)
	require.Len(t, third.Document.Active, 1)
	assert.Equal(t, id, third.Document.Active[0].ScenarioID)
}

func TestBuild_ExpiresOnMissingElement(t *testing.T) {
	c := NewComposer(DefaultConfig())
	first := c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendBullish), nil, now)
	require.Len(t, first.Created, 1)

	state := continuationState(1.1000)
	state.Timeframes["M5"].Elements.SNR = []models.StateSNR{}
	next := c.Build("EURUSD", state, trendDoc(models.TrendBullish), first.Document, now.Add(time.Minute))

	assert.Empty(t, next.Document.Active)
	require.Len(t, next.Document.History, 1)
	h := next.Document.History[0]
	assert.Equal(t, models.ScenarioExpired, h.Status)
	assert.Equal(t, models.ExpiredMissingElement, h.Metadata.ExpiredReason)
	assert.Equal(t, first.Created[0].ScenarioID, h.ScenarioID)
	require.Len(t, next.Expired, 1)
}

func TestBuild_ExpiresByTime(t *testing.T) {
	c := NewComposer(DefaultConfig())
	first := c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendNeutral), nil, now)
	require.Empty(t, first.Created)

	first = c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendBullish), nil, now)
	later := c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendNeutral), first.Document, now.Add(12*time.Hour))

	require.Len(t, later.Expired, 1)
	assert.Equal(t, models.ExpiredByTime, later.Expired[0].Metadata.ExpiredReason)
	assert.True(t, later.Expired[0].UpdatedAtUTC.Equal(now.Add(12*time.Hour)))
}

func TestBuild_ExpiredIdsAreNotRecreated(t *testing.T) {
	c := NewComposer(DefaultConfig())
	first := c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendBullish), nil, now)
	require.Len(t, first.Created, 1)

	// past expiry the same trade idea must stay in history only
	later := c.Build("EURUSD", continuationState(1.1000), trendDoc(models.TrendBullish), first.Document, now.Add(13*time.Hour))
	require.Len(t, later.Expired, 1)
	for _, s := range later.Created {
		assert.NotEqual(t, first.Created[0].ScenarioID, s.ScenarioID)
	}
}

func TestBuild_NonLiveGoesToHistory(t *testing.T) {
	doc := &models.ScenarioDocument{
		Active: []models.Scenario{{ScenarioID: "x", Status: models.ScenarioExpired, CreatedAtUTC: models.NewISOTime(now)}},
	}
	res := NewComposer(DefaultConfig()).Build("EURUSD", continuationState(1.2), trendDoc(models.TrendNeutral), doc, now)
	assert.Empty(t, res.Document.Active)
	require.Len(t, res.Document.History, 1)
	assert.Empty(t, res.Expired)
}

func TestBuild_ReversalAtOpposite(t *testing.T) {
	h1 := models.NewStateElements()
	h1.FVG = []models.StateFVG{
		{ID: "o1", Direction: models.DirectionBearish, Status: models.StatusTouched, FormationTimeUTC: iso(now.Add(-6 * time.Hour)), TouchedTimeUTC: iso(now.Add(-4 * time.Hour)), FVGLow: 1.0995, FVGHigh: 1.1005},
	}
	h1.RB = []models.StateRB{
		{ID: "b1", RBType: models.FractalHigh, Status: models.StatusActive, ConfirmTimeUTC: iso(now.Add(-2 * time.Hour)), RBLow: 1.1100, RBHigh: 1.1120},
	}
	m5 := models.NewStateElements()
	m5.FVG = []models.StateFVG{
		{ID: "m1", Direction: models.DirectionBearish, Status: models.StatusActive, FormationTimeUTC: iso(now.Add(-time.Hour)), FVGLow: 1.1001, FVGHigh: 1.1003},
	}

	res := NewComposer(DefaultConfig()).Build("EURUSD", newState(1.1000, h1, m5), trendDoc(models.TrendBullish), nil, now)
	require.Len(t, res.Created, 1)
	s := res.Created[0]
	assert.Equal(t, models.ScenarioReversal, s.ScenarioType)
	assert.Equal(t, models.TradeShort, s.Direction)
	assert.Equal(t, models.TrendBullish, s.TrendAtCreation)
	assert.Equal(t, "h1_rb", s.HTFAnchor.Type)
	assert.InDelta(t, 1.1120, s.SL.Price, 1e-12)
	assert.Nil(t, s.TP)
	require.NotNil(t, s.Metadata.OppositeTouch)
	assert.Equal(t, "o1", s.Metadata.OppositeTouch.ElementID)
	assert.Equal(t, []string{"h1_fvg:o1", "h1_rb:b1", "m5_fvg:m1"}, s.EvidenceIDs)
	require.NotNil(t, s.Metadata.Start["opposite_touch_time_utc"])
	assert.True(t, s.Metadata.Start["opposite_touch_time_utc"].Equal(now.Add(-4*time.Hour)))
}

func TestBuild_RequireTPSkipsTargetless(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireTP = true
	state := continuationState(1.2000)
	// move the anchor under price so it is still touched, leaving nothing above
	state.Timeframes["H1"].Elements.FVG[0].FVGLow, state.Timeframes["H1"].Elements.FVG[0].FVGHigh = 1.1990, 1.2010
	state.Timeframes["H1"].Elements.FVG = state.Timeframes["H1"].Elements.FVG[:1]
	state.Timeframes["H1"].Elements.Fractals = nil

	res := NewComposer(cfg).Build("EURUSD", state, trendDoc(models.TrendBullish), nil, now)
	assert.Empty(t, res.Created)
}

func TestSelectConfirmation_PrefersSmallestBreak(t *testing.T) {
	at := now.Add(-time.Hour)
	items := []*candidate{
		{ref: ref{"m5_snr", "wide"}, kind: models.KindSNR, signal: at.Add(time.Minute), low: 1.0, high: 1.5},
		{ref: ref{"m5_snr", "narrow"}, kind: models.KindSNR, signal: at, low: 2.0, high: 2.1},
		{ref: ref{"m5_fvg", "late"}, kind: models.KindFVG, signal: at.Add(time.Hour), low: 3.0, high: 3.1},
	}
	got := selectConfirmation(items, at.Add(-time.Hour))
	require.NotNil(t, got)
	assert.Equal(t, "narrow", got.id)

	assert.Nil(t, selectConfirmation(items, at.Add(2*time.Hour)))
}

func TestCollapseBreaks_DropsOverlaps(t *testing.T) {
	items := []*candidate{
		{ref: ref{"h1_snr", "a"}, kind: models.KindSNR, low: 1.0, high: 1.2},
		{ref: ref{"h1_snr", "b"}, kind: models.KindSNR, low: 1.1, high: 1.4},
		{ref: ref{"h1_snr", "c"}, kind: models.KindSNR, low: 2.0, high: 2.1},
		{ref: ref{"h1_fvg", "d"}, kind: models.KindFVG, low: 1.0, high: 1.2},
	}
	out := collapseBreaks(items, nil, true)
	var ids []string
	for _, c := range out {
		ids = append(ids, c.id)
	}
	assert.ElementsMatch(t, []string{"a", "c", "d"}, ids)
}
