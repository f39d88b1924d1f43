package trend

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

func stateWith(fvg []models.StateFVG, snr []models.StateSNR) *models.StateDocument {
	tf := models.NewStateTimeframe()
	if fvg != nil {
		tf.Elements.FVG = fvg
	}
	if snr != nil {
		tf.Elements.SNR = snr
	}
	return &models.StateDocument{Symbol: "EURUSD", Timeframes: map[string]*models.StateTimeframe{"H1": tf}}
}

func TestLatestSignal_PicksNewest(t *testing.T) {
	state := stateWith(
		[]models.StateFVG{
			{ID: "g1", Direction: models.DirectionBullish, Status: models.StatusActive, FormationTimeUTC: iso(now.Add(-3 * time.Hour))},
			{ID: "g2", Direction: models.DirectionBearish, Status: models.StatusMitigatedPartial, FormationTimeUTC: iso(now)},
		},
		[]models.StateSNR{
			{ID: "s1", Role: models.RoleResistance, Status: models.StatusRetested, BreakTimeUTC: iso(now.Add(-time.Hour))},
		},
	)

	got := NewResolver("", 0).LatestSignal(state)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.ElementID)
	assert.Equal(t, "snr", got.Type)
	assert.Equal(t, models.PolarityNegative, got.Polarity)
	assert.Equal(t, models.TrendBearish, DirectionOf(got))
}

func TestLatestSignal_TieBrokenByID(t *testing.T) {
	at := iso(now)
	state := stateWith(
		[]models.StateFVG{{ID: "b", Direction: models.DirectionBullish, Status: models.StatusTouched, FormationTimeUTC: at}},
		[]models.StateSNR{{ID: "a", Role: models.RoleResistance, Status: models.StatusActive, BreakTimeUTC: at}},
	)
	got := NewResolver("H1", 50).LatestSignal(state)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ElementID)
}

func TestBuild_NeutralWithoutSignals(t *testing.T) {
	doc := NewResolver("H1", 50).Build("EURUSD", stateWith(nil, nil), nil, now)
	assert.Equal(t, models.TrendNeutral, doc.Trend.Direction)
	assert.Nil(t, doc.Trend.SourceSignal)
	assert.NotNil(t, doc.History)
	assert.Empty(t, doc.History)
}

func TestBuild_HistoryOnlyOnRealChange(t *testing.T) {
	r := NewResolver("H1", 2)
	bullish := stateWith([]models.StateFVG{{ID: "g1", Direction: models.DirectionBullish, Status: models.StatusActive, FormationTimeUTC: iso(now)}}, nil)
	bearish := stateWith(nil, []models.StateSNR{{ID: "s1", Role: models.RoleResistance, Status: models.StatusActive, BreakTimeUTC: iso(now)}})

	first := r.Build("EURUSD", bullish, nil, now)
	assert.Empty(t, first.History)

	same := r.Build("EURUSD", bullish, first, now.Add(time.Hour))
	assert.Empty(t, same.History)
	assert.False(t, ShouldWrite(first, same))

	flipped := r.Build("EURUSD", bearish, same, now.Add(2*time.Hour))
	require.Len(t, flipped.History, 1)
	assert.Equal(t, models.TrendBearish, flipped.History[0].Direction)
	assert.True(t, ShouldWrite(same, flipped))

	back := r.Build("EURUSD", bullish, flipped, now.Add(3*time.Hour))
	again := r.Build("EURUSD", bearish, back, now.Add(4*time.Hour))
	assert.Len(t, again.History, 2)
	assert.Equal(t, models.TrendBearish, again.History[1].Direction)
}

func TestShouldWrite_FirstWrite(t *testing.T) {
	doc := NewResolver("H1", 50).Build("EURUSD", stateWith(nil, nil), nil, now)
	assert.True(t, ShouldWrite(nil, doc))
}
