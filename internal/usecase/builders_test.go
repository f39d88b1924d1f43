package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoEye/internal/domain/models"
	"AutoEye/internal/repository"
)

func seedElements(t *testing.T, store *repository.ElementFileStore, symbol string, blocks map[string][]*models.Element) {
	t.Helper()
	doc := models.NewElementDocument(symbol)
	for tf, els := range blocks {
		stamp := models.NewISOTime(t0)
		last := models.NewISOTime(t0.Add(-5 * time.Minute))
		doc.Timeframes[tf] = &models.TimeframeBlock{
			Initialized:    true,
			UpdatedAtUTC:   &stamp,
			LastBarTimeUTC: &last,
			Elements:       els,
		}
	}
	_, err := store.Save(context.Background(), doc)
	require.NoError(t, err)
}

func TestProjectState_DropsTerminalAndAddsRequiredTimeframes(t *testing.T) {
	doc := models.NewElementDocument("EURUSD")
	filled := gap("g2", "EURUSD", "M5", models.DirectionBullish, t0.Add(-time.Hour), 1.1, 1.2)
	filled.Status = models.StatusMitigatedFull
	doc.Timeframes["M5"] = &models.TimeframeBlock{
		Initialized: true,
		Elements: []*models.Element{
			gap("g1", "EURUSD", "M5", models.DirectionBullish, t0.Add(-2*time.Hour), 1.0, 1.1),
			filled,
		},
	}

	state := ProjectState("EURUSD", doc, models.Market{Source: DefaultMarketSource}, []string{"H4", "D1"}, []models.Kind{models.KindFVG, models.KindFractal}, t0)

	for _, tf := range []string{"M5", "H1", "H4", "D1"} {
		assert.Contains(t, state.Timeframes, tf)
	}
	m5 := state.Timeframes["M5"]
	require.Len(t, m5.Elements.FVG, 1)
	assert.Equal(t, "g1", m5.Elements.FVG[0].ID)
	assert.True(t, m5.State.InitializedElements["fvg"])
	assert.True(t, m5.State.InitializedElements["fractals"])
	assert.False(t, state.Timeframes["H1"].Initialized)
}

func TestResolveMarket(t *testing.T) {
	quote := &models.Quote{Price: 1.2345, Source: "clickhouse", TickTime: t0}
	m := ResolveMarket(quote, nil, t0.Add(time.Minute))
	require.NotNil(t, m.Price)
	assert.Equal(t, 1.2345, *m.Price)
	assert.Equal(t, "clickhouse", m.Source)
	assert.True(t, m.TickTimeUTC.Equal(t0))

	kept := ResolveMarket(nil, &m, t0.Add(time.Hour))
	assert.Equal(t, m, kept)

	empty := ResolveMarket(nil, nil, t0)
	assert.Nil(t, empty.Price)
	assert.Equal(t, DefaultMarketSource, empty.Source)
	require.NotNil(t, empty.TickTimeUTC)

	again := ResolveMarket(nil, &empty, t0.Add(time.Hour))
	assert.True(t, again.TickTimeUTC.Equal(t0))
}

func TestStateBuilder_WritesOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	elements := repository.NewElementFileStore(dir, nil)
	states := repository.NewStateFileStore(dir, nil)
	seedElements(t, elements, "EURUSD", map[string][]*models.Element{
		"M5": {gap("g1", "EURUSD", "M5", models.DirectionBullish, t0.Add(-time.Hour), 1.0, 1.1)},
	})

	b := NewStateBuilder(newFakeSource(), elements, states, []string{"EURUSD"}, []string{"M5", "H4"}, []models.Kind{models.KindFVG}, nil, nil)
	rep := b.BuildAll(ctx, t0)
	assert.Equal(t, 1, rep.SymbolsProcessed)
	assert.Equal(t, 1, rep.FilesUpdated)
	assert.Equal(t, []string{"EURUSD"}, rep.Written)
	assert.Empty(t, rep.Errors)
	assert.FileExists(t, filepath.Join(dir, repository.StateDir, "schema_version.json"))

	state, err := states.Load(ctx, "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Nil(t, state.Market.Price)
	assert.Contains(t, state.Timeframes, "H4")
	assert.Len(t, state.Timeframes["M5"].Elements.FVG, 1)

	rep = b.BuildAll(ctx, t0.Add(time.Minute))
	assert.Equal(t, 0, rep.FilesUpdated)
	assert.Equal(t, 1, rep.FilesUnchanged)
}

func TestStateBuilder_UsesQuote(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := newFakeSource()
	src.quotes["EURUSD"] = &models.Quote{Price: 1.1, Source: "clickhouse", TickTime: t0}
	states := repository.NewStateFileStore(dir, nil)

	b := NewStateBuilder(src, repository.NewElementFileStore(dir, nil), states, []string{"EURUSD"}, nil, nil, nil, nil)
	b.BuildAll(ctx, t0)

	state, err := states.Load(ctx, "EURUSD")
	require.NoError(t, err)
	require.NotNil(t, state.Market.Price)
	assert.Equal(t, 1.1, *state.Market.Price)
	assert.Equal(t, "clickhouse", state.Market.Source)
}

func TestTrendBuilder_ReportsDirectionChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	elements := repository.NewElementFileStore(dir, nil)
	states := repository.NewStateFileStore(dir, nil)
	trends := repository.NewTrendFileStore(dir, nil)
	seedElements(t, elements, "EURUSD", map[string][]*models.Element{
		"H1": {gap("g1", "EURUSD", "H1", models.DirectionBullish, t0.Add(-3*time.Hour), 1.0, 1.1)},
	})
	NewStateBuilder(newFakeSource(), elements, states, []string{"EURUSD"}, nil, []models.Kind{models.KindFVG}, nil, nil).BuildAll(ctx, t0)

	b := NewTrendBuilder(states, trends, nil, nil, nil)
	rep := b.BuildAll(ctx, t0)
	assert.Equal(t, 1, rep.FilesUpdated)
	require.Len(t, rep.Changes, 1)
	assert.Equal(t, models.TrendNeutral, rep.Changes[0].Previous)
	assert.Equal(t, models.TrendBullish, rep.Changes[0].Direction)
	require.NotNil(t, rep.Changes[0].Trend.SourceSignal)
	assert.Equal(t, "g1", rep.Changes[0].Trend.SourceSignal.ElementID)

	rep = b.BuildAll(ctx, t0.Add(time.Hour))
	assert.Equal(t, 0, rep.FilesUpdated)
	assert.Equal(t, 1, rep.FilesUnchanged)
	assert.Empty(t, rep.Changes)
}

func TestScenarioBuilder_WritesDocumentPerState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	states := repository.NewStateFileStore(dir, nil)
	NewStateBuilder(newFakeSource(), repository.NewElementFileStore(dir, nil), states, []string{"EURUSD"}, nil, nil, nil, nil).BuildAll(ctx, t0)

	b := NewScenarioBuilder(states, repository.NewTrendFileStore(dir, nil), repository.NewScenarioFileStore(dir, nil), nil, nil, nil)
	rep := b.BuildAll(ctx, t0)
	assert.Equal(t, 1, rep.SymbolsProcessed)
	assert.Equal(t, 1, rep.FilesUpdated)
	assert.Equal(t, 0, rep.ScenariosCreated)
	assert.Empty(t, rep.Errors)

	_, err := os.Stat(filepath.Join(dir, repository.ScenariosDir, "EURUSD.json"))
	assert.NoError(t, err)
}
