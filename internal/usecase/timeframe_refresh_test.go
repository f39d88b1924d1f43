package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoEye/internal/domain"
	"AutoEye/internal/domain/models"
	"AutoEye/internal/domain/service"
	"AutoEye/internal/repository"
	"AutoEye/internal/services/detectors"
	"AutoEye/internal/services/scheduler"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newRefresher(src *fakeSource, store *repository.ElementFileStore, cycle *scheduler.CycleState, symbols, tfs []string, now time.Time, detectors ...service.Detector) *TimeframeRefresher {
	if len(detectors) == 0 {
		detectors = []service.Detector{gapPerThirdBar()}
	}
	return NewTimeframeRefresher(src, store, detectors, cycle, symbols, tfs, nil, WithRefreshClock(fixedClock(now)))
}

func TestRefresh_PrimaryLoadThenIncremental(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.bars[unitKey("EURUSD", "M5")] = barsFrom(t0.Add(-30*time.Minute), 5*time.Minute, 1, 2, 3, 4, 5, 6)
	store := repository.NewElementFileStore(t.TempDir(), nil)
	r := newRefresher(src, store, nil, []string{"EURUSD"}, []string{"m5"}, t0)

	res, err := r.RunAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, res.Reports, 1)
	rep := res.Reports[0]
	assert.Equal(t, "M5", rep.Timeframe)
	assert.True(t, rep.PrimaryLoad)
	assert.True(t, rep.FileUpdated)
	assert.Equal(t, 2, rep.NewCount)
	assert.Equal(t, 2, rep.TotalActive)
	assert.Equal(t, 2, rep.TotalElements)
	assert.Equal(t, "updated", rep.Message)
	assert.Equal(t, []string{"EURUSD"}, res.Written)

	doc, err := store.Load(ctx, "EURUSD")
	require.NoError(t, err)
	block := doc.Timeframes["M5"]
	require.NotNil(t, block)
	assert.True(t, block.Initialized)
	require.NotNil(t, block.LastBarTimeUTC)
	assert.True(t, block.LastBarTimeUTC.Equal(t0.Add(-5*time.Minute)))
	assert.Len(t, block.Elements, 2)

	res, err = r.RunAll(ctx, false)
	require.NoError(t, err)
	rep = res.Reports[0]
	assert.False(t, rep.PrimaryLoad)
	assert.False(t, rep.FileUpdated)
	assert.Equal(t, 0, rep.NewCount)
	assert.Equal(t, "no changes", rep.Message)
	assert.Empty(t, res.Written)
	assert.Equal(t, []string{"history:EURUSD|M5", "incremental:EURUSD|M5"}, src.calls)
}

func TestRefresh_CountsStatusUpdates(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.bars[unitKey("EURUSD", "M5")] = barsFrom(t0.Add(-30*time.Minute), 5*time.Minute, 1, 2, 3, 4, 5, 6)
	store := repository.NewElementFileStore(t.TempDir(), nil)

	det := gapPerThirdBar()
	det.update = func(e *models.Element, bars []models.Bar) {
		if len(bars) > 6 {
			e.Status = models.StatusTouched
			e.TouchedTime = models.TimePtr(bars[len(bars)-1].Time)
		}
	}
	r := newRefresher(src, store, nil, []string{"EURUSD"}, []string{"M5"}, t0, det)

	_, err := r.RunAll(ctx, false)
	require.NoError(t, err)

	src.bars[unitKey("EURUSD", "M5")] = barsFrom(t0.Add(-30*time.Minute), 5*time.Minute, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	res, err := r.RunAll(ctx, false)
	require.NoError(t, err)
	rep := res.Reports[0]
	assert.True(t, rep.FileUpdated)
	assert.Equal(t, 1, rep.NewCount)
	assert.Equal(t, 2, rep.StatusUpdatedCount)
	assert.Equal(t, 0, rep.TotalActive)
	assert.Equal(t, 3, rep.TotalElements)
}

func TestRefresh_DataUnavailableSkipsOnlyThatUnit(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.bars[unitKey("EURUSD", "M5")] = barsFrom(t0.Add(-30*time.Minute), 5*time.Minute, 1, 2, 3, 4, 5, 6)
	src.fail[unitKey("GBPUSD", "M5")] = true
	store := repository.NewElementFileStore(t.TempDir(), nil)
	cycle := scheduler.NewCycleState()
	r := newRefresher(src, store, cycle, []string{"EURUSD", "GBPUSD"}, []string{"M5"}, t0)

	res, err := r.RunAll(ctx, false)
	require.NoError(t, err)
	rep := res.Reports[0]
	assert.False(t, rep.SkippedNoData)
	assert.True(t, rep.FileUpdated)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "GBPUSD")
	assert.Equal(t, []string{"EURUSD"}, res.Written)
	assert.NotNil(t, cycle.LastCheck("M5"))

	gbp, err := store.Load(ctx, "GBPUSD")
	require.NoError(t, err)
	assert.Empty(t, gbp.Timeframes)
}

func TestRefresh_AllUnitsFailingSkipsTimeframe(t *testing.T) {
	src := newFakeSource()
	src.fail[unitKey("EURUSD", "H1")] = true
	cycle := scheduler.NewCycleState()
	r := newRefresher(src, repository.NewElementFileStore(t.TempDir(), nil), cycle, []string{"EURUSD"}, []string{"H1"}, t0)

	res, err := r.RunAll(context.Background(), false)
	require.NoError(t, err)
	rep := res.Reports[0]
	assert.True(t, rep.SkippedNoData)
	assert.False(t, rep.FileUpdated)
	assert.Nil(t, cycle.LastCheck("H1"))
	assert.Empty(t, res.Written)
}

func TestRefresh_InsufficientBarsCarriesElements(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.bars[unitKey("EURUSD", "M5")] = barsFrom(t0.Add(-30*time.Minute), 5*time.Minute, 1, 2, 3, 4, 5, 6)
	store := repository.NewElementFileStore(t.TempDir(), nil)
	r := newRefresher(src, store, nil, []string{"EURUSD"}, []string{"M5"}, t0)

	_, err := r.RunAll(ctx, false)
	require.NoError(t, err)

	src.bars[unitKey("EURUSD", "M5")] = barsFrom(t0, 5*time.Minute, 7, 8)
	res, err := r.RunAll(ctx, false)
	require.NoError(t, err)
	rep := res.Reports[0]
	assert.False(t, rep.FileUpdated)
	assert.Equal(t, 2, rep.TotalElements)
	assert.Equal(t, 0, rep.NewCount)
}

func TestRefresh_DropsElementsBeforeCutoff(t *testing.T) {
	src := newFakeSource()
	day := 24 * time.Hour
	src.bars[unitKey("EURUSD", "D1")] = barsFrom(t0.Add(-55*day), 10*day, 1, 2, 3, 4, 5, 6)
	r := newRefresher(src, repository.NewElementFileStore(t.TempDir(), nil), nil, []string{"EURUSD"}, []string{"D1"}, t0)

	res, err := r.RunAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reports[0].TotalElements)
	els := res.Documents["EURUSD"].Timeframes["D1"].Elements
	require.Len(t, els, 1)
	assert.True(t, els[0].FormationTime.Equal(t0.Add(-5*day)))
}

func TestRefresh_RunDueFallsBackToBlockStamp(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.bars[unitKey("EURUSD", "H1")] = barsFrom(t0.Add(-6*time.Hour), time.Hour, 1, 2, 3, 4, 5, 6)
	dir := t.TempDir()

	first := newRefresher(src, repository.NewElementFileStore(dir, nil), nil, []string{"EURUSD"}, []string{"H1"}, t0)
	_, err := first.RunAll(ctx, false)
	require.NoError(t, err)

	// A fresh process has no cycle state and reads the last check from the document.
	second := newRefresher(src, repository.NewElementFileStore(dir, nil), scheduler.NewCycleState(), []string{"EURUSD"}, []string{"H1"}, t0)
	res, err := second.RunDue(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed())

	res, err = second.RunDue(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed())
}

func TestRefresh_NoDetectorsIsConfigurationError(t *testing.T) {
	r := NewTimeframeRefresher(newFakeSource(), repository.NewElementFileStore(t.TempDir(), nil), nil, nil, []string{"EURUSD"}, []string{"M5"}, nil)
	_, err := r.RunAll(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestProcess_LegacyBreakIDKeepsStoredElement(t *testing.T) {
	brk := func(id string, at time.Time) *models.Element {
		return &models.Element{
			ID:            id,
			Kind:          models.KindSNR,
			Symbol:        "EURUSD",
			Timeframe:     "H1",
			FormationTime: at,
			C3Time:        at,
			Status:        models.StatusActive,
			Break: &models.BreakMeta{
				OriginFractalID: "f1",
				Role:            models.RoleSupport,
				BreakType:       models.BreakUpClose,
				BreakTime:       at,
			},
		}
	}
	// "legacy" was written with a geometry-derived id for the same break.
	existing := []*models.Element{brk("legacy", t0)}
	det := &stubDetector{
		kind: models.KindSNR,
		detect: func(string, string, []models.Bar) []*models.Element {
			return []*models.Element{brk("new", t0), brk("other", t0.Add(time.Hour))}
		},
	}
	keep := &models.Element{ID: "rb1", Kind: models.KindRB, Status: models.StatusActive}
	r := newRefresher(newFakeSource(), nil, nil, nil, []string{"H1"}, t0, det)

	out := r.process("EURUSD", "H1", barsFrom(t0, time.Hour, 1, 2, 3), 0, append(existing, keep))
	ids := make([]string, 0, len(out))
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"legacy", "other", "rb1"}, ids)
	assert.NotSame(t, existing[0], out[0])
}

func TestProcess_RedetectedBreakKeepsStoredElement(t *testing.T) {
	brk := func(at time.Time) *models.Element {
		return &models.Element{
			ID:            detectors.BreakID("EURUSD", "H1", "f1", at, models.RoleSupport, models.BreakUpClose),
			Kind:          models.KindSNR,
			Symbol:        "EURUSD",
			Timeframe:     "H1",
			FormationTime: at,
			C3Time:        at,
			Status:        models.StatusActive,
			Break: &models.BreakMeta{
				OriginFractalID: "f1",
				Role:            models.RoleSupport,
				BreakType:       models.BreakUpClose,
				BreakTime:       at,
			},
		}
	}
	stored := brk(t0)
	stored.Status = models.StatusTouched
	det := &stubDetector{
		kind: models.KindSNR,
		detect: func(string, string, []models.Bar) []*models.Element {
			return []*models.Element{brk(t0), brk(t0.Add(time.Hour))}
		},
	}
	keep := &models.Element{ID: "rb1", Kind: models.KindRB, Status: models.StatusActive}
	r := newRefresher(newFakeSource(), nil, nil, nil, []string{"H1"}, t0, det)

	out := r.process("EURUSD", "H1", barsFrom(t0, time.Hour, 1, 2, 3), 0, []*models.Element{stored, keep})
	require.Len(t, out, 3)
	assert.Equal(t, stored.ID, out[0].ID)
	assert.Equal(t, models.StatusTouched, out[0].Status)
	assert.NotSame(t, stored, out[0])
	assert.Equal(t, detectors.BreakID("EURUSD", "H1", "f1", t0.Add(time.Hour), models.RoleSupport, models.BreakUpClose), out[1].ID)
	assert.Equal(t, "rb1", out[2].ID)
}
