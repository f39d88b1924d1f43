package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoEye/internal/domain/models"
)

func TestGapDetector_DetectBullish(t *testing.T) {
	d := NewGapDetector(DefaultConfig())
	got := d.Detect("EURUSD", "M5", bullishGapBars(), 0.0001)

	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, models.KindFVG, e.Kind)
	assert.Equal(t, models.DirectionBullish, e.Direction)
	assert.Equal(t, 10.0, e.ZoneLow)
	assert.Equal(t, 11.0, e.ZoneHigh)
	assert.Equal(t, 1.0, e.ZoneSize())
	assert.Equal(t, barTime(2), e.FormationTime)
	assert.Equal(t, barTime(0), e.C1Time)
	assert.Equal(t, models.StatusActive, e.Status)
	assert.Equal(t, GapID("EURUSD", "M5", models.DirectionBullish, barTime(2), 10, 11), e.ID)
	assert.Len(t, e.ID, 20)
}

func TestGapDetector_DetectBearish(t *testing.T) {
	bars := []models.Bar{
		bar(0, 12, 13, 11, 11.5),
		bar(1, 11, 11.2, 9, 9.2),
		bar(2, 9.5, 10, 8.5, 9),
	}
	got := NewGapDetector(DefaultConfig()).Detect("EURUSD", "M5", bars, 0)

	require.Len(t, got, 1)
	assert.Equal(t, models.DirectionBearish, got[0].Direction)
	assert.Equal(t, 10.0, got[0].ZoneLow)
	assert.Equal(t, 11.0, got[0].ZoneHigh)
}

func TestGapDetector_Deterministic(t *testing.T) {
	d := NewGapDetector(DefaultConfig())
	a := d.Detect("EURUSD", "M5", bullishGapBars(), 0)
	b := d.Detect("EURUSD", "M5", bullishGapBars(), 0)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestGapDetector_TooFewBars(t *testing.T) {
	assert.Empty(t, NewGapDetector(DefaultConfig()).Detect("EURUSD", "M5", bullishGapBars()[:2], 0))
}

func TestGapDetector_Threshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinGapPoints = 20
	assert.Empty(t, NewGapDetector(cfg).Detect("EURUSD", "M5", bullishGapBars(), 0.1))

	cfg.MinGapPoints = 5
	assert.Len(t, NewGapDetector(cfg).Detect("EURUSD", "M5", bullishGapBars(), 0.1), 1)

	assert.Equal(t, 0.0, gapThreshold(0, 0.1))
	assert.Equal(t, 3.0, gapThreshold(3, 0))
}

func TestGapDetector_DisplacementRejectsFlatMiddleCandle(t *testing.T) {
	bars := bullishGapBars()
	bars[1].Close = bars[1].Open

	cfg := DefaultConfig()
	cfg.RequireDisplacement = true
	assert.Empty(t, NewGapDetector(cfg).Detect("EURUSD", "M5", bars, 0))

	cfg.RequireDisplacement = false
	assert.Len(t, NewGapDetector(cfg).Detect("EURUSD", "M5", bars, 0), 1)
}

func TestGapDetector_FullMitigation(t *testing.T) {
	d := NewGapDetector(DefaultConfig())
	bars := append(bullishGapBars(), bar(3, 12, 12.5, 9.8, 10.2))
	e := d.Detect("EURUSD", "M5", bars[:3], 0)[0]

	d.UpdateStatus(e, bars)

	assert.Equal(t, models.StatusMitigatedFull, e.Status)
	require.NotNil(t, e.TouchedTime)
	assert.Equal(t, barTime(3), *e.TouchedTime)
	require.NotNil(t, e.MitigatedTime)
	assert.Equal(t, barTime(3), *e.MitigatedTime)
	require.NotNil(t, e.FillPrice)
	assert.Equal(t, 10.0, *e.FillPrice)
	require.NotNil(t, e.FillPercent)
	assert.Equal(t, 100.0, *e.FillPercent)

	// Terminal gaps are never revisited.
	d.UpdateStatus(e, append(bars, bar(4, 10, 20, 5, 15)))
	assert.Equal(t, barTime(3), *e.MitigatedTime)
}

func TestGapDetector_PartialFillKeepsDeepestDepth(t *testing.T) {
	d := NewGapDetector(DefaultConfig())
	bars := append(bullishGapBars(), bar(3, 12, 12.5, 10.5, 11.5))
	e := d.Detect("EURUSD", "M5", bars[:3], 0)[0]

	d.UpdateStatus(e, bars)
	assert.Equal(t, models.StatusMitigatedPartial, e.Status)
	assert.Equal(t, 50.0, *e.FillPercent)
	assert.Equal(t, 0.5, *e.Gap.FillDepth)

	// A later refresh over an incremental window without bar 3 keeps the depth.
	later := []models.Bar{bar(4, 12, 12.5, 10.8, 11.6)}
	d.UpdateStatus(e, later)
	assert.Equal(t, models.StatusMitigatedPartial, e.Status)
	assert.Equal(t, 50.0, *e.FillPercent)
	assert.Equal(t, barTime(3), *e.TouchedTime)
}

func TestGapDetector_LegacyDepthFromPercent(t *testing.T) {
	d := NewGapDetector(DefaultConfig())
	e := d.Detect("EURUSD", "M5", bullishGapBars(), 0)[0]
	e.Gap.FillDepth = nil
	e.FillPercent = models.FloatPtr(40)
	e.Status = models.StatusMitigatedPartial

	d.UpdateStatus(e, []models.Bar{bar(3, 12, 12.5, 10.9, 11.5)})

	assert.Equal(t, 40.0, *e.FillPercent)
	assert.InDelta(t, 0.4, *e.Gap.FillDepth, 1e-9)
}

func TestGapDetector_TouchWithoutDepth(t *testing.T) {
	d := NewGapDetector(DefaultConfig())
	bars := append(bullishGapBars(), bar(3, 12, 12.5, 11, 11.5))
	e := d.Detect("EURUSD", "M5", bars[:3], 0)[0]

	d.UpdateStatus(e, bars)

	assert.Equal(t, models.StatusTouched, e.Status)
	assert.Equal(t, 0.0, *e.FillPercent)
}

func TestGapDetector_TouchRuleNeverFullyMitigates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FillRule = FillRuleTouch
	d := NewGapDetector(cfg)
	bars := append(bullishGapBars(), bar(3, 12, 12.5, 9.5, 10.2))
	e := d.Detect("EURUSD", "M5", bars[:3], 0)[0]

	d.UpdateStatus(e, bars)

	assert.Equal(t, models.StatusMitigatedPartial, e.Status)
	assert.Equal(t, 100.0, *e.FillPercent)
	assert.Nil(t, e.MitigatedTime)
}

func TestGapDetector_NoFutureBarsLeavesElement(t *testing.T) {
	d := NewGapDetector(DefaultConfig())
	bars := bullishGapBars()
	e := d.Detect("EURUSD", "M5", bars, 0)[0]

	d.UpdateStatus(e, bars)

	assert.Equal(t, models.StatusActive, e.Status)
	assert.Nil(t, e.FillPercent)
}

func TestRoundPercent(t *testing.T) {
	cases := map[float64]float64{
		2.675:   2.67,
		0.125:   0.12,
		0.375:   0.38,
		33.3333: 33.33,
		66.6666: 66.67,
		100:     100,
	}
	for in, want := range cases {
		assert.Equal(t, want, roundPercent(in), "round %v", in)
	}
}
