package detectors

import (
	"math"

	"AutoEye/internal/domain/models"
)

// FractalDetector finds three-bar pivots.
type FractalDetector struct{}

// NewFractalDetector creates a fractal detector.
func NewFractalDetector() *FractalDetector { return &FractalDetector{} }

func (d *FractalDetector) Kind() models.Kind { return models.KindFractal }

// Detect emits a high pivot when c2.high exceeds both neighbours and a low pivot when
// c2.low is below both. A single triple can yield both.
func (d *FractalDetector) Detect(symbol, timeframe string, bars []models.Bar, _ float64) []*models.Element {
	if len(bars) < 3 {
		return nil
	}
	var out []*models.Element
	for i := 2; i < len(bars); i++ {
		c1, c2, c3 := bars[i-2], bars[i-1], bars[i]
		if c2.High > c1.High && c2.High > c3.High {
			out = append(out, newFractal(symbol, timeframe, models.FractalHigh, c1, c2, c3, c2.High))
		}
		if c2.Low < c1.Low && c2.Low < c3.Low {
			out = append(out, newFractal(symbol, timeframe, models.FractalLow, c1, c2, c3, c2.Low))
		}
	}
	return out
}

// UpdateStatus is a no-op: fractals stay active.
func (d *FractalDetector) UpdateStatus(*models.Element, []models.Bar) {}

func newFractal(symbol, timeframe, fractalType string, c1, c2, c3 models.Bar, extreme float64) *models.Element {
	lPrice := c1.Close
	return &models.Element{
		ID:            FractalID(symbol, timeframe, fractalType, c2.Time, extreme, lPrice),
		Kind:          models.KindFractal,
		Symbol:        symbol,
		Timeframe:     timeframe,
		Direction:     fractalType,
		FormationTime: c3.Time,
		ZoneLow:       math.Min(lPrice, extreme),
		ZoneHigh:      math.Max(lPrice, extreme),
		C1Time:        c1.Time,
		C2Time:        c2.Time,
		C3Time:        c3.Time,
		Status:        models.StatusActive,
		Fractal: &models.FractalMeta{
			Type:         fractalType,
			PivotTime:    c2.Time,
			ConfirmTime:  c3.Time,
			ExtremePrice: extreme,
			LPrice:       lPrice,
			LAltPrice:    c2.Open,
		},
	}
}
