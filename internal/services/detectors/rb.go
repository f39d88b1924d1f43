package detectors

import (
	"math"

	"AutoEye/internal/domain/models"
)

// BlockDetector derives one range block per fractal: the span between the fractal's
// l_price and its extreme. A close outside the span breaks it.
type BlockDetector struct {
	cfg      Config
	fractals *FractalDetector
}

// NewBlockDetector creates a range-block detector.
func NewBlockDetector(cfg Config) *BlockDetector {
	return &BlockDetector{cfg: cfg, fractals: NewFractalDetector()}
}

func (d *BlockDetector) Kind() models.Kind { return models.KindRB }

func (d *BlockDetector) Detect(symbol, timeframe string, bars []models.Bar, _ float64) []*models.Element {
	if len(bars) < 3 {
		return nil
	}
	fractals := d.fractals.Detect(symbol, timeframe, bars, 0)
	out := make([]*models.Element, 0, len(fractals))
	for _, f := range fractals {
		out = append(out, newBlock(f))
	}
	return out
}

func (d *BlockDetector) UpdateStatus(e *models.Element, bars []models.Bar) {
	if len(bars) == 0 || e.Block == nil {
		return
	}
	m := e.Block
	if m.ConfirmTime.IsZero() {
		m.ConfirmTime = e.FormationTime
	}
	if e.Status == "" {
		e.Status = models.StatusActive
	}
	wick := d.cfg.wickBreaks()
	for _, b := range bars {
		if !b.Time.After(m.ConfirmTime) {
			continue
		}
		if e.Status != models.StatusActive {
			break
		}
		up, down := b.Close, b.Close
		if wick {
			up, down = b.High, b.Low
		}
		if up > e.ZoneHigh {
			e.Status = models.StatusBroken
			m.BrokenTime = models.TimePtr(b.Time)
			m.BrokenSide = models.BrokenUp
			break
		}
		if down < e.ZoneLow {
			e.Status = models.StatusBroken
			m.BrokenTime = models.TimePtr(b.Time)
			m.BrokenSide = models.BrokenDown
			break
		}
	}
	e.Direction = m.Type
	e.MitigatedTime = nil
	if e.Status == models.StatusBroken && m.BrokenTime != nil {
		e.MitigatedTime = models.TimePtr(*m.BrokenTime)
	}
}

func newBlock(f *models.Element) *models.Element {
	fm := f.Fractal
	low := math.Min(fm.LPrice, fm.ExtremePrice)
	high := math.Max(fm.LPrice, fm.ExtremePrice)
	return &models.Element{
		ID:            BlockID(f.Symbol, f.Timeframe, fm.Type, fm.PivotTime, fm.LPrice, fm.ExtremePrice),
		Kind:          models.KindRB,
		Symbol:        f.Symbol,
		Timeframe:     f.Timeframe,
		Direction:     fm.Type,
		FormationTime: fm.ConfirmTime,
		ZoneLow:       low,
		ZoneHigh:      high,
		C1Time:        f.C1Time,
		C2Time:        f.C2Time,
		C3Time:        f.C3Time,
		Status:        models.StatusActive,
		Block: &models.BlockMeta{
			Type:            fm.Type,
			OriginFractalID: f.ID,
			PivotTime:       fm.PivotTime,
			ConfirmTime:     fm.ConfirmTime,
			LPrice:          fm.LPrice,
			LAltPrice:       fm.LAltPrice,
			ExtremePrice:    fm.ExtremePrice,
		},
	}
}
