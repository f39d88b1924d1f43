package detectors

import (
	"math"

	"github.com/shopspring/decimal"

	"AutoEye/internal/domain/models"
	"AutoEye/internal/services/features"
)

// GapDetector finds three-bar fair value gaps and tracks how far price refills them.
type GapDetector struct {
	cfg Config
}

// NewGapDetector creates a gap detector.
func NewGapDetector(cfg Config) *GapDetector { return &GapDetector{cfg: cfg} }

func (d *GapDetector) Kind() models.Kind { return models.KindFVG }

func (d *GapDetector) Detect(symbol, timeframe string, bars []models.Bar, pointSize float64) []*models.Element {
	if len(bars) < 3 {
		return nil
	}
	threshold := gapThreshold(d.cfg.MinGapPoints, pointSize)
	var out []*models.Element
	for i := 2; i < len(bars); i++ {
		c1, c2, c3 := bars[i-2], bars[i-1], bars[i]
		if d.cfg.RequireDisplacement && !d.passesDisplacement(bars, i-1) {
			continue
		}
		if c1.High < c3.Low {
			if size := c3.Low - c1.High; size >= threshold {
				out = append(out, newGap(symbol, timeframe, models.DirectionBullish, c1, c2, c3, c1.High, c3.Low))
			}
		}
		if c1.Low > c3.High {
			if size := c1.Low - c3.High; size >= threshold {
				out = append(out, newGap(symbol, timeframe, models.DirectionBearish, c1, c2, c3, c3.High, c1.Low))
			}
		}
	}
	return out
}

// UpdateStatus scans bars after c3 for the first touch, the deepest fill and full
// mitigation. Fully mitigated gaps are final.
func (d *GapDetector) UpdateStatus(e *models.Element, bars []models.Bar) {
	if e.Status == models.StatusMitigatedFull || len(bars) == 0 {
		return
	}
	if e.Gap == nil {
		e.Gap = &models.GapMeta{}
	}
	rule := d.cfg.fillRule()
	size := e.ZoneSize()
	maxDepth := initialDepth(e, size)

	scanned := false
	for _, b := range bars {
		if !b.Time.After(e.C3Time) {
			continue
		}
		scanned = true
		if e.TouchedTime == nil && b.Low <= e.ZoneHigh && b.High >= e.ZoneLow {
			e.TouchedTime = models.TimePtr(b.Time)
		}
		if depth := fillDepth(e, b); depth > maxDepth {
			maxDepth = depth
		}
		if rule != FillRuleTouch && fullyMitigated(e, b) {
			e.Status = models.StatusMitigatedFull
			if e.MitigatedTime == nil {
				e.MitigatedTime = models.TimePtr(b.Time)
			}
			far := e.ZoneHigh
			if e.Direction == models.DirectionBullish {
				far = e.ZoneLow
			}
			e.FillPrice = models.FloatPtr(far)
			maxDepth = math.Max(maxDepth, size)
			break
		}
	}
	if !scanned {
		return
	}

	if size > 0 {
		pct := math.Min(100, maxDepth/size*100)
		e.FillPercent = models.FloatPtr(roundPercent(pct))
		e.Gap.FillDepth = models.FloatPtr(math.Min(maxDepth, size))
	} else {
		e.FillPercent = nil
		e.Gap.FillDepth = nil
	}

	if e.Status == models.StatusMitigatedFull {
		return
	}
	switch {
	case maxDepth > 0:
		e.Status = models.StatusMitigatedPartial
	case e.TouchedTime != nil:
		e.Status = models.StatusTouched
	default:
		e.Status = models.StatusActive
	}
}

func (d *GapDetector) passesDisplacement(bars []models.Bar, c2 int) bool {
	if c2 <= 0 || c2 >= len(bars) {
		return true
	}
	body := features.Body(bars[c2])
	if body <= 0 {
		return false
	}
	baseline, ok := features.ATR(bars, c2, d.cfg.ATRPeriod)
	if !ok || baseline <= 0 {
		baseline, ok = features.MedianBody(bars, c2, d.cfg.MedianBodyPeriod)
	}
	if !ok || baseline <= 0 {
		return true
	}
	return body >= d.cfg.DisplacementK*baseline
}

func newGap(symbol, timeframe, direction string, c1, c2, c3 models.Bar, low, high float64) *models.Element {
	return &models.Element{
		ID:            GapID(symbol, timeframe, direction, c3.Time, low, high),
		Kind:          models.KindFVG,
		Symbol:        symbol,
		Timeframe:     timeframe,
		Direction:     direction,
		FormationTime: c3.Time,
		ZoneLow:       low,
		ZoneHigh:      high,
		C1Time:        c1.Time,
		C2Time:        c2.Time,
		C3Time:        c3.Time,
		Status:        models.StatusActive,
		Gap:           &models.GapMeta{},
	}
}

func gapThreshold(minGapPoints, pointSize float64) float64 {
	switch {
	case minGapPoints <= 0:
		return 0
	case pointSize > 0:
		return minGapPoints * pointSize
	default:
		return minGapPoints
	}
}

// initialDepth resumes from the stored depth, or from fill_percent for documents
// written before the depth was kept.
func initialDepth(e *models.Element, size float64) float64 {
	if size <= 0 {
		return 0
	}
	if e.Gap != nil && e.Gap.FillDepth != nil {
		return math.Max(0, math.Min(size, *e.Gap.FillDepth))
	}
	if e.FillPercent == nil {
		return 0
	}
	return math.Max(0, math.Min(size, size*(*e.FillPercent/100)))
}

// fillDepth is measured from the near edge inward.
func fillDepth(e *models.Element, b models.Bar) float64 {
	if e.Direction == models.DirectionBullish {
		if b.Low >= e.ZoneHigh {
			return 0
		}
		return math.Max(0, e.ZoneHigh-math.Max(b.Low, e.ZoneLow))
	}
	if b.High <= e.ZoneLow {
		return 0
	}
	return math.Max(0, math.Min(b.High, e.ZoneHigh)-e.ZoneLow)
}

func fullyMitigated(e *models.Element, b models.Bar) bool {
	if e.Direction == models.DirectionBullish {
		return b.Low <= e.ZoneLow
	}
	return b.High >= e.ZoneHigh
}

// roundPercent rounds to two decimals on the exact binary value with ties to
// even, so 2.675 (stored just below the tie) becomes 2.67.
func roundPercent(pct float64) float64 {
	rounded, _ := decimal.NewFromFloatWithExponent(pct, -1074).RoundBank(2).Float64()
	return rounded
}
