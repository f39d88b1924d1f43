package detectors

import (
	"strings"
	"sync"
	"time"

	"AutoEye/internal/domain/models"
)

// BreakDetector turns fractals into support/resistance zones once a close crosses the
// fractal's l_price.
type BreakDetector struct {
	cfg      Config
	fractals *FractalDetector

	mu        sync.Mutex
	lookupKey fractalLookupKey
	lookup    map[string]*models.Element
}

type fractalLookupKey struct {
	symbol    string
	timeframe string
	first     int64
	last      int64
	n         int
}

// NewBreakDetector creates a structure-break detector.
func NewBreakDetector(cfg Config) *BreakDetector {
	return &BreakDetector{cfg: cfg, fractals: NewFractalDetector()}
}

func (d *BreakDetector) Kind() models.Kind { return models.KindSNR }

func (d *BreakDetector) Detect(symbol, timeframe string, bars []models.Bar, _ float64) []*models.Element {
	if len(bars) < 4 {
		return nil
	}
	indexByTime := make(map[time.Time]int, len(bars))
	for i, b := range bars {
		indexByTime[b.Time] = i
	}
	var out []*models.Element
	for _, f := range d.fractals.Detect(symbol, timeframe, bars, 0) {
		confirm, ok := indexByTime[f.C3Time]
		if !ok {
			continue
		}
		role, breakType, breakBar, ok := findBreak(bars, f.Fractal.LPrice, confirm+1)
		if !ok {
			continue
		}
		e := d.newBreak(symbol, timeframe, f, role, breakType, breakBar, bars)
		d.UpdateStatus(e, bars)
		out = append(out, e)
	}
	return out
}

// UpdateStatus re-derives the departure zone from bars, then walks bars after the break:
// a close through the far side invalidates, a touch of an active zone is a retest.
func (d *BreakDetector) UpdateStatus(e *models.Element, bars []models.Bar) {
	if len(bars) == 0 {
		return
	}
	if e.Break == nil {
		return
	}
	d.refreshZone(e, bars)
	m := e.Break

	if e.Status != models.StatusInvalidated {
		for _, b := range bars {
			if !b.Time.After(m.BreakTime) {
				continue
			}
			if (m.Role == models.RoleSupport && b.Close < e.ZoneLow) ||
				(m.Role == models.RoleResistance && b.Close > e.ZoneHigh) {
				e.Status = models.StatusInvalidated
				if e.MitigatedTime == nil {
					e.MitigatedTime = models.TimePtr(b.Time)
				}
				break
			}
			if e.Status == models.StatusActive && b.High >= e.ZoneLow && b.Low <= e.ZoneHigh {
				e.Status = models.StatusRetested
				if e.TouchedTime == nil {
					e.TouchedTime = models.TimePtr(b.Time)
				}
			}
		}
	}
	if e.TouchedTime != nil {
		m.RetestTime = models.TimePtr(*e.TouchedTime)
	}
	if e.MitigatedTime != nil {
		m.InvalidatedTime = models.TimePtr(*e.MitigatedTime)
	}
}

func (d *BreakDetector) newBreak(symbol, timeframe string, f *models.Element, role, breakType string, breakBar models.Bar, bars []models.Bar) *models.Element {
	fm := f.Fractal
	start := d.departureStart(f)
	departure, departureTime, ok := departureExtreme(bars, role, start, breakBar.Time, d.cfg.SNRIncludeBreakCandle)
	if !ok {
		departure, departureTime = fm.ExtremePrice, f.C2Time
	}
	low, high := zoneFor(role, fm.LPrice, departure)
	breakClose := breakBar.Close
	return &models.Element{
		ID:            BreakID(symbol, timeframe, f.ID, breakBar.Time, role, breakType),
		Kind:          models.KindSNR,
		Symbol:        symbol,
		Timeframe:     timeframe,
		Direction:     role,
		FormationTime: breakBar.Time,
		ZoneLow:       low,
		ZoneHigh:      high,
		C1Time:        breakBar.Time,
		C2Time:        breakBar.Time,
		C3Time:        breakBar.Time,
		Status:        models.StatusActive,
		FillPrice:     models.FloatPtr(breakClose),
		Break: &models.BreakMeta{
			OriginFractalID:       f.ID,
			Role:                  role,
			BreakType:             breakType,
			BreakTime:             breakBar.Time,
			BreakClose:            models.FloatPtr(breakClose),
			LPrice:                fm.LPrice,
			ExtremePrice:          fm.ExtremePrice,
			DepartureExtremePrice: departure,
			DepartureExtremeTime:  departureTime,
			DepartureRangeStart:   models.TimePtr(start),
			DepartureRangeEnd:     models.TimePtr(breakBar.Time),
		},
	}
}

func (d *BreakDetector) refreshZone(e *models.Element, bars []models.Bar) {
	m := e.Break
	if m.Role != models.RoleSupport && m.Role != models.RoleResistance {
		m.Role = models.RoleSupport
	}
	if m.BreakType != models.BreakUpClose && m.BreakType != models.BreakDownClose {
		m.BreakType = models.BreakDownClose
		if m.Role == models.RoleSupport {
			m.BreakType = models.BreakUpClose
		}
	}
	if m.BreakTime.IsZero() {
		m.BreakTime = e.FormationTime
	}

	var origin *models.Element
	if m.OriginFractalID != "" {
		origin = d.fractalLookup(e.Symbol, e.Timeframe, bars)[m.OriginFractalID]
	}

	var rangeStart time.Time
	switch {
	case m.DepartureRangeStart != nil:
		rangeStart = *m.DepartureRangeStart
	case origin != nil:
		rangeStart = d.departureStart(origin)
	default:
		rangeStart = m.BreakTime
	}

	if price, at, ok := departureExtreme(bars, m.Role, rangeStart, m.BreakTime, d.cfg.SNRIncludeBreakCandle); ok {
		m.DepartureExtremePrice = price
		m.DepartureExtremeTime = at
	} else if m.DepartureExtremeTime.IsZero() {
		m.DepartureExtremeTime = m.BreakTime
	}
	if origin != nil {
		m.ExtremePrice = origin.Fractal.ExtremePrice
	}

	if m.BreakClose == nil {
		if b, ok := barAt(bars, m.BreakTime); ok {
			m.BreakClose = models.FloatPtr(b.Close)
		}
	}

	e.Direction = m.Role
	e.ZoneLow, e.ZoneHigh = zoneFor(m.Role, m.LPrice, m.DepartureExtremePrice)
	e.FillPrice = nil
	if m.BreakClose != nil {
		e.FillPrice = models.FloatPtr(*m.BreakClose)
	}
	m.DepartureRangeStart = models.TimePtr(rangeStart)
	m.DepartureRangeEnd = models.TimePtr(m.BreakTime)
}

// fractalLookup memoises fractal detection for one bar series.
func (d *BreakDetector) fractalLookup(symbol, timeframe string, bars []models.Bar) map[string]*models.Element {
	if len(bars) == 0 {
		return nil
	}
	key := fractalLookupKey{
		symbol:    symbol,
		timeframe: strings.ToUpper(timeframe),
		first:     bars[0].Time.UnixNano(),
		last:      bars[len(bars)-1].Time.UnixNano(),
		n:         len(bars),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookup != nil && d.lookupKey == key {
		return d.lookup
	}
	lookup := make(map[string]*models.Element)
	for _, f := range d.fractals.Detect(symbol, timeframe, bars, 0) {
		lookup[f.ID] = f
	}
	d.lookupKey = key
	d.lookup = lookup
	return lookup
}

func (d *BreakDetector) departureStart(f *models.Element) time.Time {
	pivot, confirm := f.C2Time, f.C3Time
	if f.Fractal != nil {
		if !f.Fractal.PivotTime.IsZero() {
			pivot = f.Fractal.PivotTime
		}
		if !f.Fractal.ConfirmTime.IsZero() {
			confirm = f.Fractal.ConfirmTime
		}
	}
	if d.cfg.departureStart() == DepartureFromConfirm {
		return confirm
	}
	return pivot
}

// findBreak returns the first bar from start whose close crosses level.
func findBreak(bars []models.Bar, level float64, start int) (string, string, models.Bar, bool) {
	if start < 1 {
		start = 1
	}
	for i := start; i < len(bars); i++ {
		prev, cur := bars[i-1].Close, bars[i].Close
		if cur > level && prev <= level {
			return models.RoleSupport, models.BreakUpClose, bars[i], true
		}
		if cur < level && prev >= level {
			return models.RoleResistance, models.BreakDownClose, bars[i], true
		}
	}
	return "", "", models.Bar{}, false
}

// departureExtreme scans [start, breakTime) (or up to and including breakTime) for the
// lowest low of a support or the highest high of a resistance.
func departureExtreme(bars []models.Bar, role string, start, breakTime time.Time, includeBreak bool) (float64, time.Time, bool) {
	var (
		best  float64
		at    time.Time
		found bool
	)
	for _, b := range bars {
		if b.Time.Before(start) {
			continue
		}
		if includeBreak {
			if b.Time.After(breakTime) {
				continue
			}
		} else if !b.Time.Before(breakTime) {
			continue
		}
		if role == models.RoleSupport {
			if !found || b.Low < best {
				best, at, found = b.Low, b.Time, true
			}
			continue
		}
		if !found || b.High > best {
			best, at, found = b.High, b.Time, true
		}
	}
	return best, at, found
}

func zoneFor(role string, lPrice, departure float64) (float64, float64) {
	if role == models.RoleSupport {
		return departure, lPrice
	}
	return lPrice, departure
}

func barAt(bars []models.Bar, t time.Time) (models.Bar, bool) {
	for _, b := range bars {
		if b.Time.Equal(t) {
			return b, true
		}
	}
	return models.Bar{}, false
}
