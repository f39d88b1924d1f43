package scenario

import (
	"math"
	"sort"
	"time"

	"AutoEye/internal/domain/models"
)

const sizeTolerance = 1e-12

// byProximity orders by distance to price, then latest start and signal, then
// smallest zone and id.
func byProximity(items []*candidate, price *float64) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := items[i], items[j]
		if da, db := distanceToPrice(a, price), distanceToPrice(b, price); da != db {
			return da < db
		}
		if !a.start.Equal(b.start) {
			return a.start.After(b.start)
		}
		if !a.signal.Equal(b.signal) {
			return a.signal.After(b.signal)
		}
		if a.size() != b.size() {
			return a.size() < b.size()
		}
		return a.id < b.id
	}
}

// selectStart picks the element nearest to price. With requireInteraction only
// elements touched by price, or carrying an interaction time, qualify.
func selectStart(items []*candidate, price float64, now time.Time, requireInteraction bool) *candidate {
	var prepared []*candidate
	for _, item := range items {
		if item.signal.After(now) {
			continue
		}
		interaction := item.interaction
		if interaction == nil && item.low <= price && price <= item.high {
			at := item.signal
			interaction = &at
		}
		if requireInteraction && interaction == nil {
			continue
		}
		c := *item
		c.interaction = interaction
		c.start = c.signal
		if interaction != nil {
			c.start = *interaction
		}
		prepared = append(prepared, &c)
	}
	if len(prepared) == 0 {
		return nil
	}
	prepared = collapseBreaks(prepared, &price, false)
	sort.SliceStable(prepared, byProximity(prepared, &price))
	return prepared[0]
}

// selectConfirmation picks the confirmation formed no earlier than minSignal.
// The smallest structure break wins; otherwise the latest element.
func selectConfirmation(items []*candidate, minSignal time.Time) *candidate {
	var eligible []*candidate
	for _, item := range items {
		if !item.signal.Before(minSignal) {
			eligible = append(eligible, item)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	eligible = collapseBreaks(eligible, nil, true)

	var breaks []*candidate
	minSize := math.Inf(1)
	for _, item := range eligible {
		if item.kind == models.KindSNR {
			breaks = append(breaks, item)
			minSize = math.Min(minSize, item.size())
		}
	}
	if len(breaks) > 0 {
		var best *candidate
		for _, item := range breaks {
			if math.Abs(item.size()-minSize) > sizeTolerance {
				continue
			}
			if best == nil || later(item, best, false) {
				best = item
			}
		}
		return best
	}

	best := eligible[0]
	for _, item := range eligible[1:] {
		if later(item, best, true) {
			best = item
		}
	}
	return best
}

func later(a, b *candidate, withLabel bool) bool {
	if !a.signal.Equal(b.signal) {
		return a.signal.After(b.signal)
	}
	if a.id != b.id {
		return a.id > b.id
	}
	return withLabel && a.label > b.label
}

// collapseBreaks keeps only non-overlapping structure breaks, greedily in rank
// order. Other kinds pass through.
func collapseBreaks(items []*candidate, price *float64, smallestFirst bool) []*candidate {
	var breaks, rest []*candidate
	for _, item := range items {
		if item.kind == models.KindSNR {
			breaks = append(breaks, item)
		} else {
			rest = append(rest, item)
		}
	}
	if len(breaks) <= 1 {
		return items
	}

	if smallestFirst {
		sort.SliceStable(breaks, func(i, j int) bool {
			a, b := breaks[i], breaks[j]
			if a.size() != b.size() {
				return a.size() < b.size()
			}
			if !a.signal.Equal(b.signal) {
				return a.signal.After(b.signal)
			}
			if da, db := distanceToPrice(a, price), distanceToPrice(b, price); da != db {
				return da < db
			}
			return a.id < b.id
		})
	} else {
		sort.SliceStable(breaks, byProximity(breaks, price))
	}

	var kept []*candidate
	for _, c := range breaks {
		clash := false
		for _, k := range kept {
			if overlaps(c, k) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, c)
		}
	}
	return append(rest, kept...)
}

// chooseTarget returns the nearest qualifying level strictly beyond entry.
func (c *Composer) chooseTarget(state *models.StateDocument, tradeDirection string, entry float64, exclude string) *models.TakeProfit {
	type ranked struct {
		distance float64
		item     *candidate
		level    float64
	}
	var all []ranked
	for _, item := range collect(state, c.cfg.AnchorTimeframe, models.KindFVG, models.KindSNR, models.KindRB, models.KindFractal) {
		if item.id == exclude || models.IsTerminalStatus(item.status) || !item.qualifies() {
			continue
		}
		level := item.level
		if item.kind != models.KindFractal {
			level = item.high
			if tradeDirection == models.TradeLong {
				level = item.low
			}
		}
		var distance float64
		if tradeDirection == models.TradeLong {
			if level <= entry {
				continue
			}
			distance = level - entry
		} else {
			if level >= entry {
				continue
			}
			distance = entry - level
		}
		all = append(all, ranked{distance: distance, item: item, level: level})
	}
	if len(all) == 0 {
		return nil
	}

	if c.cfg.TPPreferZones {
		var zones []ranked
		for _, r := range all {
			if r.item.kind != models.KindFractal {
				zones = append(zones, r)
			}
		}
		if len(zones) > 0 {
			all = zones
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if !a.item.signal.Equal(b.item.signal) {
			return a.item.signal.Before(b.item.signal)
		}
		return a.item.id < b.item.id
	})
	win := all[0]
	return &models.TakeProfit{
		Price:         win.level,
		TargetElement: models.TargetRef{Type: win.item.label, ID: win.item.id},
	}
}
