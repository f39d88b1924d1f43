package scenario

import (
	"math"
	"strings"
	"time"

	"AutoEye/internal/domain/models"
)

var (
	gapStatuses   = map[string]bool{models.StatusActive: true, models.StatusTouched: true, models.StatusMitigatedPartial: true}
	breakStatuses = map[string]bool{models.StatusActive: true, models.StatusRetested: true}
	blockStatuses = map[string]bool{models.StatusActive: true}
)

// ref identifies a state element by its timeframe label (h1_fvg, m5_snr, ...) and id.
type ref struct {
	label string
	id    string
}

// candidate is a state element reduced to what the composer ranks on.
type candidate struct {
	ref
	kind        models.Kind
	status      string
	direction   string
	signal      time.Time
	interaction *time.Time
	low, high   float64
	level       float64

	// filled when prepared as a start element
	start time.Time
}

func (c *candidate) size() float64 { return math.Max(0, c.high-c.low) }

func (c *candidate) qualifies() bool {
	switch c.kind {
	case models.KindFVG:
		return gapStatuses[c.status]
	case models.KindSNR:
		return breakStatuses[c.status]
	case models.KindRB:
		return blockStatuses[c.status]
	}
	return true
}

func label(tf string, kind models.Kind) string {
	return strings.ToLower(tf) + "_" + string(kind)
}

func zone(a, b float64) (float64, float64) {
	return math.Min(a, b), math.Max(a, b)
}

func firstTime(values ...*models.ISOTime) (time.Time, bool) {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v.Time, true
		}
	}
	return time.Time{}, false
}

func normStatus(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// collect normalizes the state elements of one timeframe for the given kinds.
// Elements without id, direction or signal time are skipped.
func collect(state *models.StateDocument, tf string, kinds ...models.Kind) []*candidate {
	block := state.Timeframe(tf)
	var out []*candidate
	for _, kind := range kinds {
		switch kind {
		case models.KindFVG:
			for _, g := range block.Elements.FVG {
				at, ok := firstTime(g.FormationTimeUTC, g.C3TimeUTC)
				dir := strings.ToLower(g.Direction)
				if g.ID == "" || !ok || (dir != models.DirectionBullish && dir != models.DirectionBearish) {
					continue
				}
				c := &candidate{ref: ref{label(tf, kind), g.ID}, kind: kind, status: normStatus(g.Status), direction: dir, signal: at}
				c.low, c.high = zone(g.FVGLow, g.FVGHigh)
				if t, ok := firstTime(g.TouchedTimeUTC); ok {
					c.interaction = &t
				}
				out = append(out, c)
			}
		case models.KindSNR:
			for _, s := range block.Elements.SNR {
				at, ok := firstTime(s.BreakTimeUTC)
				dir := breakDirection(s.Role, s.BreakType)
				if s.ID == "" || !ok || dir == "" {
					continue
				}
				c := &candidate{ref: ref{label(tf, kind), s.ID}, kind: kind, status: normStatus(s.Status), direction: dir, signal: at}
				c.low, c.high = zone(s.SNRLow, s.SNRHigh)
				if t, ok := firstTime(s.RetestTimeUTC); ok {
					c.interaction = &t
				}
				out = append(out, c)
			}
		case models.KindRB:
			for _, b := range block.Elements.RB {
				at, ok := firstTime(b.ConfirmTimeUTC)
				var dir string
				switch strings.ToLower(b.RBType) {
				case models.FractalLow:
					dir = models.DirectionBullish
				case models.FractalHigh:
					dir = models.DirectionBearish
				}
				if b.ID == "" || !ok || dir == "" {
					continue
				}
				c := &candidate{ref: ref{label(tf, kind), b.ID}, kind: kind, status: normStatus(b.Status), direction: dir, signal: at}
				c.low, c.high = zone(b.RBLow, b.RBHigh)
				out = append(out, c)
			}
		case models.KindFractal:
			for _, f := range block.Elements.Fractals {
				at, ok := firstTime(f.ConfirmTimeUTC)
				if f.ID == "" || !ok {
					continue
				}
				out = append(out, &candidate{
					ref:    ref{label(tf, kind), f.ID},
					kind:   kind,
					status: normStatus(f.Status),
					signal: at,
					low:    f.ExtremePrice,
					high:   f.ExtremePrice,
					level:  f.ExtremePrice,
				})
			}
		}
	}
	return out
}

func breakDirection(role, breakType string) string {
	role, breakType = strings.ToLower(role), strings.ToLower(breakType)
	switch {
	case role == models.RoleSupport || breakType == models.BreakUpClose:
		return models.DirectionBullish
	case role == models.RoleResistance || breakType == models.BreakDownClose:
		return models.DirectionBearish
	}
	return ""
}

// stateIndex maps every anchor and confirmation timeframe element to its status.
func stateIndex(state *models.StateDocument, timeframes ...string) map[ref]string {
	index := map[ref]string{}
	for _, tf := range timeframes {
		for _, c := range collect(state, tf, models.KindFVG, models.KindSNR, models.KindRB, models.KindFractal) {
			index[c.ref] = c.status
		}
	}
	return index
}

func distanceToPrice(c *candidate, price *float64) float64 {
	if price == nil {
		return 0
	}
	p := *price
	if c.low <= p && p <= c.high {
		return 0
	}
	return math.Min(math.Abs(p-c.low), math.Abs(p-c.high))
}

func overlaps(a, b *candidate) bool {
	return math.Min(a.high, b.high) >= math.Max(a.low, b.low)
}
