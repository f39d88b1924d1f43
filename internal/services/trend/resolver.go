package trend

import (
	"sort"
	"time"

	"AutoEye/internal/domain/models"
)

const (
	DefaultTimeframe    = "H1"
	DefaultHistoryLimit = 50
)

// Resolver derives a symbol's trend from the newest qualifying gap or structure
// break on one timeframe of its state document.
type Resolver struct {
	timeframe    string
	historyLimit int
}

// NewResolver creates a resolver. Zero values fall back to H1 and 50 entries.
func NewResolver(timeframe string, historyLimit int) *Resolver {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	return &Resolver{timeframe: timeframe, historyLimit: historyLimit}
}

// Timeframe is the timeframe signals are read from.
func (r *Resolver) Timeframe() string { return r.timeframe }

type signal struct {
	models.TrendSignal
	at time.Time
}

// LatestSignal returns the newest signal, nil when the timeframe has none.
func (r *Resolver) LatestSignal(state *models.StateDocument) *models.TrendSignal {
	if state == nil {
		return nil
	}
	block := state.Timeframe(r.timeframe)
	var signals []signal

	for _, g := range block.Elements.FVG {
		if g.Status != models.StatusActive && g.Status != models.StatusTouched {
			continue
		}
		var polarity string
		switch g.Direction {
		case models.DirectionBullish:
			polarity = models.PolarityPositive
		case models.DirectionBearish:
			polarity = models.PolarityNegative
		default:
			continue
		}
		at := firstTime(g.FormationTimeUTC, g.C3TimeUTC)
		if at.IsZero() || g.ID == "" {
			continue
		}
		signals = append(signals, newSignal(string(models.KindFVG), polarity, at, g.ID))
	}

	for _, s := range block.Elements.SNR {
		if s.Status != models.StatusActive && s.Status != models.StatusRetested {
			continue
		}
		var polarity string
		switch {
		case s.Role == models.RoleSupport || s.BreakType == models.BreakUpClose:
			polarity = models.PolarityPositive
		case s.Role == models.RoleResistance || s.BreakType == models.BreakDownClose:
			polarity = models.PolarityNegative
		default:
			continue
		}
		at := firstTime(s.BreakTimeUTC)
		if at.IsZero() || s.ID == "" {
			continue
		}
		signals = append(signals, newSignal(string(models.KindSNR), polarity, at, s.ID))
	}

	if len(signals) == 0 {
		return nil
	}
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		if a.ElementID != b.ElementID {
			return a.ElementID < b.ElementID
		}
		return a.Type < b.Type
	})
	last := signals[len(signals)-1].TrendSignal
	return &last
}

// Build computes the next trend document. existing may be nil.
func (r *Resolver) Build(symbol string, state *models.StateDocument, existing *models.TrendDocument, now time.Time) *models.TrendDocument {
	src := r.LatestSignal(state)
	direction := DirectionOf(src)
	stamp := models.NewISOTime(now)

	var history []models.TrendChange
	var old string
	if existing != nil {
		history = append(history, existing.History...)
		old = existing.Trend.Direction
	}
	if isDirection(old) && old != direction {
		history = append(history, models.TrendChange{
			ChangedAtUTC: stamp,
			Direction:    direction,
			SourceSignal: src,
		})
	}
	if len(history) > r.historyLimit {
		history = history[len(history)-r.historyLimit:]
	}
	if history == nil {
		history = []models.TrendChange{}
	}

	return &models.TrendDocument{
		SchemaVersion: models.SchemaVersion,
		Symbol:        symbol,
		UpdatedAtUTC:  stamp,
		Trend: models.TrendBlock{
			Timeframe:       r.timeframe,
			Direction:       direction,
			DeterminedAtUTC: stamp,
			SourceSignal:    src,
		},
		History: history,
	}
}

// ShouldWrite is true on the first write or when direction, source element or signal
// time changed.
func ShouldWrite(existing, next *models.TrendDocument) bool {
	if existing == nil {
		return true
	}
	if existing.Trend.Direction != next.Trend.Direction {
		return true
	}
	a, b := existing.Trend.SourceSignal, next.Trend.SourceSignal
	if a == nil || b == nil {
		return (a == nil) != (b == nil)
	}
	return a.ElementID != b.ElementID || !a.SignalTimeUTC.Equal(b.SignalTimeUTC.Time)
}

// DirectionOf maps a signal polarity to a trend direction.
func DirectionOf(s *models.TrendSignal) string {
	if s == nil {
		return models.TrendNeutral
	}
	switch s.Polarity {
	case models.PolarityPositive:
		return models.TrendBullish
	case models.PolarityNegative:
		return models.TrendBearish
	}
	return models.TrendNeutral
}

func isDirection(d string) bool {
	return d == models.TrendBullish || d == models.TrendBearish || d == models.TrendNeutral
}

func newSignal(kind, polarity string, at time.Time, id string) signal {
	return signal{
		TrendSignal: models.TrendSignal{
			Type:          kind,
			Polarity:      polarity,
			SignalTimeUTC: models.NewISOTime(at),
			ElementID:     id,
		},
		at: at,
	}
}

func firstTime(values ...*models.ISOTime) time.Time {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v.Time
		}
	}
	return time.Time{}
}
