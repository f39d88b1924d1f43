package detectors

import "strings"

// Fill rules for gap mitigation.
const (
	FillRuleTouch = "touch"
	FillRuleFull  = "full"
	FillRuleBoth  = "both"
)

// Departure range anchors for structure breaks.
const (
	DepartureFromPivot   = "pivot"
	DepartureFromConfirm = "confirm"
)

// Range-block break modes.
const (
	BreakModeClose = "close"
	BreakModeWick  = "wick"
)

// Config holds the detector tuning knobs.
type Config struct {
	MinGapPoints          float64
	RequireDisplacement   bool
	DisplacementK         float64
	ATRPeriod             int
	MedianBodyPeriod      int
	FillRule              string
	SNRDepartureStart     string
	SNRIncludeBreakCandle bool
	RBBreakMode           string
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		DisplacementK:     1.5,
		ATRPeriod:         14,
		MedianBodyPeriod:  20,
		FillRule:          FillRuleBoth,
		SNRDepartureStart: DepartureFromPivot,
		RBBreakMode:       BreakModeClose,
	}
}

func (c Config) fillRule() string {
	switch r := strings.ToLower(strings.TrimSpace(c.FillRule)); r {
	case FillRuleTouch, FillRuleFull, FillRuleBoth:
		return r
	}
	return FillRuleBoth
}

func (c Config) departureStart() string {
	if strings.ToLower(strings.TrimSpace(c.SNRDepartureStart)) == DepartureFromConfirm {
		return DepartureFromConfirm
	}
	return DepartureFromPivot
}

func (c Config) wickBreaks() bool {
	return strings.ToLower(strings.TrimSpace(c.RBBreakMode)) == BreakModeWick
}
