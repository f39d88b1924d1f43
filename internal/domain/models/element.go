package models

import (
	"math"
	"time"
)

// Kind identifies an element family. The value is the persisted element_type.
type Kind string

const (
	KindFractal Kind = "fractal"
	KindFVG     Kind = "fvg"
	KindSNR     Kind = "snr"
	KindRB      Kind = "rb"
)

// ParseKind accepts the persisted element_type and a few aliases.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "fractal", "fractals":
		return KindFractal, true
	case "fvg":
		return KindFVG, true
	case "snr":
		return KindSNR, true
	case "rb":
		return KindRB, true
	}
	return "", false
}

// Element statuses.
const (
	StatusActive           = "active"
	StatusTouched          = "touched"
	StatusMitigatedPartial = "mitigated_partial"
	StatusMitigatedFull    = "mitigated_full"
	StatusRetested         = "retested"
	StatusInvalidated      = "invalidated"
	StatusBroken           = "broken"
	StatusExpired          = "expired"
)

// Directions and element sub-types.
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"

	FractalHigh = "high"
	FractalLow  = "low"

	RoleSupport    = "support"
	RoleResistance = "resistance"

	BreakUpClose   = "break_up_close"
	BreakDownClose = "break_down_close"

	BrokenUp   = "up"
	BrokenDown = "down"
)

// IsTerminalStatus reports whether status ends an element lifecycle.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusInvalidated, StatusMitigatedFull, StatusBroken, StatusExpired:
		return true
	}
	return false
}

// FractalMeta is the variant data of a three-bar pivot.
type FractalMeta struct {
	Type         string
	PivotTime    time.Time
	ConfirmTime  time.Time
	ExtremePrice float64
	LPrice       float64
	LAltPrice    float64
}

// GapMeta is the variant data of a fair value gap.
type GapMeta struct {
	// FillDepth is the deepest penetration from the near edge, clamped to the zone size.
	FillDepth *float64
}

// BreakMeta is the variant data of a structure break.
type BreakMeta struct {
	OriginFractalID       string
	Role                  string
	BreakType             string
	BreakTime             time.Time
	BreakClose            *float64
	LPrice                float64
	ExtremePrice          float64
	DepartureExtremePrice float64
	DepartureExtremeTime  time.Time
	DepartureRangeStart   *time.Time
	DepartureRangeEnd     *time.Time
	RetestTime            *time.Time
	InvalidatedTime       *time.Time
}

// BlockMeta is the variant data of a range block.
type BlockMeta struct {
	Type            string
	OriginFractalID string
	PivotTime       time.Time
	ConfirmTime     time.Time
	LPrice          float64
	LAltPrice       float64
	ExtremePrice    float64
	BrokenTime      *time.Time
	BrokenSide      string
}

// Element is a detected market structure. Exactly one of the variant pointers is set,
// matching Kind.
type Element struct {
	ID            string
	Kind          Kind
	Symbol        string
	Timeframe     string
	Direction     string
	FormationTime time.Time
	ZoneLow       float64
	ZoneHigh      float64
	C1Time        time.Time
	C2Time        time.Time
	C3Time        time.Time
	Status        string
	TouchedTime   *time.Time
	MitigatedTime *time.Time
	FillPrice     *float64
	FillPercent   *float64

	Fractal *FractalMeta
	Gap     *GapMeta
	Break   *BreakMeta
	Block   *BlockMeta

	Extra map[string]any
}

// ZoneSize is the zone height, never negative.
func (e *Element) ZoneSize() float64 {
	return math.Max(0, e.ZoneHigh-e.ZoneLow)
}

// IsTerminal reports whether the element lifecycle has ended.
func (e *Element) IsTerminal() bool { return IsTerminalStatus(e.Status) }

// Clone returns a deep copy.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := *e
	c.TouchedTime = cloneTime(e.TouchedTime)
	c.MitigatedTime = cloneTime(e.MitigatedTime)
	c.FillPrice = cloneFloat(e.FillPrice)
	c.FillPercent = cloneFloat(e.FillPercent)
	if e.Fractal != nil {
		m := *e.Fractal
		c.Fractal = &m
	}
	if e.Gap != nil {
		c.Gap = &GapMeta{FillDepth: cloneFloat(e.Gap.FillDepth)}
	}
	if e.Break != nil {
		m := *e.Break
		m.BreakClose = cloneFloat(e.Break.BreakClose)
		m.DepartureRangeStart = cloneTime(e.Break.DepartureRangeStart)
		m.DepartureRangeEnd = cloneTime(e.Break.DepartureRangeEnd)
		m.RetestTime = cloneTime(e.Break.RetestTime)
		m.InvalidatedTime = cloneTime(e.Break.InvalidatedTime)
		c.Break = &m
	}
	if e.Block != nil {
		m := *e.Block
		m.BrokenTime = cloneTime(e.Block.BrokenTime)
		c.Block = &m
	}
	if e.Extra != nil {
		c.Extra = make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// SignalTime is the instant the element became actionable: break time for SNR,
// confirm time for fractals and blocks, formation time otherwise.
func (e *Element) SignalTime() time.Time {
	switch {
	case e.Break != nil && !e.Break.BreakTime.IsZero():
		return e.Break.BreakTime
	case e.Fractal != nil && !e.Fractal.ConfirmTime.IsZero():
		return e.Fractal.ConfirmTime
	case e.Block != nil && !e.Block.ConfirmTime.IsZero():
		return e.Block.ConfirmTime
	}
	return e.FormationTime
}

// TimePtr returns a pointer to a UTC copy of t.
func TimePtr(t time.Time) *time.Time {
	v := t.UTC()
	return &v
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// SameTime compares two nullable instants.
func SameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// SameFloat compares two nullable floats.
func SameFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
