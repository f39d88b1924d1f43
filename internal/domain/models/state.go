package models

import (
	"encoding/json"
	"sort"
	"time"
)

// StateSchemaNotes is written into the state schema marker.
const StateSchemaNotes = "State schema for market elements only"

// RequiredStateTimeframes are always present in a state document.
var RequiredStateTimeframes = []string{"M5", "H1"}

// Market is the quote block of a state document.
type Market struct {
	Price       *float64 `json:"price"`
	Bid         *float64 `json:"bid"`
	Ask         *float64 `json:"ask"`
	Source      string   `json:"source"`
	TickTimeUTC *ISOTime `json:"tick_time_utc"`
}

// HasPrice reports whether the block carries a usable price and tick time.
func (m Market) HasPrice() bool {
	return m.Price != nil && m.TickTimeUTC != nil && !m.TickTimeUTC.IsZero()
}

// StateDocument is the per-symbol market snapshot consumed by trend and scenarios.
type StateDocument struct {
	SchemaVersion string                     `json:"schema_version"`
	Symbol        string                     `json:"symbol"`
	UpdatedAtUTC  ISOTime                    `json:"updated_at_utc"`
	Market        Market                     `json:"market"`
	Timeframes    map[string]*StateTimeframe `json:"timeframes"`
}

// Timeframe returns the block for tf or an empty block.
func (d *StateDocument) Timeframe(tf string) *StateTimeframe {
	if d == nil || d.Timeframes == nil {
		return NewStateTimeframe()
	}
	if b, ok := d.Timeframes[tf]; ok && b != nil {
		return b
	}
	return NewStateTimeframe()
}

// StateTimeframe is one timeframe of a state document.
type StateTimeframe struct {
	Initialized    bool          `json:"initialized"`
	UpdatedAtUTC   *ISOTime      `json:"updated_at_utc"`
	LastBarTimeUTC *ISOTime      `json:"last_bar_time_utc"`
	Elements       StateElements `json:"elements"`
	State          StateBlock    `json:"state"`
}

// NewStateTimeframe returns an uninitialised block with empty lists.
func NewStateTimeframe() *StateTimeframe {
	return &StateTimeframe{
		Elements: NewStateElements(),
		State:    NewStateBlock(),
	}
}

// UnmarshalJSON accepts last_bar_time as an alias.
func (t *StateTimeframe) UnmarshalJSON(data []byte) error {
	var raw struct {
		Initialized    bool          `json:"initialized"`
		UpdatedAtUTC   *ISOTime      `json:"updated_at_utc"`
		LastBarTimeUTC *ISOTime      `json:"last_bar_time_utc"`
		LastBarTime    *ISOTime      `json:"last_bar_time"`
		Elements       StateElements `json:"elements"`
		State          StateBlock    `json:"state"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = StateTimeframe{
		Initialized:    raw.Initialized,
		UpdatedAtUTC:   nonZero(raw.UpdatedAtUTC),
		LastBarTimeUTC: nonZero(raw.LastBarTimeUTC),
		Elements:       raw.Elements,
		State:          raw.State,
	}
	if t.LastBarTimeUTC == nil {
		t.LastBarTimeUTC = nonZero(raw.LastBarTime)
	}
	t.Elements.ensure()
	t.State.ensure()
	return nil
}

// StateBlock records per-kind initialisation.
type StateBlock struct {
	InitializedElements     map[string]bool    `json:"initialized_elements"`
	LastBarTimeByElementUTC map[string]ISOTime `json:"last_bar_time_by_element_utc"`
}

// NewStateBlock returns an empty block.
func NewStateBlock() StateBlock {
	return StateBlock{
		InitializedElements:     map[string]bool{},
		LastBarTimeByElementUTC: map[string]ISOTime{},
	}
}

func (b *StateBlock) ensure() {
	if b.InitializedElements == nil {
		b.InitializedElements = map[string]bool{}
	}
	if b.LastBarTimeByElementUTC == nil {
		b.LastBarTimeByElementUTC = map[string]ISOTime{}
	}
}

// StateElements groups the projected elements of a timeframe.
type StateElements struct {
	FVG      []StateFVG     `json:"fvg"`
	SNR      []StateSNR     `json:"snr"`
	Fractals []StateFractal `json:"fractals"`
	RB       []StateRB      `json:"rb"`
}

// NewStateElements returns empty, non-nil lists.
func NewStateElements() StateElements {
	return StateElements{FVG: []StateFVG{}, SNR: []StateSNR{}, Fractals: []StateFractal{}, RB: []StateRB{}}
}

// UnmarshalJSON accepts "fractal" as an alias of "fractals" and drops terminal entries.
func (s *StateElements) UnmarshalJSON(data []byte) error {
	var raw struct {
		FVG      []StateFVG     `json:"fvg"`
		SNR      []StateSNR     `json:"snr"`
		Fractals []StateFractal `json:"fractals"`
		Fractal  []StateFractal `json:"fractal"`
		RB       []StateRB      `json:"rb"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fractals := raw.Fractals
	if fractals == nil {
		fractals = raw.Fractal
	}
	*s = StateElements{}
	for _, v := range raw.FVG {
		if !IsTerminalStatus(v.Status) {
			s.FVG = append(s.FVG, v)
		}
	}
	for _, v := range raw.SNR {
		if !IsTerminalStatus(v.Status) {
			s.SNR = append(s.SNR, v)
		}
	}
	for _, v := range fractals {
		if !IsTerminalStatus(v.Status) {
			s.Fractals = append(s.Fractals, v)
		}
	}
	for _, v := range raw.RB {
		if !IsTerminalStatus(v.Status) {
			s.RB = append(s.RB, v)
		}
	}
	s.ensure()
	return nil
}

func (s *StateElements) ensure() {
	if s.FVG == nil {
		s.FVG = []StateFVG{}
	}
	if s.SNR == nil {
		s.SNR = []StateSNR{}
	}
	if s.Fractals == nil {
		s.Fractals = []StateFractal{}
	}
	if s.RB == nil {
		s.RB = []StateRB{}
	}
}

// StateFVG is the state projection of a gap.
type StateFVG struct {
	ID               string   `json:"id"`
	ElementType      string   `json:"element_type"`
	Symbol           string   `json:"symbol"`
	Timeframe        string   `json:"timeframe"`
	Direction        string   `json:"direction"`
	FormationTimeUTC *ISOTime `json:"formation_time_utc"`
	C3TimeUTC        *ISOTime `json:"c3_time_utc"`
	FVGLow           float64  `json:"fvg_low"`
	FVGHigh          float64  `json:"fvg_high"`
	Status           string   `json:"status"`
	TouchedTimeUTC   *ISOTime `json:"touched_time_utc"`
	MitigatedTimeUTC *ISOTime `json:"mitigated_time_utc"`
}

// UnmarshalJSON folds legacy keys without the _utc suffix.
func (v *StateFVG) UnmarshalJSON(data []byte) error {
	type plain StateFVG
	var raw struct {
		plain
		FormationTime *ISOTime `json:"formation_time"`
		C3Time        *ISOTime `json:"c3_time"`
		TouchedTime   *ISOTime `json:"touched_time"`
		MitigatedTime *ISOTime `json:"mitigated_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = StateFVG(raw.plain)
	v.FormationTimeUTC = firstTime(v.FormationTimeUTC, raw.FormationTime)
	v.C3TimeUTC = firstTime(v.C3TimeUTC, raw.C3Time)
	v.TouchedTimeUTC = firstTime(v.TouchedTimeUTC, raw.TouchedTime)
	v.MitigatedTimeUTC = firstTime(v.MitigatedTimeUTC, raw.MitigatedTime)
	return nil
}

// StateSNR is the state projection of a structure break.
type StateSNR struct {
	ID                 string   `json:"id"`
	ElementType        string   `json:"element_type"`
	Symbol             string   `json:"symbol"`
	Timeframe          string   `json:"timeframe"`
	Role               string   `json:"role"`
	BreakType          string   `json:"break_type"`
	BreakTimeUTC       *ISOTime `json:"break_time_utc"`
	SNRLow             float64  `json:"snr_low"`
	SNRHigh            float64  `json:"snr_high"`
	Status             string   `json:"status"`
	RetestTimeUTC      *ISOTime `json:"retest_time_utc"`
	InvalidatedTimeUTC *ISOTime `json:"invalidated_time_utc"`
}

// UnmarshalJSON folds legacy keys without the _utc suffix.
func (v *StateSNR) UnmarshalJSON(data []byte) error {
	type plain StateSNR
	var raw struct {
		plain
		BreakTime       *ISOTime `json:"break_time"`
		RetestTime      *ISOTime `json:"retest_time"`
		InvalidatedTime *ISOTime `json:"invalidated_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = StateSNR(raw.plain)
	v.BreakTimeUTC = firstTime(v.BreakTimeUTC, raw.BreakTime)
	v.RetestTimeUTC = firstTime(v.RetestTimeUTC, raw.RetestTime)
	v.InvalidatedTimeUTC = firstTime(v.InvalidatedTimeUTC, raw.InvalidatedTime)
	return nil
}

// StateRB is the state projection of a range block.
type StateRB struct {
	ID             string   `json:"id"`
	ElementType    string   `json:"element_type"`
	Symbol         string   `json:"symbol"`
	Timeframe      string   `json:"timeframe"`
	RBType         string   `json:"rb_type"`
	ConfirmTimeUTC *ISOTime `json:"confirm_time_utc"`
	RBLow          float64  `json:"rb_low"`
	RBHigh         float64  `json:"rb_high"`
	Status         string   `json:"status"`
	BrokenTimeUTC  *ISOTime `json:"broken_time_utc"`
}

// UnmarshalJSON folds legacy keys without the _utc suffix.
func (v *StateRB) UnmarshalJSON(data []byte) error {
	type plain StateRB
	var raw struct {
		plain
		ConfirmTime *ISOTime `json:"confirm_time"`
		BrokenTime  *ISOTime `json:"broken_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = StateRB(raw.plain)
	v.ConfirmTimeUTC = firstTime(v.ConfirmTimeUTC, raw.ConfirmTime)
	v.BrokenTimeUTC = firstTime(v.BrokenTimeUTC, raw.BrokenTime)
	return nil
}

// StateFractal is the state projection of a fractal.
type StateFractal struct {
	ID             string   `json:"id"`
	ElementType    string   `json:"element_type"`
	Symbol         string   `json:"symbol"`
	Timeframe      string   `json:"timeframe"`
	FractalType    string   `json:"fractal_type"`
	ConfirmTimeUTC *ISOTime `json:"confirm_time_utc"`
	ExtremePrice   float64  `json:"extreme_price"`
	LPrice         float64  `json:"l_price"`
	Status         string   `json:"status,omitempty"`
}

// UnmarshalJSON folds legacy keys without the _utc suffix.
func (v *StateFractal) UnmarshalJSON(data []byte) error {
	type plain StateFractal
	var raw struct {
		plain
		ConfirmTime *ISOTime `json:"confirm_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = StateFractal(raw.plain)
	v.ConfirmTimeUTC = firstTime(v.ConfirmTimeUTC, raw.ConfirmTime)
	return nil
}

// ProjectFVG converts a gap element into its state form.
func ProjectFVG(e *Element) StateFVG {
	return StateFVG{
		ID:               e.ID,
		ElementType:      string(KindFVG),
		Symbol:           e.Symbol,
		Timeframe:        e.Timeframe,
		Direction:        e.Direction,
		FormationTimeUTC: isoTimeOf(e.FormationTime),
		C3TimeUTC:        isoTimeOf(e.C3Time),
		FVGLow:           e.ZoneLow,
		FVGHigh:          e.ZoneHigh,
		Status:           e.Status,
		TouchedTimeUTC:   ISOTimePtr(e.TouchedTime),
		MitigatedTimeUTC: ISOTimePtr(e.MitigatedTime),
	}
}

// ProjectSNR converts a structure break into its state form.
func ProjectSNR(e *Element) StateSNR {
	out := StateSNR{
		ID:          e.ID,
		ElementType: string(KindSNR),
		Symbol:      e.Symbol,
		Timeframe:   e.Timeframe,
		Role:        e.Direction,
		SNRLow:      e.ZoneLow,
		SNRHigh:     e.ZoneHigh,
		Status:      e.Status,
	}
	if m := e.Break; m != nil {
		out.Role = m.Role
		out.BreakType = m.BreakType
		out.BreakTimeUTC = isoTimeOf(m.BreakTime)
		out.RetestTimeUTC = ISOTimePtr(m.RetestTime)
		out.InvalidatedTimeUTC = ISOTimePtr(m.InvalidatedTime)
	}
	if out.BreakTimeUTC == nil {
		out.BreakTimeUTC = isoTimeOf(e.FormationTime)
	}
	return out
}

// ProjectRB converts a range block into its state form.
func ProjectRB(e *Element) StateRB {
	out := StateRB{
		ID:             e.ID,
		ElementType:    string(KindRB),
		Symbol:         e.Symbol,
		Timeframe:      e.Timeframe,
		RBType:         e.Direction,
		ConfirmTimeUTC: isoTimeOf(e.FormationTime),
		RBLow:          e.ZoneLow,
		RBHigh:         e.ZoneHigh,
		Status:         e.Status,
	}
	if m := e.Block; m != nil {
		out.RBType = m.Type
		if !m.ConfirmTime.IsZero() {
			out.ConfirmTimeUTC = isoTimeOf(m.ConfirmTime)
		}
		out.BrokenTimeUTC = ISOTimePtr(m.BrokenTime)
	}
	return out
}

// ProjectFractal converts a fractal into its state form.
func ProjectFractal(e *Element) StateFractal {
	out := StateFractal{
		ID:             e.ID,
		ElementType:    string(KindFractal),
		Symbol:         e.Symbol,
		Timeframe:      e.Timeframe,
		FractalType:    e.Direction,
		ConfirmTimeUTC: isoTimeOf(e.C3Time),
	}
	if m := e.Fractal; m != nil {
		out.FractalType = m.Type
		out.ConfirmTimeUTC = isoTimeOf(m.ConfirmTime)
		out.ExtremePrice = m.ExtremePrice
		out.LPrice = m.LPrice
	}
	return out
}

// Sort orders every list by its primary time, then id.
func (s *StateElements) Sort() {
	sortByTimeID(len(s.FVG), func(i int) (time.Time, string) {
		return firstNonNil(s.FVG[i].FormationTimeUTC, s.FVG[i].C3TimeUTC), s.FVG[i].ID
	}, func(i, j int) { s.FVG[i], s.FVG[j] = s.FVG[j], s.FVG[i] })
	sortByTimeID(len(s.SNR), func(i int) (time.Time, string) {
		return firstNonNil(s.SNR[i].BreakTimeUTC), s.SNR[i].ID
	}, func(i, j int) { s.SNR[i], s.SNR[j] = s.SNR[j], s.SNR[i] })
	sortByTimeID(len(s.Fractals), func(i int) (time.Time, string) {
		return firstNonNil(s.Fractals[i].ConfirmTimeUTC), s.Fractals[i].ID
	}, func(i, j int) { s.Fractals[i], s.Fractals[j] = s.Fractals[j], s.Fractals[i] })
	sortByTimeID(len(s.RB), func(i int) (time.Time, string) {
		return firstNonNil(s.RB[i].ConfirmTimeUTC), s.RB[i].ID
	}, func(i, j int) { s.RB[i], s.RB[j] = s.RB[j], s.RB[i] })
}

type byTimeID struct {
	n    int
	key  func(int) (time.Time, string)
	swap func(int, int)
}

func (b byTimeID) Len() int      { return b.n }
func (b byTimeID) Swap(i, j int) { b.swap(i, j) }
func (b byTimeID) Less(i, j int) bool {
	ti, idi := b.key(i)
	tj, idj := b.key(j)
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	return idi < idj
}

func sortByTimeID(n int, key func(int) (time.Time, string), swap func(int, int)) {
	sort.Stable(byTimeID{n: n, key: key, swap: swap})
}

func firstNonNil(values ...*ISOTime) time.Time {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v.Time
		}
	}
	return time.Time{}
}

func firstTime(values ...*ISOTime) *ISOTime {
	for _, v := range values {
		if v != nil && !v.IsZero() {
			return v
		}
	}
	return nil
}

func isoTimeOf(t time.Time) *ISOTime {
	if t.IsZero() {
		return nil
	}
	v := NewISOTime(t)
	return &v
}

// SchemaMarker is the state directory schema_version.json file.
type SchemaMarker struct {
	SchemaVersion string  `json:"schema_version"`
	UpdatedAtUTC  ISOTime `json:"updated_at_utc"`
	Notes         string  `json:"notes"`
}
