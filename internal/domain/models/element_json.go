package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"AutoEye/pkg/util"
)

// ErrInvalidElement is returned when a persisted element lacks its required times or zone.
var ErrInvalidElement = errors.New("invalid element")

type elementJSON struct {
	ID            string         `json:"id"`
	ElementType   string         `json:"element_type"`
	Symbol        string         `json:"symbol"`
	Timeframe     string         `json:"timeframe"`
	Direction     string         `json:"direction"`
	FormationTime *string        `json:"formation_time"`
	FVGLow        *float64       `json:"fvg_low"`
	FVGHigh       *float64       `json:"fvg_high"`
	GapSize       *float64       `json:"gap_size"`
	C1Time        *string        `json:"c1_time"`
	C2Time        *string        `json:"c2_time"`
	C3Time        *string        `json:"c3_time"`
	Status        string         `json:"status"`
	TouchedTime   *string        `json:"touched_time"`
	MitigatedTime *string        `json:"mitigated_time"`
	FillPrice     *float64       `json:"fill_price"`
	FillPercent   *float64       `json:"fill_percent"`
	Metadata      map[string]any `json:"metadata"`
}

// MarshalJSON writes the stable element layout with the variant folded into metadata.
func (e *Element) MarshalJSON() ([]byte, error) {
	low, high, size := e.ZoneLow, e.ZoneHigh, e.ZoneSize()
	out := elementJSON{
		ID:            e.ID,
		ElementType:   string(e.Kind),
		Symbol:        e.Symbol,
		Timeframe:     e.Timeframe,
		Direction:     e.Direction,
		FormationTime: isoPtr(e.FormationTime),
		FVGLow:        &low,
		FVGHigh:       &high,
		GapSize:       &size,
		C1Time:        isoPtr(e.C1Time),
		C2Time:        isoPtr(e.C2Time),
		C3Time:        isoPtr(e.C3Time),
		Status:        e.Status,
		TouchedTime:   util.FormatISOPtr(e.TouchedTime),
		MitigatedTime: util.FormatISOPtr(e.MitigatedTime),
		FillPrice:     e.FillPrice,
		FillPercent:   e.FillPercent,
		Metadata:      e.metadata(),
	}
	return json.Marshal(out)
}

func (e *Element) metadata() map[string]any {
	meta := make(map[string]any, len(e.Extra)+16)
	for k, v := range e.Extra {
		meta[k] = v
	}
	switch {
	case e.Fractal != nil:
		m := e.Fractal
		meta["fractal_type"] = m.Type
		meta["pivot_time"] = isoOrNil(m.PivotTime)
		meta["confirm_time"] = isoOrNil(m.ConfirmTime)
		meta["extreme_price"] = m.ExtremePrice
		meta["l_price"] = m.LPrice
		meta["l_alt_price"] = m.LAltPrice
	case e.Gap != nil:
		if e.Gap.FillDepth != nil {
			meta["fill_depth"] = *e.Gap.FillDepth
		}
	case e.Break != nil:
		m := e.Break
		meta["origin_fractal_id"] = m.OriginFractalID
		meta["role"] = m.Role
		meta["break_type"] = m.BreakType
		meta["break_time"] = isoOrNil(m.BreakTime)
		meta["break_close"] = floatOrNil(m.BreakClose)
		meta["l_price"] = m.LPrice
		meta["extreme_price"] = m.ExtremePrice
		meta["departure_extreme_price"] = m.DepartureExtremePrice
		meta["departure_extreme_time"] = isoOrNil(m.DepartureExtremeTime)
		meta["departure_range_start_time"] = timePtrOrNil(m.DepartureRangeStart)
		meta["departure_range_end_time"] = timePtrOrNil(m.DepartureRangeEnd)
		meta["snr_low"] = e.ZoneLow
		meta["snr_high"] = e.ZoneHigh
		meta["retest_time"] = timePtrOrNil(m.RetestTime)
		meta["invalidated_time"] = timePtrOrNil(m.InvalidatedTime)
	case e.Block != nil:
		m := e.Block
		meta["rb_type"] = m.Type
		meta["origin_fractal_id"] = m.OriginFractalID
		meta["pivot_time"] = isoOrNil(m.PivotTime)
		meta["confirm_time"] = isoOrNil(m.ConfirmTime)
		meta["c1_time"] = isoOrNil(e.C1Time)
		meta["c2_time"] = isoOrNil(e.C2Time)
		meta["c3_time"] = isoOrNil(e.C3Time)
		meta["l_price"] = m.LPrice
		meta["l_alt_price"] = m.LAltPrice
		meta["extreme_price"] = m.ExtremePrice
		meta["rb_low"] = e.ZoneLow
		meta["rb_high"] = e.ZoneHigh
		meta["broken_time"] = timePtrOrNil(m.BrokenTime)
		if m.BrokenSide == "" {
			meta["broken_side"] = nil
		} else {
			meta["broken_side"] = m.BrokenSide
		}
	}
	return meta
}

// UnmarshalJSON decodes the stable element layout. Documents written by older versions
// may miss variant keys; those fall back to values derived from the common fields.
func (e *Element) UnmarshalJSON(b []byte) error {
	var raw elementJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	formation, ok1 := parseISOPtr(raw.FormationTime)
	c1, ok2 := parseISOPtr(raw.C1Time)
	c2, ok3 := parseISOPtr(raw.C2Time)
	c3, ok4 := parseISOPtr(raw.C3Time)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return fmt.Errorf("%w: missing candle times for %q", ErrInvalidElement, raw.ID)
	}
	if raw.FVGLow == nil || raw.FVGHigh == nil || raw.GapSize == nil {
		return fmt.Errorf("%w: missing zone for %q", ErrInvalidElement, raw.ID)
	}
	status := raw.Status
	if status == "" {
		status = StatusActive
	}
	*e = Element{
		ID:            raw.ID,
		Kind:          Kind(raw.ElementType),
		Symbol:        raw.Symbol,
		Timeframe:     strings.ToUpper(raw.Timeframe),
		Direction:     raw.Direction,
		FormationTime: formation,
		ZoneLow:       *raw.FVGLow,
		ZoneHigh:      *raw.FVGHigh,
		C1Time:        c1,
		C2Time:        c2,
		C3Time:        c3,
		Status:        status,
		TouchedTime:   optionalTime(raw.TouchedTime),
		MitigatedTime: optionalTime(raw.MitigatedTime),
		FillPrice:     raw.FillPrice,
		FillPercent:   raw.FillPercent,
	}
	meta := raw.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	known := e.decodeVariant(meta)
	for k, v := range meta {
		if _, ok := known[k]; ok {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[k] = v
	}
	return nil
}

func (e *Element) decodeVariant(meta map[string]any) map[string]struct{} {
	switch e.Kind {
	case KindFractal:
		m := &FractalMeta{Type: metaString(meta, "fractal_type", e.Direction)}
		m.PivotTime = metaTime(meta, "pivot_time", e.C2Time)
		m.ConfirmTime = metaTime(meta, "confirm_time", e.C3Time)
		if m.Type == FractalHigh {
			m.ExtremePrice = metaFloat(meta, "extreme_price", e.ZoneHigh)
			m.LPrice = metaFloat(meta, "l_price", e.ZoneLow)
		} else {
			m.ExtremePrice = metaFloat(meta, "extreme_price", e.ZoneLow)
			m.LPrice = metaFloat(meta, "l_price", e.ZoneHigh)
		}
		m.LAltPrice = metaFloat(meta, "l_alt_price", m.LPrice)
		e.Fractal = m
		return keySet("fractal_type", "pivot_time", "confirm_time", "extreme_price", "l_price", "l_alt_price")
	case KindFVG:
		m := &GapMeta{}
		if v, ok := toFloat(meta["fill_depth"]); ok {
			m.FillDepth = &v
		}
		e.Gap = m
		return keySet("fill_depth")
	case KindSNR:
		role := metaString(meta, "role", e.Direction)
		if role != RoleSupport && role != RoleResistance {
			role = RoleSupport
		}
		m := &BreakMeta{
			OriginFractalID: metaString(meta, "origin_fractal_id", ""),
			Role:            role,
			BreakType:       metaString(meta, "break_type", ""),
		}
		if m.BreakType != BreakUpClose && m.BreakType != BreakDownClose {
			if role == RoleSupport {
				m.BreakType = BreakUpClose
			} else {
				m.BreakType = BreakDownClose
			}
		}
		m.BreakTime = metaTime(meta, "break_time", e.FormationTime)
		if v, ok := toFloat(meta["break_close"]); ok {
			m.BreakClose = &v
		}
		e.ZoneLow = metaFloat(meta, "snr_low", e.ZoneLow)
		e.ZoneHigh = metaFloat(meta, "snr_high", e.ZoneHigh)
		if role == RoleSupport {
			m.LPrice = metaFloat(meta, "l_price", e.ZoneHigh)
			m.DepartureExtremePrice = metaFloat(meta, "departure_extreme_price", e.ZoneLow)
		} else {
			m.LPrice = metaFloat(meta, "l_price", e.ZoneLow)
			m.DepartureExtremePrice = metaFloat(meta, "departure_extreme_price", e.ZoneHigh)
		}
		m.ExtremePrice = metaFloat(meta, "extreme_price", m.DepartureExtremePrice)
		m.DepartureExtremeTime = metaTime(meta, "departure_extreme_time", m.BreakTime)
		m.DepartureRangeStart = metaTimePtr(meta, "departure_range_start_time")
		m.DepartureRangeEnd = metaTimePtr(meta, "departure_range_end_time")
		m.RetestTime = metaTimePtr(meta, "retest_time")
		m.InvalidatedTime = metaTimePtr(meta, "invalidated_time")
		e.Break = m
		return keySet("origin_fractal_id", "role", "break_type", "break_time", "break_close", "l_price",
			"extreme_price", "departure_extreme_price", "departure_extreme_time", "departure_range_start_time",
			"departure_range_end_time", "snr_low", "snr_high", "retest_time", "invalidated_time")
	case KindRB:
		rbType := metaString(meta, "rb_type", e.Direction)
		m := &BlockMeta{OriginFractalID: metaString(meta, "origin_fractal_id", "")}
		e.ZoneLow = metaFloat(meta, "rb_low", e.ZoneLow)
		e.ZoneHigh = metaFloat(meta, "rb_high", e.ZoneHigh)
		m.PivotTime = metaTime(meta, "pivot_time", e.C2Time)
		m.ConfirmTime = metaTime(meta, "confirm_time", e.FormationTime)
		if rbType == FractalHigh {
			m.LPrice = metaFloat(meta, "l_price", e.ZoneLow)
			m.ExtremePrice = metaFloat(meta, "extreme_price", e.ZoneHigh)
		} else {
			m.LPrice = metaFloat(meta, "l_price", e.ZoneHigh)
			m.ExtremePrice = metaFloat(meta, "extreme_price", e.ZoneLow)
		}
		if rbType != FractalHigh && rbType != FractalLow {
			rbType = FractalLow
			if m.ExtremePrice >= m.LPrice {
				rbType = FractalHigh
			}
		}
		m.Type = rbType
		m.LAltPrice = metaFloat(meta, "l_alt_price", m.LPrice)
		m.BrokenTime = metaTimePtr(meta, "broken_time")
		m.BrokenSide = metaString(meta, "broken_side", "")
		e.Block = m
		return keySet("rb_type", "origin_fractal_id", "pivot_time", "confirm_time", "c1_time", "c2_time",
			"c3_time", "l_price", "l_alt_price", "extreme_price", "rb_low", "rb_high", "broken_time", "broken_side")
	}
	return nil
}

func keySet(keys ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func isoPtr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := util.FormatISO(t)
	return &s
}

func isoOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return util.FormatISO(t)
}

func timePtrOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return util.FormatISO(*t)
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func parseISOPtr(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	return util.ParseISO(*s)
}

func optionalTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	return util.ParseISOPtr(*s)
}

func metaString(meta map[string]any, key, fallback string) string {
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func metaFloat(meta map[string]any, key string, fallback float64) float64 {
	if v, ok := toFloat(meta[key]); ok {
		return v
	}
	return fallback
}

func metaTime(meta map[string]any, key string, fallback time.Time) time.Time {
	if s, ok := meta[key].(string); ok {
		if t, ok := util.ParseISO(s); ok {
			return t
		}
	}
	return fallback
}

func metaTimePtr(meta map[string]any, key string) *time.Time {
	if s, ok := meta[key].(string); ok {
		if t, ok := util.ParseISO(s); ok {
			return &t
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
