package models

import (
	"encoding/json"
	"sort"
	"time"
)

// SchemaVersion is written into every persisted document.
const SchemaVersion = "1.0.0"

// TimeframeBlock is the per-timeframe section of an element document.
type TimeframeBlock struct {
	Initialized    bool       `json:"initialized"`
	UpdatedAtUTC   *ISOTime   `json:"updated_at_utc"`
	LastBarTimeUTC *ISOTime   `json:"last_bar_time_utc"`
	Elements       []*Element `json:"elements"`
}

// UnmarshalJSON accepts last_bar_time as an alias of last_bar_time_utc and skips
// elements that do not decode.
func (b *TimeframeBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Initialized    bool              `json:"initialized"`
		UpdatedAtUTC   *ISOTime          `json:"updated_at_utc"`
		LastBarTimeUTC *ISOTime          `json:"last_bar_time_utc"`
		LastBarTime    *ISOTime          `json:"last_bar_time"`
		Elements       []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = TimeframeBlock{
		Initialized:    raw.Initialized,
		UpdatedAtUTC:   nonZero(raw.UpdatedAtUTC),
		LastBarTimeUTC: nonZero(raw.LastBarTimeUTC),
	}
	if b.LastBarTimeUTC == nil {
		b.LastBarTimeUTC = nonZero(raw.LastBarTime)
	}
	b.Elements = make([]*Element, 0, len(raw.Elements))
	for _, item := range raw.Elements {
		var e Element
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		b.Elements = append(b.Elements, &e)
	}
	return nil
}

// ElementDocument is the per-symbol element store file.
type ElementDocument struct {
	SchemaVersion string                     `json:"schema_version"`
	Symbol        string                     `json:"symbol"`
	UpdatedAtUTC  ISOTime                    `json:"updated_at_utc"`
	Timeframes    map[string]*TimeframeBlock `json:"timeframes"`
}

// NewElementDocument returns an empty document for symbol.
func NewElementDocument(symbol string) *ElementDocument {
	return &ElementDocument{
		SchemaVersion: SchemaVersion,
		Symbol:        symbol,
		Timeframes:    map[string]*TimeframeBlock{},
	}
}

// Block returns the block for tf, creating an empty one when absent.
func (d *ElementDocument) Block(tf string) *TimeframeBlock {
	if d.Timeframes == nil {
		d.Timeframes = map[string]*TimeframeBlock{}
	}
	b, ok := d.Timeframes[tf]
	if !ok || b == nil {
		b = &TimeframeBlock{Elements: []*Element{}}
		d.Timeframes[tf] = b
	}
	return b
}

// LatestBlockUpdate is the newest updated_at_utc across blocks, nil when none.
func (d *ElementDocument) LatestBlockUpdate() *time.Time {
	var latest *time.Time
	for _, b := range d.Timeframes {
		if b == nil || b.UpdatedAtUTC == nil {
			continue
		}
		t := b.UpdatedAtUTC.Time
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest
}

// SortElements orders elements by (c3 time, id).
func SortElements(elements []*Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i], elements[j]
		if !a.C3Time.Equal(b.C3Time) {
			return a.C3Time.Before(b.C3Time)
		}
		return a.ID < b.ID
	})
}

func nonZero(t *ISOTime) *ISOTime {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}
