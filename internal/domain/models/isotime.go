package models

import (
	"encoding/json"
	"time"

	"AutoEye/pkg/util"
)

// ISOTime is a UTC instant that travels as "2006-01-02T15:04:05+00:00".
type ISOTime struct {
	time.Time
}

// NewISOTime wraps t in UTC.
func NewISOTime(t time.Time) ISOTime { return ISOTime{Time: t.UTC()} }

// ISOTimePtr returns nil for a nil time.
func ISOTimePtr(t *time.Time) *ISOTime {
	if t == nil {
		return nil
	}
	v := NewISOTime(*t)
	return &v
}

// TimePtr unwraps a nullable ISOTime.
func (t *ISOTime) TimePtr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func (t ISOTime) String() string { return util.FormatISO(t.Time) }

func (t ISOTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(util.FormatISO(t.Time))
}

// UnmarshalJSON is lenient: anything that is not a parseable string leaves the zero value.
func (t *ISOTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	parsed, ok := util.ParseISO(s)
	if !ok {
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed
	return nil
}
