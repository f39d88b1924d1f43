package util

import (
    "fmt"
    "strconv"
    "strings"
    "time"
)

const isoSecondsLayout = "2006-01-02T15:04:05"

// FormatISO renders t in UTC as "2006-01-02T15:04:05+00:00", appending
// microseconds only when they are non-zero.
func FormatISO(t time.Time) string {
    t = t.UTC()
    out := t.Format(isoSecondsLayout)
    if us := t.Nanosecond() / 1000; us != 0 {
        out += fmt.Sprintf(".%06d", us)
    }
    return out + "+00:00"
}

// FormatISOPtr returns nil for a nil time.
func FormatISOPtr(t *time.Time) *string {
    if t == nil {
        return nil
    }
    s := FormatISO(*t)
    return &s
}

// ParseISO accepts "Z", numeric offsets, naive (assumed UTC) and
// space-separated ISO-8601 forms. The result is always UTC.
func ParseISO(s string) (time.Time, bool) {
    s = strings.TrimSpace(s)
    if s == "" {
        return time.Time{}, false
    }
    if len(s) > 10 && s[10] == ' ' {
        s = s[:10] + "T" + s[11:]
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t.UTC(), true
    }
    for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04", "2006-01-02"} {
        if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
            return t, true
        }
    }
    return time.Time{}, false
}

// ParseISOPtr returns nil when s does not parse.
func ParseISOPtr(s string) *time.Time {
    t, ok := ParseISO(s)
    if !ok {
        return nil
    }
    return &t
}

// ParseTime tries ISO-8601 forms and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if t, ok := ParseISO(s); ok {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0).UTC(), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// CompactUTC renders t as 20240101T100000Z, the form used in run ids.
func CompactUTC(t time.Time) string {
    return t.UTC().Format("20060102T150405Z")
}
