package repository

import "strings"

// DefaultTimeframeSeconds is used for codes outside the table.
const DefaultTimeframeSeconds = 300

var timeframeSeconds = map[string]int64{
	"M1":  60,
	"M2":  120,
	"M3":  180,
	"M4":  240,
	"M5":  300,
	"M6":  360,
	"M10": 600,
	"M12": 720,
	"M15": 900,
	"M20": 1200,
	"M30": 1800,
	"H1":  3600,
	"H2":  7200,
	"H3":  10800,
	"H4":  14400,
	"H6":  21600,
	"H8":  28800,
	"H12": 43200,
	"D1":  86400,
	"W1":  604800,
	"MN1": 2629800,
}

// IsValidTimeframe returns true if tf is a supported timeframe code.
func IsValidTimeframe(tf string) bool {
	_, ok := timeframeSeconds[NormalizeTimeframe(tf)]
	return ok
}

// NormalizeTimeframe trims and upper-cases a timeframe code.
func NormalizeTimeframe(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeTimeframes normalizes codes, drops empties and dedupes in order.
func NormalizeTimeframes(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		tf := NormalizeTimeframe(v)
		if tf == "" {
			continue
		}
		if _, ok := seen[tf]; ok {
			continue
		}
		seen[tf] = struct{}{}
		out = append(out, tf)
	}
	return out
}

// TimeframeSeconds returns the bar length of tf in seconds.
func TimeframeSeconds(tf string) int64 {
	if s, ok := timeframeSeconds[NormalizeTimeframe(tf)]; ok {
		return s
	}
	return DefaultTimeframeSeconds
}
