package models

import (
	"sort"
	"time"
)

// Bar is one OHLC candle. Time is the bar open in UTC.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Quote is the latest market price of a symbol.
type Quote struct {
	Price    float64
	Bid      *float64
	Ask      *float64
	Source   string
	TickTime time.Time
}

// NormalizeBars converts times to UTC, sorts ascending and drops repeated timestamps
// keeping the last occurrence.
func NormalizeBars(bars []Bar) []Bar {
	if len(bars) == 0 {
		return bars
	}
	out := make([]Bar, len(bars))
	for i, b := range bars {
		b.Time = b.Time.UTC()
		out[i] = b
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(b.Time) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}
