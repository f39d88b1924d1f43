package features

import (
	"math"
	"sort"

	"AutoEye/internal/domain/models"
)

// Body returns |close - open| of a bar.
func Body(b models.Bar) float64 {
	return math.Abs(b.Close - b.Open)
}

// TrueRange computes max(high-low, |high-prevClose|, |low-prevClose|), never negative.
func TrueRange(cur, prev models.Bar) float64 {
	tr := math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
	return math.Max(0, tr)
}

// ATR is the mean true range over the period bars ending at end (inclusive).
// True range needs a previous bar, so index 0 never contributes. Returns false if no
// bar qualifies.
func ATR(bars []models.Bar, end, period int) (float64, bool) {
	if end <= 0 || end >= len(bars) {
		return 0, false
	}
	if period < 1 {
		period = 1
	}
	start := end - period + 1
	if start < 1 {
		start = 1
	}
	sum := 0.0
	n := 0
	for i := start; i <= end; i++ {
		sum += TrueRange(bars[i], bars[i-1])
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// MedianBody is the median candle body over the period bars ending at end (inclusive).
func MedianBody(bars []models.Bar, end, period int) (float64, bool) {
	if end < 0 || end >= len(bars) {
		return 0, false
	}
	if period < 1 {
		period = 1
	}
	start := end - period + 1
	if start < 0 {
		start = 0
	}
	values := make([]float64, 0, end-start+1)
	for i := start; i <= end; i++ {
		values = append(values, Body(bars[i]))
	}
	if len(values) == 0 {
		return 0, false
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], true
	}
	return (values[mid-1] + values[mid]) / 2, true
}
