package detectors

import (
	"time"

	"AutoEye/internal/domain/models"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// bar builds the i-th M5 bar.
func bar(i int, o, h, l, c float64) models.Bar {
	return models.Bar{Time: t0.Add(time.Duration(i) * 5 * time.Minute), Open: o, High: h, Low: l, Close: c}
}

func barTime(i int) time.Time { return t0.Add(time.Duration(i) * 5 * time.Minute) }

// bullishGapBars yields a single bullish gap [10, 11] formed at bar 2.
func bullishGapBars() []models.Bar {
	return []models.Bar{
		bar(0, 9, 10, 8, 9.5),
		bar(1, 10, 12, 9.5, 11.8),
		bar(2, 11.5, 13, 11, 12.5),
	}
}

// breakBars yields a high fractal at bar 1 (l_price 10) broken down at bar 3,
// retested at bar 4 and closed back above the zone at bar 5.
func breakBars() []models.Bar {
	return []models.Bar{
		bar(0, 10, 10.5, 9.5, 10.0),
		bar(1, 10, 12, 9.8, 11.0),
		bar(2, 11, 11.5, 10.2, 10.4),
		bar(3, 10.4, 10.6, 9.6, 9.8),
		bar(4, 9.8, 10.2, 9.5, 9.9),
		bar(5, 10, 12.5, 9.9, 12.3),
	}
}
