package repository

import (
	"time"

	"AutoEye/internal/domain/models"
)

var t0 = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func gapElement(id string, c3 time.Time, low, high float64) *models.Element {
	return &models.Element{
		ID:            id,
		Kind:          models.KindFVG,
		Symbol:        "EURUSD",
		Timeframe:     "M5",
		Direction:     models.DirectionBullish,
		FormationTime: c3,
		ZoneLow:       low,
		ZoneHigh:      high,
		C1Time:        c3.Add(-10 * time.Minute),
		C2Time:        c3.Add(-5 * time.Minute),
		C3Time:        c3,
		Status:        models.StatusActive,
		Gap:           &models.GapMeta{},
	}
}

func barsFrom(start time.Time, step time.Duration, closes ...float64) []models.Bar {
	out := make([]models.Bar, 0, len(closes))
	for i, c := range closes {
		out = append(out, models.Bar{
			Time:  start.Add(time.Duration(i) * step),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		})
	}
	return out
}
