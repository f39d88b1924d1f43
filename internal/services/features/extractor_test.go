package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"AutoEye/internal/domain/models"
)

func bar(open, high, low, close float64) models.Bar {
	return models.Bar{Time: time.Unix(0, 0).UTC(), Open: open, High: high, Low: low, Close: close}
}

func TestTrueRange(t *testing.T) {
	prev := bar(1, 1.2, 0.9, 1.0)
	assert.InDelta(t, 0.5, TrueRange(bar(1.1, 1.5, 1.05, 1.4), prev), 1e-9)
	assert.InDelta(t, 0.3, TrueRange(bar(1.0, 1.1, 0.8, 0.9), prev), 1e-9)
}

func TestATR(t *testing.T) {
	bars := []models.Bar{
		bar(1, 2, 1, 2),
		bar(2, 3, 2, 3),
		bar(3, 5, 3, 4),
	}
	_, ok := ATR(bars, 0, 14)
	assert.False(t, ok)

	v, ok := ATR(bars, 2, 14)
	assert.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)

	v, ok = ATR(bars, 2, 1)
	assert.True(t, ok)
	assert.InDelta(t, 2, v, 1e-9)
}

func TestMedianBody(t *testing.T) {
	bars := []models.Bar{
		bar(1, 2, 0, 1.5),
		bar(1, 2, 0, 1.1),
		bar(1, 2, 0, 1.3),
		bar(1, 2, 0, 1.9),
	}
	v, ok := MedianBody(bars, 2, 3)
	assert.True(t, ok)
	assert.InDelta(t, 0.3, v, 1e-9)

	v, ok = MedianBody(bars, 3, 10)
	assert.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-9)

	_, ok = MedianBody(bars, 4, 3)
	assert.False(t, ok)
}
