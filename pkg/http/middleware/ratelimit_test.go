package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	r := NewRateLimiter(1, 2)
	r.now = func() time.Time { return now }

	assert.True(t, r.Allow("a"))
	assert.True(t, r.Allow("a"))
	assert.False(t, r.Allow("a"))
	assert.True(t, r.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, r.Allow("a"))
	assert.False(t, r.Allow("a"))
}

func TestRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	r := NewRateLimiter(1, 1)
	r.now = func() time.Time { return now }
	r.Allow("a")

	now = now.Add(time.Hour)
	r.Allow("b")
	assert.Equal(t, 1, r.Sweep(time.Minute))
}

func TestRateLimit_OnlyThrottlesPrefix(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(NewRateLimiter(0.001, 1), "/api/"))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/v1/state/:symbol", ok)
	e.GET("/healthz", ok)

	call := func(path string) int {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("/api/v1/state/EURUSD"))
	assert.Equal(t, http.StatusTooManyRequests, call("/api/v1/state/EURUSD"))
	assert.Equal(t, http.StatusOK, call("/healthz"))
	assert.Equal(t, http.StatusOK, call("/healthz"))
}
