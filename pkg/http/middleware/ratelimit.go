package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter is a per-key token bucket. Idle buckets are dropped on Sweep.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64
	capacity float64
	now      func() time.Time
}

// NewRateLimiter refills rps tokens per second up to burst. A burst below one is
// raised to one.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rps,
		capacity: float64(burst),
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (r *RateLimiter) Allow(key string) bool {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{tokens: r.capacity, last: now}
		r.buckets[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(r.capacity, b.tokens+elapsed*r.rate)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sweep forgets buckets that have been full for longer than idle.
func (r *RateLimiter) Sweep(idle time.Duration) int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, b := range r.buckets {
		if now.Sub(b.last) > idle {
			delete(r.buckets, key)
			removed++
		}
	}
	return removed
}

// RateLimit throttles requests under prefix by client IP and answers 429 once the
// bucket is empty.
func RateLimit(limiter *RateLimiter, prefix string) echo.MiddlewareFunc {
	var calls uint64
	var mu sync.Mutex
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Request().URL.Path, prefix) {
				return next(c)
			}

			mu.Lock()
			calls++
			sweep := calls%1024 == 0
			mu.Unlock()
			if sweep {
				limiter.Sweep(10 * time.Minute)
			}

			if !limiter.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}
