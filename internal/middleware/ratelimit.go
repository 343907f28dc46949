package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window per-key request limiter. Group creation
// is cheap but unauthenticated, so the create/join endpoints sit behind
// one of these keyed by client IP.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	span    time.Duration
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	return NewRateLimiterWithNow(limit, span, time.Now)
}

func NewRateLimiterWithNow(limit int, span time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		span:    span,
		now:     now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	// Expired windows for other keys are purged opportunistically so the
	// map does not grow with one entry per IP ever seen.
	for k, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, k)
		}
	}

	w, ok := rl.windows[key]
	if !ok {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(rl.span)}
		return true
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"code": "rate_limited", "message": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
