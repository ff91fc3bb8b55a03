// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a per-key token-bucket rate limiter on top of
// golang.org/x/time/rate. Keys are the authenticated user when known and the
// client IP otherwise, so the websocket upgrade (which authenticates inside
// the handler) is limited per IP. Idle buckets are swept periodically.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc derives the bucket key for a request.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys authenticated requests by user id and the rest by IP.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if id, ok := IdentityFrom(c); ok {
			return "user:" + id.UserID
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	// ttl evicts buckets idle for longer; sweeps run at most every ttl/2.
	ttl       time.Duration
	now       func() time.Time
	mu        sync.Mutex
	visitors  map[string]*visitor
	nextSweep time.Time
}

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst (coerced to at least 1). rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	lim := rate.Limit(rps)
	if rps <= 0 {
		lim = rate.Inf
	}
	return &RateLimiter{
		rps:      lim,
		burst:    burst,
		keyFn:    keyFn,
		ttl:      10 * time.Minute,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// limiterFor returns the bucket for key, creating it on first use.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.nextSweep) {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.nextSweep = now.Add(rl.ttl / 2)
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay, which is served from storage and not counted.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler returns the Gin middleware. Denied requests get 429 with a
// Retry-After computed from the bucket's refill time.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiterFor(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(HeaderRequestID),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter is the whole number of seconds until one token is available.
func retryAfter(lim *rate.Limiter) int {
	if lim.Limit() <= 0 || lim.Limit() == rate.Inf {
		return 1
	}
	secs := int(math.Ceil(1 / float64(lim.Limit())))
	if secs < 1 {
		secs = 1
	}
	return secs
}
