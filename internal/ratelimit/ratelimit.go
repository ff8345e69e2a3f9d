// Package ratelimit provides a per-key token bucket limiter.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mangashelf/pkg/logging"
)

// DefaultIdleTTL is how long a key may go unseen before its bucket is dropped.
const DefaultIdleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter gives every key its own independent bucket. Keys idle for
// longer than the idle TTL are swept on access, so callers rotating keys
// cannot grow the map without bound.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*entry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// New builds a limiter allowing rps sustained requests per key with the given burst.
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
	}
	// a dropped bucket comes back full, so never drop one that could still be refilling
	if rps > 0 {
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > krl.idleTTL {
			krl.idleTTL = refill
		}
	}
	krl.lastSweep = krl.now()
	return krl
}

// Allow reports whether a request for key may proceed now. It never blocks.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until key has a token or ctx ends.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// Len is the number of keys currently tracked.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return len(krl.limiters)
}

// Evict drops every key idle for longer than the idle TTL and returns how
// many were removed.
func (krl *KeyedRateLimiter) Evict() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return krl.evictLocked(krl.now())
}

func (krl *KeyedRateLimiter) evictLocked(now time.Time) int {
	krl.lastSweep = now
	removed := 0
	for key, e := range krl.limiters {
		if now.Sub(e.lastSeen) > krl.idleTTL {
			delete(krl.limiters, key)
			removed++
		}
	}
	return removed
}

func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	now := krl.now()
	if now.Sub(krl.lastSweep) >= krl.idleTTL {
		if n := krl.evictLocked(now); n > 0 {
			logging.Debug().Int("evicted", n).Int("remaining", len(krl.limiters)).Msg("rate limiter swept idle keys")
		}
	}

	e, exists := krl.limiters[key]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Middleware rejects requests with 429 when the caller's bucket is empty.
// keyFn derives the caller key from the request.
func Middleware(krl *KeyedRateLimiter, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if !krl.Allow(key) {
			logging.Warn().Str("client", key).Str("path", c.Request.URL.Path).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			return
		}
		c.Next()
	}
}
