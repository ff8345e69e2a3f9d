package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", rps: 1, burst: 2, calls: 5, wantPass: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("k") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := New(1, 1)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := New(0.001, 1)
	require.True(t, rl.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "k"))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := New(0.001, 1)
	r := gin.New()
	r.Use(Middleware(rl, func(c *gin.Context) string { return c.GetHeader("X-Caller") }))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(caller string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Caller", caller)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, do("x"))
	assert.Equal(t, http.StatusTooManyRequests, do("x"))
	assert.Equal(t, http.StatusNoContent, do("y"))
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClocked(rps float64, burst int) (*KeyedRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)}
	rl := New(rps, burst)
	rl.now = clock.now
	rl.lastSweep = clock.t
	return rl, clock
}

func TestKeyedRateLimiter_EvictsIdleKeysOnAccess(t *testing.T) {
	rl, clock := newClocked(10, 5)
	require.Equal(t, DefaultIdleTTL, rl.idleTTL)

	rl.Allow("a")
	rl.Allow("b")
	clock.advance(DefaultIdleTTL / 2)
	rl.Allow("a")
	clock.advance(DefaultIdleTTL/2 + time.Second)

	rl.Allow("c")
	assert.Equal(t, 2, rl.Len(), "b went idle, a and c remain")
}

func TestKeyedRateLimiter_RotatingKeysStayBounded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, clock := newClocked(10, 5)
	r := gin.New()
	r.Use(Middleware(rl, func(c *gin.Context) string { return c.GetHeader("X-Forwarded-For") }))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 5000; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d-%d", i%250, i))
		r.ServeHTTP(httptest.NewRecorder(), req)
		clock.advance(time.Second)
	}

	// one sweep per TTL keeps at most two TTLs worth of keys at one per second
	assert.LessOrEqual(t, rl.Len(), int(2*DefaultIdleTTL/time.Second)+1)
	assert.Less(t, rl.Len(), 5000)
}

func TestKeyedRateLimiter_Evict(t *testing.T) {
	rl, clock := newClocked(10, 5)
	rl.Allow("a")
	assert.Zero(t, rl.Evict())

	clock.advance(DefaultIdleTTL + time.Second)
	assert.Equal(t, 1, rl.Evict())
	assert.Zero(t, rl.Len())
}

func TestNew_IdleTTLCoversRefill(t *testing.T) {
	rl := New(0.001, 1)
	assert.InDelta(t, 1000, rl.idleTTL.Seconds(), 0.01)
}
