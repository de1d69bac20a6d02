package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter tracks the rate limiter and last-seen time for a single
// key (a client IP, in the gRPC interceptor that wraps this). Adapted
// from the teacher's per-IP auth-endpoint limiter, generalized to
// SPEC_FULL.md §4.3's "applied to SubmitTask/StartRun only".
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token bucket limiter guarding SubmitTask and
// StartRun (SPEC_FULL.md §4.3 "Rate limiting"). It is transport-agnostic:
// the gRPC interceptor that owns IP extraction is the only caller.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter builds a RateLimiter allowing r events per second per
// key, with burst capacity.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*clientLimiter), rate: r, burst: burst}
}

// Allow reports whether key may proceed right now, consuming a token if
// so.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiterFor(key).Allow()
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanup removes keys unseen for staleAfter, bounding memory for
// long-lived processes with many transient clients.
func (rl *RateLimiter) cleanup(staleAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-staleAfter)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// StartCleanup launches a background goroutine that periodically evicts
// stale entries until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval, staleAfter time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(staleAfter)
			}
		}
	}()
}
