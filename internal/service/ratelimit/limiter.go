package ratelimit

import (
	"context"
	"sync"
	"time"
)

// QuotaGuard is a token bucket enforcing a vendor's per-minute call
// quota. It complements the client's fixed inter-request spacing: the
// spacing smooths bursts, the bucket caps the minute total.
type QuotaGuard struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// New creates a guard allowing perMinute calls per minute.
func New(perMinute int) *QuotaGuard {
	capacity := float64(perMinute)
	return &QuotaGuard{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: capacity / 60,
		last:       time.Now(),
	}
}

// Allow consumes one token if available.
func (g *QuotaGuard) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refill(time.Now())
	if g.tokens < 1 {
		return false
	}
	g.tokens--
	return true
}

// Reserve blocks until a token is available or ctx is done.
func (g *QuotaGuard) Reserve(ctx context.Context) error {
	for {
		g.mu.Lock()
		now := time.Now()
		g.refill(now)
		if g.tokens >= 1 {
			g.tokens--
			g.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - g.tokens) / g.refillRate * float64(time.Second))
		g.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill is called with the lock held.
func (g *QuotaGuard) refill(now time.Time) {
	elapsed := now.Sub(g.last).Seconds()
	if elapsed <= 0 {
		return
	}
	g.tokens += elapsed * g.refillRate
	if g.tokens > g.capacity {
		g.tokens = g.capacity
	}
	g.last = now
}
