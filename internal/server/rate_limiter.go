// Package server implements a token bucket limiter for per-connection frame
// throttling that protects the hub from abusive senders.
package server

import (
	"sync"
	"time"
)

// rateLimiter admits up to Burst frames at once and refills the bucket in
// proportion to the elapsed share of RefillInterval. It relies on the config
// being sanitized: Burst and RefillInterval are positive.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	interval   time.Duration
	lastRefill time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		tokens:     float64(cfg.Burst),
		capacity:   float64(cfg.Burst),
		interval:   cfg.RefillInterval,
		lastRefill: time.Now(),
	}
}

// allow consumes one token if available, topping the bucket up first based
// on the time elapsed since the previous call.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	rl.lastRefill = now

	if elapsed > 0 {
		rl.tokens += rl.capacity * float64(elapsed) / float64(rl.interval)
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}

	if rl.tokens < 1 {
		return false
	}

	rl.tokens--
	return true
}
