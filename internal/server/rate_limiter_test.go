package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(RateLimitConfig{Burst: 3, RefillInterval: time.Minute})

	for i := 0; i < 3; i++ {
		req.True(rl.allow())
	}
	req.False(rl.allow())
}

func TestRateLimiterRefills(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(RateLimitConfig{Burst: 2, RefillInterval: 20 * time.Millisecond})

	req.True(rl.allow())
	req.True(rl.allow())
	req.False(rl.allow())

	time.Sleep(30 * time.Millisecond)
	req.True(rl.allow())
}

// The limiter trusts sanitized config: nonsense values are corrected before
// they ever reach it.
func TestRateLimiterFromSanitizedConfig(t *testing.T) {
	req := require.New(t)

	cfg := sanitizeConfig(Config{RateLimit: RateLimitConfig{Burst: 0, RefillInterval: 0}})
	rl := newRateLimiter(cfg.RateLimit)

	for i := 0; i < cfg.RateLimit.Burst; i++ {
		req.True(rl.allow())
	}
	req.False(rl.allow())
}
