package gateway

import (
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimiter caps the request rate of the stream using a token bucket.
// A nil or disabled limiter always allows.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter refilling perSecond tokens per second up
// to burst. If perSecond <= 0, the limiter is disabled.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return &RateLimiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow reports whether one more request may be handled now.
func (rl *RateLimiter) Allow() bool {
	if !rl.Enabled() {
		return true
	}
	if !rl.limiter.Allow() {
		slog.Warn("gateway.rate_limited")
		return false
	}
	return true
}

// Enabled returns true if the rate limiter is active.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.limiter != nil
}
