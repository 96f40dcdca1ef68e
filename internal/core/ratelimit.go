package core

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultSendWindow is the minimum spacing between two accepted sends.
const DefaultSendWindow = time.Second

// RateLimiter admits at most one send per window. A refused send leaves the state untouched.
type RateLimiter struct {
	window     time.Duration
	limiter    *rate.Limiter
	lastSendAt time.Time
}

// NewRateLimiter builds a limiter with the given window. Non-positive windows use the default.
func NewRateLimiter(window time.Duration) *RateLimiter {
	if window <= 0 {
		window = DefaultSendWindow
	}
	return &RateLimiter{
		window:  window,
		limiter: rate.NewLimiter(rate.Every(window), 1),
	}
}

// TryConsume reports whether a send at now is allowed. When it is not, the returned
// duration is how long the caller has to wait.
func (r *RateLimiter) TryConsume(now time.Time) (time.Duration, bool) {
	if !r.limiter.AllowN(now, 1) {
		wait := r.window - now.Sub(r.lastSendAt)
		if wait <= 0 {
			wait = time.Millisecond
		}
		return wait, false
	}
	r.lastSendAt = now
	return 0, true
}

// LastSendAt returns the time of the last accepted send.
func (r *RateLimiter) LastSendAt() time.Time {
	return r.lastSendAt
}
