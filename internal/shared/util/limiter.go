package util

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by concurrent callers.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter allows perSecond events on average with bursts of up to burst.
// A non-positive perSecond disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, burst)}
}

// Allow reports whether one event may happen now, consuming a token if so.
func (l *Limiter) Allow() bool {
	return l.inner.AllowN(time.Now(), 1)
}

// RetryAfter is how long a caller should wait before the next token is free.
func (l *Limiter) RetryAfter() time.Duration {
	r := l.inner.ReserveN(time.Now(), 1)
	defer r.Cancel()
	if !r.OK() {
		return 0
	}
	return r.Delay()
}
