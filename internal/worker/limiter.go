package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles model calls with one token bucket per backend key.
// Keys without an override share the same default rate but not the same bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewLimiter returns a limiter allowing rps calls per second per key with the
// given burst. rps <= 0 means unlimited.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   toLimit(rps),
		burst:   max(burst, 1),
	}
}

// Wait blocks until key may issue a call or ctx is done
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Allow consumes a token for key if one is available now
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// SetRate replaces the bucket for key. A non-positive burst keeps the default.
func (l *Limiter) SetRate(key string, rps float64, burst int) {
	if burst <= 0 {
		burst = l.burst
	}
	l.mu.Lock()
	l.buckets[key] = rate.NewLimiter(toLimit(rps), burst)
	l.mu.Unlock()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}

func toLimit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}
