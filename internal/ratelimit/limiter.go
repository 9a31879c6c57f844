// Package ratelimit wraps golang.org/x/time/rate with the 429-aware
// backoff bookkeeping the market-data client needs.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Minute
)

// Limiter is a token-bucket limiter for one upstream API
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu      sync.Mutex
	backoff time.Duration
}

// NewLimiter creates a limiter allowing perMinute requests. Bursts are
// capped at a tenth of the per-minute budget, between 1 and 5.
func NewLimiter(name string, perMinute int) *Limiter {
	rps := float64(perMinute) / 60.0
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
		backoff: initialBackoff,
	}
}

// Wait blocks until a token is available or the context is cancelled
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SignalRateLimited doubles the backoff window. Call it on a 429 response.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.backoff *= 2
	if l.backoff > maxBackoff {
		l.backoff = maxBackoff
	}
}

// ResetBackoff restores the initial backoff after a successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
}

// Backoff returns the current backoff window
func (l *Limiter) Backoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
