// Package ratelimit gates outgoing requests with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter limits requests to a fixed rate with a burst of one. A Limiter
// created with a non-positive rate is disabled and never blocks. It is safe
// for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
	rps     float64
}

// New returns a limiter allowing rps requests per second.
func New(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		rps:     rps,
	}
}

// Enabled reports whether the limiter restricts anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// RPS returns the configured rate, 0 when disabled.
func (l *Limiter) RPS() float64 {
	if !l.Enabled() {
		return 0
	}
	return l.rps
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (l *Limiter) String() string {
	if !l.Enabled() {
		return "disabled"
	}
	if l.rps < 1 {
		interval := time.Duration(float64(time.Second) / l.rps)
		return fmt.Sprintf("1 request per %s", interval)
	}
	return fmt.Sprintf("%.2f rps", l.rps)
}
