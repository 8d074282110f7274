package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Limiter enforces a minimum interval between operations, with optional
// jitter so calls do not land on an exact cadence. It is safe for
// concurrent use by multiple goroutines.
type Limiter struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
}

// NewLimiter creates a limiter that spaces operations at least interval
// apart. Jitter must be between 0.0 and 1.0. If interval is <= 0, the
// limiter does not block.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if interval <= 0 {
		return &Limiter{
			jitter: jitter,
		}
	}

	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	ticker := time.NewTicker(interval)

	return &Limiter{
		ticker:   ticker,
		jitter:   jitter,
		interval: interval,
		ch:       ticker.C,
	}
}

// Wait blocks until it is time to perform the next operation, or until the
// context is canceled. It applies jitter to the sleep time if configured.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.ch == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		if l.jitter > 0 {
			// Random jitter between +/- (jitter * interval). The ticker already
			// enforces the minimum spacing, so negative jitter just means the
			// call proceeds as soon as the tick arrives.
			jitterFactor := (rand.Float64() * 2) - 1.0 // -1.0 to 1.0
			jitterDuration := time.Duration(float64(l.interval) * l.jitter * jitterFactor)

			if jitterDuration > 0 {
				select {
				case <-time.After(jitterDuration):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return nil
}

// Stop releases any resources associated with the limiter.
func (l *Limiter) Stop() {
	if l.ticker != nil {
		l.ticker.Stop()
	}
}
