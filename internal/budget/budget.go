// Package budget tracks the remaining call allowance of every adapter and
// paces the rate-limited ones. It is an explicit stateful controller passed
// into the collection loop, not an ambient counter, so the same pipeline
// runs under independently testable budgets.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lee-Soyeon/kpop-trade-collector/pkg/ratelimit"
)

// ErrBudgetExhausted means an adapter's fixed call budget is used up. The
// adapter is excluded from the remainder of the run; the run continues.
var ErrBudgetExhausted = errors.New("adapter budget exhausted")

// Policy holds the retry/backoff knobs. These are configuration, not
// structural constants.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy mirrors the upstream clients' historical behavior: three
// attempts, exponential delay between 2s and 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

type entry struct {
	remaining int // -1 = no quota cap
	limiter   *ratelimit.Limiter
}

// Controller gates every adapter call. Quota-based adapters get a
// decrementing counter, rate-based adapters get an interval limiter.
type Controller struct {
	policy   Policy
	adapters map[string]*entry
}

// NewController returns a Controller with the given retry policy. Zero
// policy fields fall back to the defaults.
func NewController(policy Policy) *Controller {
	def := DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = def.InitialDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = def.Multiplier
	}
	return &Controller{
		policy:   policy,
		adapters: make(map[string]*entry),
	}
}

// RegisterQuota caps the named adapter at calls requests for the whole run.
// calls <= 0 registers an already-exhausted adapter.
func (c *Controller) RegisterQuota(name string, calls int) {
	c.adapters[name] = &entry{remaining: calls}
}

// RegisterRate paces the named adapter to at most one call per interval.
func (c *Controller) RegisterRate(name string, interval time.Duration, jitter float64) {
	c.adapters[name] = &entry{
		remaining: -1,
		limiter:   ratelimit.NewLimiter(interval, jitter),
	}
}

// Acquire blocks until the named adapter may issue its next call. It
// returns ErrBudgetExhausted when a quota-capped adapter has nothing left,
// and the context error if the wait is canceled. Unregistered adapters are
// not gated.
func (c *Controller) Acquire(ctx context.Context, name string) error {
	e, ok := c.adapters[name]
	if !ok {
		return nil
	}
	if e.remaining == 0 {
		return fmt.Errorf("%s: %w", name, ErrBudgetExhausted)
	}
	if e.remaining > 0 {
		e.remaining--
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Remaining reports the quota left for the named adapter, or -1 when the
// adapter is not quota-capped.
func (c *Controller) Remaining(name string) int {
	if e, ok := c.adapters[name]; ok {
		return e.remaining
	}
	return -1
}

// MaxAttempts is the bounded retry count per query.
func (c *Controller) MaxAttempts() int {
	return c.policy.MaxAttempts
}

// Backoff returns the delay before retry number attempt (1-based),
// growing exponentially up to the policy cap.
func (c *Controller) Backoff(attempt int) time.Duration {
	d := c.policy.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.policy.Multiplier)
		if d >= c.policy.MaxDelay {
			return c.policy.MaxDelay
		}
	}
	if d > c.policy.MaxDelay {
		return c.policy.MaxDelay
	}
	return d
}

// Stop releases limiter resources.
func (c *Controller) Stop() {
	for _, e := range c.adapters {
		if e.limiter != nil {
			e.limiter.Stop()
		}
	}
}
