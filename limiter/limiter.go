// Package limiter implements per-identifier fixed-window request limiting.
//
// A Limiter binds one Policy to one Store. The memory store keeps a bounded,
// insertion-ordered map in process; the Redis store shares counters between
// processes through an atomic Lua script. Each Limiter owns its counters, so
// several limiters (one per endpoint category) can coexist without interfering.
package limiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Limiter enforces one Policy over the identifiers it is asked about.
type Limiter struct {
	name   string
	policy Policy
	store  Store
	clock  func() time.Time
}

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the time until the window resets, rounded up to whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	wait := r.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(wait.Seconds())) * time.Second
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source used by Check.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates a limiter named name that applies policy using store.
func New(name string, policy Policy, store Store, opts ...Option) (*Limiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("limiter %s: %w", name, err)
	}
	if store == nil {
		return nil, fmt.Errorf("limiter %s: store must not be nil", name)
	}

	l := &Limiter{
		name:   name,
		policy: policy,
		store:  store,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check counts one request from identifier against the policy.
// Callers should normalize a missing identifier to a sentinel such as "unknown"
// beforehand; the limiter itself accepts any string.
// An error is only possible with stores that perform I/O.
func (l *Limiter) Check(ctx context.Context, identifier string) (Result, error) {
	now := l.clock()

	entry, allowed, err := l.store.Take(ctx, identifier, l.policy, now)
	if err != nil {
		return Result{}, fmt.Errorf("limiter %s: %w", l.name, err)
	}

	result := Result{
		Allowed: allowed,
		Limit:   l.policy.Limit,
		ResetAt: entry.ResetAt,
	}
	if allowed {
		result.Remaining = max(l.policy.Limit-entry.Count, 0)
	} else {
		log.Warn().Str("limiter", l.name).Str("identifier", identifier).Time("reset_at", entry.ResetAt).Msg("rate limit exceeded")
	}
	return result, nil
}

// Clear drops all counters of this limiter. It exists for test isolation.
func (l *Limiter) Clear(ctx context.Context) error {
	return l.store.Clear(ctx)
}

// Name returns the category name the limiter was created with.
func (l *Limiter) Name() string {
	return l.name
}

// Policy returns the policy the limiter enforces.
func (l *Limiter) Policy() Policy {
	return l.policy
}
