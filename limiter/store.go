package limiter

import (
	"context"
	"time"
)

// Store defines the interface for fixed-window counter storage.
type Store interface {
	// Take records one request for key at time now under policy.
	// It starts a new window when none is live, rejects without mutation when
	// the live window is exhausted, and increments otherwise.
	// It must be atomic with respect to other Take calls on the same key.
	// Returns the entry as it stands after the call and whether the request is allowed.
	Take(ctx context.Context, key string, policy Policy, now time.Time) (Entry, bool, error)

	// Clear drops every entry owned by the store.
	Clear(ctx context.Context) error
}

// Entry is the counter state of one identifier inside its current window.
type Entry struct {
	Count   int       // requests counted in the window
	ResetAt time.Time // creation time + window, never extended
}

// expired reports whether the window has elapsed at now.
func (e Entry) expired(now time.Time) bool {
	return now.After(e.ResetAt)
}
