// Package meta carries request-scoped values (request ID, resolved client
// identifier, rate-limit decision) through a context.Context so middleware and
// handlers can share them without widening function signatures.
package meta

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Well-known keys set by the HTTP middleware chain.
const (
	KeyRequestID = "request_id"
	KeyClientID  = "client_id"
	KeyCategory  = "ratelimit_category"
	KeyRateLimit = "ratelimit_result"
)

// metadataKey is the private context key type.
type metadataKey struct{}

// Metadata is a concurrency-safe bag of request values.
type Metadata struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates an empty Metadata.
func New() *Metadata {
	return &Metadata{data: make(map[string]any)}
}

// Set stores value under key.
func (m *Metadata) Set(key string, value any) {
	if m == nil {
		log.Error().Str("key", key).Msg("attempted to set metadata on nil *metadata instance")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]any)
	}
	m.data[key] = value
}

// Lookup returns the value stored under key and whether it was present.
func (m *Metadata) Lookup(key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok
}

// WithContext returns a child of ctx carrying m.
func (m *Metadata) WithContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metadataKey{}, m)
}

// FromContext returns the Metadata attached to ctx.
// A fresh, detached Metadata is returned when ctx carries none, so callers
// never need a nil check; values set on it are not visible to anyone else.
func FromContext(ctx context.Context) *Metadata {
	if ctx == nil {
		return New()
	}
	if md, ok := ctx.Value(metadataKey{}).(*Metadata); ok && md != nil {
		return md
	}
	return New()
}

// Get returns the value stored under key in ctx's metadata as a T.
func Get[T any](ctx context.Context, key string) (T, error) {
	var zero T

	raw, ok := FromContext(ctx).Lookup(key)
	if !ok {
		return zero, fmt.Errorf("meta: key '%s' not found in context metadata", key)
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("meta: value for key '%s' has type %T, but type %T was requested", key, raw, zero)
	}
	return typed, nil
}

// RequestID returns the request ID stored in ctx, or "" when none was set.
func RequestID(ctx context.Context) string {
	id, _ := Get[string](ctx, KeyRequestID)
	return id
}

// ClientID returns the resolved client identifier stored in ctx, or "" when none was set.
func ClientID(ctx context.Context) string {
	id, _ := Get[string](ctx, KeyClientID)
	return id
}
