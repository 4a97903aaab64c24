// Package lifecycle starts long-lived service components in registration order
// and stops them in reverse, rolling back already-started components when a
// later one fails to start.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Component is a resource with an explicit start and stop, such as a Redis
// connection or an HTTP listener.
type Component interface {
	// Name returns the unique name used in logs and for duplicate detection.
	Name() string
	// Start brings the component up. It must not block for the component's lifetime.
	Start(ctx context.Context) error
	// Stop releases the component's resources.
	Stop(ctx context.Context) error
}

// ErrAlreadyRegistered is returned when two components share a name.
var ErrAlreadyRegistered = errors.New("lifecycle: component already registered")

// Manager owns the start/stop ordering of components.
type Manager struct {
	mu         sync.Mutex
	components []Component
	names      map[string]struct{}
	started    []Component // in start order
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{names: make(map[string]struct{})}
}

// Register appends c to the start order.
func (m *Manager) Register(c Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := c.Name()
	if _, exists := m.names[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	m.names[name] = struct{}{}
	m.components = append(m.components, c)
	log.Debug().Str("component", name).Msg("component registered")
	return nil
}

// StartAll starts every registered component in order. If one fails, the
// components started before it are stopped in reverse order and the start
// error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.components {
		begin := time.Now()
		if err := c.Start(ctx); err != nil {
			log.Error().Str("component", c.Name()).Dur("duration", time.Since(begin)).Err(err).Msg("failed to start component")
			if rbErr := m.stopStartedLocked(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("errors occurred during start failure rollback")
			}
			return fmt.Errorf("failed to start component %s: %w", c.Name(), err)
		}
		m.started = append(m.started, c)
		log.Info().Str("component", c.Name()).Dur("duration", time.Since(begin)).Msg("component started")
	}
	return nil
}

// StopAll stops every started component in reverse start order, continuing
// past failures, and returns the joined errors.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopStartedLocked(ctx)
}

func (m *Manager) stopStartedLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		c := m.started[i]
		begin := time.Now()
		if err := c.Stop(ctx); err != nil {
			log.Error().Str("component", c.Name()).Dur("duration", time.Since(begin)).Err(err).Msg("failed to stop component")
			errs = append(errs, fmt.Errorf("failed to stop component %s: %w", c.Name(), err))
			continue
		}
		log.Info().Str("component", c.Name()).Dur("duration", time.Since(begin)).Msg("component stopped")
	}
	m.started = nil
	return errors.Join(errs...)
}
