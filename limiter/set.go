package limiter

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrUnknownCategory is returned when no limiter exists for a category.
var ErrUnknownCategory = errors.New("limiter: unknown category")

// Set holds one limiter per endpoint category.
type Set struct {
	limiters map[string]*Limiter
}

// NewSet builds a limiter for every policy in cfg. cfg must already be prepared
// with ValidateAndPrepare. client is required only for the redis storage type.
func NewSet(cfg *Config, client redis.Cmdable, opts ...Option) (*Set, error) {
	if cfg.StorageType == StorageRedis && client == nil {
		return nil, fmt.Errorf("storage_type %s requires a redis client", StorageRedis)
	}

	set := &Set{limiters: make(map[string]*Limiter, len(cfg.Policies))}
	for category, policy := range cfg.Policies {
		var store Store
		switch cfg.StorageType {
		case StorageRedis:
			store = NewRedisStore(client, "ratelimit:"+category)
		default:
			store = NewMemoryStore(cfg.Capacity, cfg.CleanupInterval)
		}

		l, err := New(category, policy, store, opts...)
		if err != nil {
			return nil, err
		}
		set.limiters[category] = l
		log.Info().Str("category", category).Int("limit", policy.Limit).Dur("window", policy.Window).Str("storage", cfg.StorageType).Msg("rate limiter configured")
	}
	return set, nil
}

// Get returns the limiter for category.
func (s *Set) Get(category string) (*Limiter, error) {
	l, ok := s.limiters[category]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return l, nil
}

// Categories returns the configured category names in sorted order.
func (s *Set) Categories() []string {
	names := make([]string, 0, len(s.limiters))
	for name := range s.limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops the counters of every limiter in the set.
func (s *Set) Clear(ctx context.Context) error {
	var errs []error
	for _, l := range s.limiters {
		if err := l.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
