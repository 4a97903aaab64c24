package limiter

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalidPolicy is returned when a policy has a non-positive window or limit.
var ErrInvalidPolicy = errors.New("limiter: invalid policy")

// Policy is the fixed-window quota applied to every identifier of one limiter.
type Policy struct {
	Limit  int           `mapstructure:"limit" yaml:"limit"`   // max requests per window
	Window time.Duration `mapstructure:"window" yaml:"window"` // window length
}

// Validate reports whether the policy can drive a limiter.
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit %d must be positive", ErrInvalidPolicy, p.Limit)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: window %s must be positive", ErrInvalidPolicy, p.Window)
	}
	return nil
}

// Config holds the rate limiting configuration for all endpoint categories.
type Config struct {
	StorageType     string            `mapstructure:"storage_type" yaml:"storage_type"`         // "memory" or "redis"
	Capacity        int               `mapstructure:"capacity" yaml:"capacity"`                 // memory store size bound
	CleanupInterval time.Duration     `mapstructure:"cleanup_interval" yaml:"cleanup_interval"` // min time between sweeps
	Policies        map[string]Policy `mapstructure:"policies" yaml:"policies"`
}

// ValidateAndPrepare fills defaults and validates the config in place.
func (c *Config) ValidateAndPrepare() error {
	if c.StorageType == "" {
		c.StorageType = StorageMemory
	}
	if c.StorageType != StorageMemory && c.StorageType != StorageRedis {
		return fmt.Errorf("invalid storage_type: %s, must be '%s' or '%s'", c.StorageType, StorageMemory, StorageRedis)
	}

	if c.Capacity < 0 {
		return fmt.Errorf("invalid capacity: %d, must not be negative", c.Capacity)
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("invalid cleanup_interval: %s, must not be negative", c.CleanupInterval)
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}

	if c.Policies == nil {
		c.Policies = make(map[string]Policy, len(DefaultPolicies))
	}
	for category, policy := range DefaultPolicies {
		if _, ok := c.Policies[category]; !ok {
			c.Policies[category] = policy
		}
	}

	for category, policy := range c.Policies {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("policy for category '%s': %w", category, err)
		}
	}

	log.Debug().Str("storage_type", c.StorageType).Int("capacity", c.Capacity).Dur("cleanup_interval", c.CleanupInterval).Int("policies", len(c.Policies)).Msg("rate limit config prepared")
	return nil
}
