// Package config loads the service configuration from defaults, an optional
// YAML file, and FOLIO_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/toolink/folio/limiter"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FOLIO"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Log       LogConfig      `mapstructure:"log"`
	RateLimit limiter.Config `mapstructure:"ratelimit"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Mail      MailConfig     `mapstructure:"mail"`
	GitHub    GitHubConfig   `mapstructure:"github"`
	LeetCode  LeetCodeConfig `mapstructure:"leetcode"`
	Stats     StatsConfig    `mapstructure:"stats"`
	Chatbot   ChatbotConfig  `mapstructure:"chatbot"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	TrustRemoteAddr bool          `mapstructure:"trust_remote_addr"` // fall back to the socket address for client identity
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// RedisConfig is only used when ratelimit.storage_type is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type GitHubConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
}

type LeetCodeConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
}

type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ChatbotConfig struct {
	KnowledgeFile string `mapstructure:"knowledge_file"` // empty uses the embedded knowledge base
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.RateLimit.StorageType == limiter.StorageRedis
}

// SetDefaults registers every default on v. Registering each key also lets
// AutomaticEnv resolve it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.trust_remote_addr", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ratelimit.storage_type", limiter.StorageMemory)
	v.SetDefault("ratelimit.capacity", limiter.DefaultCapacity)
	v.SetDefault("ratelimit.cleanup_interval", limiter.DefaultCleanupInterval)
	// per-field defaults let env vars and partial YAML override one field
	for category, policy := range limiter.DefaultPolicies {
		v.SetDefault("ratelimit.policies."+category+".limit", policy.Limit)
		v.SetDefault("ratelimit.policies."+category+".window", policy.Window)
	}

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.host", "smtp.resend.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.username", "resend")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "contact@example.com")

	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.username", "")
	v.SetDefault("github.token", "")

	v.SetDefault("leetcode.base_url", "https://leetcode-stats-api.herokuapp.com")
	v.SetDefault("leetcode.username", "")

	v.SetDefault("stats.cache_ttl", time.Hour)
	v.SetDefault("stats.timeout", 10*time.Second)

	v.SetDefault("chatbot.knowledge_file", "")
}

// Load reads configuration into a Config. file may be empty.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// well-known names from the hosting platform take part too
	_ = v.BindEnv("mail.password", EnvPrefix+"_MAIL_PASSWORD", "RESEND_API_KEY")
	_ = v.BindEnv("mail.from", EnvPrefix+"_MAIL_FROM", "FROM_EMAIL")
	_ = v.BindEnv("github.token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		log.Info().Str("file", v.ConfigFileUsed()).Msg("config file loaded")
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config and fills derived defaults.
func (c *Config) Validate() error {
	if err := c.RateLimit.ValidateAndPrepare(); err != nil {
		return fmt.Errorf("invalid ratelimit config: %w", err)
	}

	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes %d must be positive", c.Server.MaxBodyBytes))
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when ratelimit.storage_type is redis"))
	}
	if c.Stats.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("stats.cache_ttl %s must not be negative", c.Stats.CacheTTL))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}
