package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolink/folio/limiter"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, limiter.StorageMemory, cfg.RateLimit.StorageType)
	assert.Equal(t, limiter.DefaultCapacity, cfg.RateLimit.Capacity)
	assert.Equal(t, limiter.DefaultPolicies[limiter.CategoryContact], cfg.RateLimit.Policies[limiter.CategoryContact])
	assert.Equal(t, "smtp.resend.com", cfg.Mail.Host)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, time.Hour, cfg.Stats.CacheTTL)
	assert.False(t, cfg.UsesRedis())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "folio.yaml")
	content := `
server:
  addr: ":9090"
ratelimit:
  storage_type: redis
  cleanup_interval: 30s
  policies:
    contact:
      limit: 3
      window: 2m
redis:
  addr: "redis:6379"
github:
  username: octocat
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	t.Setenv("FOLIO_RATELIMIT_CAPACITY", "500")
	t.Setenv("RESEND_API_KEY", "re_secret")
	t.Setenv("FOLIO_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 500, cfg.RateLimit.Capacity)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.CleanupInterval)
	assert.Equal(t, limiter.Policy{Limit: 3, Window: 2 * time.Minute}, cfg.RateLimit.Policies[limiter.CategoryContact])
	assert.Equal(t, limiter.DefaultPolicies[limiter.CategoryGitHub], cfg.RateLimit.Policies[limiter.CategoryGitHub])
	assert.Equal(t, "re_secret", cfg.Mail.Password)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "octocat", cfg.GitHub.Username)
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "folio.yaml")
	content := `
ratelimit:
  policies:
    chatbot:
      limit: 0
      window: 1m
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	_, err := Load(viper.New(), file)
	require.ErrorIs(t, err, limiter.ErrInvalidPolicy)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateLogFormat(t *testing.T) {
	v := viper.New()
	v.Set("log.format", "xml")
	_, err := Load(v, "")
	require.Error(t, err)
}

func TestLoadPolicyFromEnv(t *testing.T) {
	t.Setenv("FOLIO_RATELIMIT_POLICIES_CONTACT_LIMIT", "2")
	t.Setenv("FOLIO_RATELIMIT_POLICIES_CHATBOT_WINDOW", "30s")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, limiter.Policy{Limit: 2, Window: time.Minute}, cfg.RateLimit.Policies[limiter.CategoryContact])
	assert.Equal(t, limiter.Policy{Limit: 20, Window: 30 * time.Second}, cfg.RateLimit.Policies[limiter.CategoryChatbot])
	assert.Equal(t, limiter.DefaultPolicies[limiter.CategoryGeneral], cfg.RateLimit.Policies[limiter.CategoryGeneral])
}

func TestLoadPartialPolicyFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "folio.yaml")
	content := `
ratelimit:
  policies:
    contact:
      limit: 2
    github:
      window: 5m
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, limiter.Policy{Limit: 2, Window: time.Minute}, cfg.RateLimit.Policies[limiter.CategoryContact])
	assert.Equal(t, limiter.Policy{Limit: 10, Window: 5 * time.Minute}, cfg.RateLimit.Policies[limiter.CategoryGitHub])
}
