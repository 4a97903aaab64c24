package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateAndPrepareDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.ValidateAndPrepare())

	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, DefaultCapacity, cfg.Capacity)
	assert.Equal(t, DefaultCleanupInterval, cfg.CleanupInterval)
	assert.Equal(t, Policy{Limit: 5, Window: time.Minute}, cfg.Policies[CategoryContact])
	assert.Equal(t, Policy{Limit: 10, Window: time.Minute}, cfg.Policies[CategoryGitHub])
	assert.Equal(t, Policy{Limit: 20, Window: time.Minute}, cfg.Policies[CategoryChatbot])
	assert.Equal(t, Policy{Limit: 30, Window: time.Minute}, cfg.Policies[CategoryGeneral])
}

func TestConfigValidateAndPrepareKeepsOverrides(t *testing.T) {
	cfg := &Config{
		Policies: map[string]Policy{
			CategoryContact: {Limit: 2, Window: 10 * time.Second},
		},
	}
	require.NoError(t, cfg.ValidateAndPrepare())
	assert.Equal(t, Policy{Limit: 2, Window: 10 * time.Second}, cfg.Policies[CategoryContact])
	assert.Len(t, cfg.Policies, len(DefaultPolicies))
}

func TestConfigValidateAndPrepareErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "storage", cfg: Config{StorageType: "disk"}},
		{name: "capacity", cfg: Config{Capacity: -1}},
		{name: "cleanup", cfg: Config{CleanupInterval: -time.Second}},
		{name: "limit", cfg: Config{Policies: map[string]Policy{"x": {Limit: 0, Window: time.Second}}}},
		{name: "window", cfg: Config{Policies: map[string]Policy{"x": {Limit: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			require.Error(t, cfg.ValidateAndPrepare())
		})
	}
}

func TestNewSetBuildsIndependentLimiters(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{}
	require.NoError(t, cfg.ValidateAndPrepare())

	set, err := NewSet(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{CategoryChatbot, CategoryContact, CategoryGeneral, CategoryGitHub}, set.Categories())

	contact, err := set.Get(CategoryContact)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		res, err := contact.Check(ctx, "ip")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := contact.Check(ctx, "ip")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	github, err := set.Get(CategoryGitHub)
	require.NoError(t, err)
	res, err = github.Check(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 9, res.Remaining)

	require.NoError(t, set.Clear(ctx))
	res, err = contact.Check(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	_, err = set.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestNewSetRedisRequiresClient(t *testing.T) {
	cfg := &Config{StorageType: StorageRedis}
	require.NoError(t, cfg.ValidateAndPrepare())

	_, err := NewSet(cfg, nil)
	require.Error(t, err)

	_, client := newTestRedis(t)
	set, err := NewSet(cfg, client)
	require.NoError(t, err)

	l, err := set.Get(CategoryChatbot)
	require.NoError(t, err)
	res, err := l.Check(context.Background(), "ip")
	require.NoError(t, err)
	assert.Equal(t, 19, res.Remaining)
}
