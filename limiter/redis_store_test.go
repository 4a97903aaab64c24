package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreFixedWindow(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	clock := newFakeClock()
	start := clock.Now()

	l, err := New(CategoryContact, contactPolicy, NewRedisStore(client, "ratelimit:contact"), WithClock(clock.Now))
	require.NoError(t, err)

	for want := 4; want >= 0; want-- {
		res, err := l.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, want, res.Remaining)
		assert.Equal(t, start.Add(time.Minute), res.ResetAt)
		clock.Advance(time.Millisecond)
	}

	res, err := l.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, start.Add(time.Minute), res.ResetAt)

	clock.now = start.Add(60001 * time.Millisecond)
	res, err = l.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
	assert.Equal(t, start.Add(120001*time.Millisecond), res.ResetAt)
}

func TestRedisStoreKeyExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "ratelimit:general")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, allowed, err := store.Take(ctx, "a", Policy{Limit: 1, Window: time.Second}, now)
	require.NoError(t, err)
	require.True(t, allowed)
	require.True(t, mr.Exists("ratelimit:general:a"))

	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists("ratelimit:general:a"))
}

func TestRedisStorePrefixesIsolateLimiters(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := Policy{Limit: 1, Window: time.Minute}

	contact := NewRedisStore(client, "ratelimit:contact")
	github := NewRedisStore(client, "ratelimit:github")

	_, allowed, err := contact.Take(ctx, "ip", policy, now)
	require.NoError(t, err)
	require.True(t, allowed)
	_, allowed, err = contact.Take(ctx, "ip", policy, now)
	require.NoError(t, err)
	require.False(t, allowed)

	_, allowed, err = github.Take(ctx, "ip", policy, now)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, contact.Clear(ctx))
	_, allowed, err = contact.Take(ctx, "ip", policy, now)
	require.NoError(t, err)
	assert.True(t, allowed)

	_, allowed, err = github.Take(ctx, "ip", policy, now)
	require.NoError(t, err)
	assert.False(t, allowed, "clearing one prefix must not touch another")
}

func TestRedisStoreReportsErrors(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "ratelimit:contact")

	_, _, err := store.Take(ctx, "a", contactPolicy, time.Now())
	require.Error(t, err)
}

func TestRedisStoreResetAtMatchesMemoryStore(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	policy := Policy{Limit: 2, Window: time.Minute}
	now := time.Date(2025, 1, 1, 9, 30, 0, 0, time.FixedZone("UTC+2", 2*60*60))

	redisEntry, _, err := NewRedisStore(client, "ratelimit:contact").Take(ctx, "a", policy, now)
	require.NoError(t, err)
	memoryEntry, _, err := NewMemoryStore(10, time.Minute).Take(ctx, "a", policy, now)
	require.NoError(t, err)

	assert.Equal(t, memoryEntry, redisEntry)
	assert.Equal(t, now.Location(), redisEntry.ResetAt.Location())
}
