package limiter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3, time.Hour)
	policy := Policy{Limit: 1, Window: time.Minute}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, key := range []string{"a", "b", "c"} {
		_, allowed, err := store.Take(ctx, key, policy, now)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	require.Equal(t, 3, store.Len())

	// "a" is exhausted until the store forgets it
	_, allowed, err := store.Take(ctx, "a", policy, now)
	require.NoError(t, err)
	require.False(t, allowed)

	for i := 0; i < 10; i++ {
		_, _, err := store.Take(ctx, fmt.Sprintf("new-%d", i), policy, now)
		require.NoError(t, err)
		assert.LessOrEqual(t, store.Len(), 3)
	}
	assert.Equal(t, 3, store.Len())

	entry, allowed, err := store.Take(ctx, "a", policy, now)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, entry.Count)
}

func TestMemoryStoreEvictionIsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)
	policy := Policy{Limit: 5, Window: time.Minute}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := store.Take(ctx, "a", policy, now)
	require.NoError(t, err)
	_, _, err = store.Take(ctx, "b", policy, now)
	require.NoError(t, err)

	// touching "a" again does not make it younger
	entry, _, err := store.Take(ctx, "a", policy, now)
	require.NoError(t, err)
	require.Equal(t, 2, entry.Count)

	// "c" is new, so the oldest insertion ("a") goes
	_, _, err = store.Take(ctx, "c", policy, now)
	require.NoError(t, err)

	entry, _, err = store.Take(ctx, "b", policy, now)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Count, "b should have survived")

	entry, _, err = store.Take(ctx, "a", policy, now)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Count, "a should have been evicted first")
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStoreRenewalAtCapacity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)
	policy := Policy{Limit: 5, Window: time.Minute}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := store.Take(ctx, "a", policy, start)
	require.NoError(t, err)
	_, _, err = store.Take(ctx, "b", policy, start.Add(30*time.Second))
	require.NoError(t, err)

	// renewing an expired identifier at capacity replaces it without evicting
	renewed := start.Add(61 * time.Second)
	entry, allowed, err := store.Take(ctx, "a", policy, renewed)
	require.NoError(t, err)
	require.True(t, allowed)
	assert.Equal(t, 1, entry.Count)
	assert.Equal(t, renewed.Add(time.Minute), entry.ResetAt)
	assert.Equal(t, 2, store.Len())

	entry, _, err = store.Take(ctx, "b", policy, renewed)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Count, "b must not be evicted by the renewal")

	// the renewed window is the youngest insertion, so "b" goes first
	_, _, err = store.Take(ctx, "c", policy, renewed)
	require.NoError(t, err)

	entry, _, err = store.Take(ctx, "a", policy, renewed)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Count, "a should have survived")
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStoreLazySweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100, time.Minute)
	short := Policy{Limit: 5, Window: time.Second}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, _, err := store.Take(ctx, fmt.Sprintf("k%d", i), short, start)
		require.NoError(t, err)
	}
	require.Equal(t, 5, store.Len())

	// expired but the cleanup interval has not elapsed yet
	_, _, err := store.Take(ctx, "other", short, start.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 6, store.Len())

	// past the interval the sweep drops every expired entry before inserting
	_, _, err = store.Take(ctx, "late", short, start.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100, time.Hour)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := store.Take(ctx, "short", Policy{Limit: 1, Window: time.Second}, start)
	require.NoError(t, err)
	_, _, err = store.Take(ctx, "long", Policy{Limit: 1, Window: time.Hour}, start)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Sweep(start.Add(2*time.Second)))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, store.Sweep(start.Add(2*time.Second)))
}

func TestMemoryStoreExpiredEntryIsReplaced(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(1, time.Hour)
	policy := Policy{Limit: 1, Window: time.Second}
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := store.Take(ctx, "a", policy, start)
	require.NoError(t, err)

	entry, allowed, err := store.Take(ctx, "a", policy, start.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, entry.Count)
	assert.Equal(t, start.Add(3*time.Second), entry.ResetAt)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreConcurrentTakes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100, time.Minute)
	policy := Policy{Limit: 50, Window: time.Minute}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Take(ctx, "shared", policy, now)
			if err != nil || !ok {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}
