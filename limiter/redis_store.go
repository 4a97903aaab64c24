package limiter

import (
	"context"
	_ "embed" // needed for go:embed
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

//go:embed window.lua
var redisWindowScript string

var redisScript = redis.NewScript(redisWindowScript)

// redisStore implements the Store interface using Redis hashes.
// Every limiter gets its own key prefix so categories never share counters.
type redisStore struct {
	client redis.Cmdable // Cmdable keeps ClusterClient and friends usable
	prefix string
}

// NewRedisStore creates a Redis-backed store whose keys live under prefix.
func NewRedisStore(client redis.Cmdable, prefix string) Store {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

// Take implements the Store interface with a single Lua evaluation, which makes
// the check-and-increment atomic across every process sharing the Redis instance.
func (s *redisStore) Take(ctx context.Context, key string, policy Policy, now time.Time) (Entry, bool, error) {
	keys := []string{s.key(key)}
	args := []any{
		now.UnixMilli(),              // ARGV[1]
		policy.Window.Milliseconds(), // ARGV[2]
		policy.Limit,                 // ARGV[3]
	}

	result, err := redisScript.Run(ctx, s.client, keys, args...).Int64Slice()
	if err != nil {
		log.Error().Err(err).Str("key", keys[0]).Msg("redis window script execution failed")
		return Entry{}, false, fmt.Errorf("redis command failed for key %s: %w", keys[0], err)
	}
	if len(result) != 3 {
		return Entry{}, false, fmt.Errorf("unexpected result from redis script for key %s: %v", keys[0], result)
	}

	entry := Entry{
		Count:   int(result[1]),
		ResetAt: time.UnixMilli(result[2]).In(now.Location()),
	}
	allowed := result[0] == 1
	if !allowed {
		log.Debug().Str("key", keys[0]).Int("count", entry.Count).Int("limit", policy.Limit).Msg("redis window exhausted")
	}
	return entry, allowed, nil
}

// Clear implements the Store interface by deleting every key under the prefix.
func (s *redisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis clear failed for prefix %s: %w", s.prefix, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed for prefix %s: %w", s.prefix, err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis clear failed for prefix %s: %w", s.prefix, err)
		}
	}
	return nil
}

func (s *redisStore) key(identifier string) string {
	return s.prefix + ":" + identifier
}
