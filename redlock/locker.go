// Package redlock provides a single-instance Redis lock (SET NX PX plus a
// compare-and-delete release). It serializes cache refreshes between processes
// that share one Redis deployment.
package redlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultTTL        = 10 * time.Second
	defaultRetryDelay = 100 * time.Millisecond
	defaultMaxRetries = 50
)

var (
	// ErrNotAcquired is returned by TryLock when another holder owns the key.
	ErrNotAcquired = errors.New("redlock: lock not acquired")
	// ErrNotHeld is returned by Unlock when the lock expired or belongs to someone else.
	ErrNotHeld = errors.New("redlock: lock not held")
	// ErrRetriesExhausted is returned by Lock after maxRetries failed attempts.
	ErrRetriesExhausted = errors.New("redlock: maximum lock retries exceeded")
)

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker guards one key. A Locker is not safe for concurrent use; create one per critical section.
type Locker struct {
	client     redis.Cmdable
	key        string
	token      string // set while held
	ttl        time.Duration
	retryDelay time.Duration
	maxRetries int // 0 means retry until ctx is done
}

// Option configures a Locker.
type Option func(*Locker)

// WithTTL sets how long the lock survives if never released.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryDelay sets the pause between attempts made by Lock.
func WithRetryDelay(delay time.Duration) Option {
	return func(l *Locker) {
		if delay > 0 {
			l.retryDelay = delay
		}
	}
}

// WithMaxRetries bounds the attempts made by Lock. Zero retries until ctx is done.
func WithMaxRetries(n int) Option {
	return func(l *Locker) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

// New creates a Locker for key.
func New(client redis.Cmdable, key string, opts ...Option) *Locker {
	l := &Locker{
		client:     client,
		key:        key,
		ttl:        defaultTTL,
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryLock makes a single acquisition attempt.
func (l *Locker) TryLock(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	l.token = token
	log.Debug().Str("key", l.key).Dur("ttl", l.ttl).Msg("lock acquired")
	return nil
}

// Lock retries TryLock every retryDelay until it succeeds, ctx is done, or
// maxRetries attempts have failed.
func (l *Locker) Lock(ctx context.Context) error {
	err := l.TryLock(ctx)
	if !errors.Is(err, ErrNotAcquired) {
		return err
	}

	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		err := l.TryLock(ctx)
		if !errors.Is(err, ErrNotAcquired) {
			return err
		}
		if l.maxRetries > 0 && attempt >= l.maxRetries {
			log.Warn().Str("key", l.key).Int("attempts", attempt).Msg("giving up on lock")
			return ErrRetriesExhausted
		}
	}
}

// Unlock releases the lock if this Locker still holds it.
func (l *Locker) Unlock(ctx context.Context) error {
	if l.token == "" {
		return ErrNotHeld
	}
	token := l.token
	l.token = ""

	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int64()
	if err != nil {
		return err
	}
	if deleted != 1 {
		log.Warn().Str("key", l.key).Msg("lock expired or taken over before release")
		return ErrNotHeld
	}
	return nil
}

// Key returns the guarded key.
func (l *Locker) Key() string {
	return l.key
}
