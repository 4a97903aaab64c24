package limiter

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MemoryStore implements Store with a bounded in-process map.
// Entries are kept in insertion order so that a full store evicts the oldest one.
type MemoryStore struct {
	mu              sync.Mutex
	entries         map[string]*list.Element // key -> element holding *memoryEntry
	order           *list.List               // front is the oldest insertion
	capacity        int
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

type memoryEntry struct {
	key string
	Entry
}

// NewMemoryStore creates a memory store holding at most capacity entries and
// sweeping expired ones at most once per cleanupInterval.
// Non-positive arguments fall back to DefaultCapacity and DefaultCleanupInterval.
func NewMemoryStore(capacity int, cleanupInterval time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &MemoryStore{
		entries:         make(map[string]*list.Element),
		order:           list.New(),
		capacity:        capacity,
		cleanupInterval: cleanupInterval,
	}
}

// Take implements the Store interface for memory storage. It never fails.
func (s *MemoryStore) Take(ctx context.Context, key string, policy Policy, now time.Time) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastCleanup) > s.cleanupInterval {
		s.sweepLocked(now)
	}

	elem, exists := s.entries[key]
	if !exists || elem.Value.(*memoryEntry).expired(now) {
		if exists {
			// the old window is discarded, the new one counts as a fresh insertion
			s.removeLocked(elem)
		} else if len(s.entries) >= s.capacity {
			s.evictOldestLocked()
		}

		fresh := &memoryEntry{key: key, Entry: Entry{Count: 1, ResetAt: now.Add(policy.Window)}}
		s.entries[key] = s.order.PushBack(fresh)
		log.Debug().Str("key", key).Int("limit", policy.Limit).Time("reset_at", fresh.ResetAt).Msg("new window started")
		return fresh.Entry, true, nil
	}

	current := elem.Value.(*memoryEntry)
	if current.Count >= policy.Limit {
		log.Debug().Str("key", key).Int("count", current.Count).Int("limit", policy.Limit).Msg("window exhausted")
		return current.Entry, false, nil
	}

	current.Count++
	return current.Entry, true, nil
}

// Clear implements the Store interface.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.order.Init()
	return nil
}

// Len returns the number of tracked identifiers, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every entry whose window has elapsed at now.
// It returns the number of removed entries.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	s.lastCleanup = now

	removed := 0
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*memoryEntry).expired(now) {
			s.removeLocked(elem)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", len(s.entries)).Msg("expired entries swept")
	}
	return removed
}

func (s *MemoryStore) evictOldestLocked() {
	oldest := s.order.Front()
	if oldest == nil {
		return
	}
	s.removeLocked(oldest)
	log.Debug().Str("key", oldest.Value.(*memoryEntry).key).Int("capacity", s.capacity).Msg("store at capacity, evicted oldest entry")
}

func (s *MemoryStore) removeLocked(elem *list.Element) {
	s.order.Remove(elem)
	delete(s.entries, elem.Value.(*memoryEntry).key)
}
