package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time // zero means no expiry
}

// memoryStore is a process-local Store used in tests and when REDIS_ADDR is
// unset in local development. Same TTL semantics as the redis implementation.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryStoreAt is for tests that need to control the clock.
func NewMemoryStoreAt(now func() time.Time) Store {
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (s *memoryStore) get(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *memoryStore) GetJSON(_ context.Context, key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	if !ok {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(e.raw, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *memoryStore) SetJSON(_ context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{raw: raw}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *memoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	if !ok {
		return 0, false, nil
	}
	if e.expiresAt.IsZero() {
		return 0, true, nil
	}
	return e.expiresAt.Sub(s.now()), true, nil
}

func (s *memoryStore) IncrBy(_ context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cur int64
	if e, ok := s.get(key); ok {
		if v, err := strconv.ParseInt(string(e.raw), 10, 64); err == nil {
			cur = v
		}
	}
	cur += n
	s.entries[key] = memoryEntry{raw: []byte(strconv.FormatInt(cur, 10))}
	return cur, nil
}

func (s *memoryStore) GetInt(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.get(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(string(e.raw), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return v, true, nil
}

func (s *memoryStore) Close() error { return nil }
