package iocache

import (
	"context"
	"sync"
	"time"

	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

type memoryEntry struct {
	value     []byte
	timestamp int64
}

// MemoryEphemeralStore keeps presentation values in process memory.
// Expired entries are dropped lazily on Get and on GetStatus.
type MemoryEphemeralStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ contract.EphemeralStore = &MemoryEphemeralStore{} // Compile-time check

// NewMemoryEphemeralStore returns an empty in-process store.
func NewMemoryEphemeralStore(ttl time.Duration) *MemoryEphemeralStore {
	return &MemoryEphemeralStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (s *MemoryEphemeralStore) expired(e memoryEntry) bool {
	return s.ttl > 0 && s.now().Unix()-e.timestamp >= int64(s.ttl/time.Second)
}

// Get implements the EphemeralStore interface.
func (s *MemoryEphemeralStore) Get(_ context.Context, key string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, 0, contract.ErrCacheMiss
	}
	if s.expired(e) {
		delete(s.entries, key)
		return nil, 0, contract.ErrCacheMiss
	}
	return e.value, e.timestamp, nil
}

// Set implements the EphemeralStore interface.
func (s *MemoryEphemeralStore) Set(_ context.Context, key string, value []byte, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: append([]byte(nil), value...), timestamp: timestamp}
	return nil
}

// GetStatus implements the EphemeralStore interface.
func (s *MemoryEphemeralStore) GetStatus(_ context.Context) (schema.EphemeralStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, key)
		}
	}
	return schema.EphemeralStatus{
		Backend:      string(schema.MemoryEphemeral),
		Connected:    true,
		TotalEntries: len(s.entries),
		TTL:          s.ttl,
	}, nil
}

// Clear implements the EphemeralStore interface.
func (s *MemoryEphemeralStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
	return nil
}

// Close implements the EphemeralStore interface.
func (s *MemoryEphemeralStore) Close() error {
	return nil
}
