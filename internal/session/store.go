// Package session keeps finished audit results addressable by ID for the
// lifetime of the process.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one stored value.
type Entry struct {
	ID        string      `json:"id"`
	Value     interface{} `json:"value"`
	CreatedAt time.Time   `json:"created_at"`
}

// Store holds audit results by ID.
type Store interface {
	// Put stores value and returns its new ID.
	Put(ctx context.Context, value interface{}) (string, error)
	Get(ctx context.Context, id string) (Entry, bool, error)
	Delete(ctx context.Context, id string) error
	// List returns all entries, oldest first.
	List(ctx context.Context) ([]Entry, error)
}

// MemoryStore is a Store backed by a map. The zero value is not usable;
// call NewMemoryStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	limit   int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store that keeps at most limit entries,
// evicting the oldest. limit <= 0 means unbounded.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		limit:   limit,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, value interface{}) (string, error) {
	e := Entry{
		ID:        uuid.NewString(),
		Value:     value,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.ID] = e
	if s.limit > 0 && len(s.entries) > s.limit {
		s.evictOldest()
	}
	return e.ID, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	return e, ok, nil
}

// Delete implements Store. Deleting an unknown ID is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) evictOldest() {
	var oldest Entry
	first := true
	for _, e := range s.entries {
		if first || e.CreatedAt.Before(oldest.CreatedAt) {
			oldest = e
			first = false
		}
	}
	delete(s.entries, oldest.ID)
}
