package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"docshare/internal/repository"
)

// Store is an in-memory repository.KeyValueStore.
// It is the default store and suitable for a single process; data is lost on restart.
type Store struct {
	mu      sync.RWMutex
	entries map[string]repository.Entry
	closed  bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]repository.Entry)}
}

var _ repository.KeyValueStore = (*Store)(nil)

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, key string) (repository.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return repository.Entry{}, repository.ErrStoreClosed
	}
	e, ok := s.entries[key]
	if !ok {
		return repository.Entry{}, repository.ErrNotFound
	}
	return e, nil
}

// Create inserts key if it is not already present.
func (s *Store) Create(ctx context.Context, key, value string) (repository.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return repository.Entry{}, repository.ErrStoreClosed
	}
	if _, ok := s.entries[key]; ok {
		return repository.Entry{}, repository.ErrKeyExists
	}
	e := repository.Entry{Key: key, Value: value, Version: 1}
	s.entries[key] = e
	return e, nil
}

// Update swaps the value when the stored version matches.
func (s *Store) Update(ctx context.Context, key, value string, version int64) (repository.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return repository.Entry{}, repository.ErrStoreClosed
	}
	cur, ok := s.entries[key]
	if !ok {
		return repository.Entry{}, repository.ErrNotFound
	}
	if cur.Version != version {
		return repository.Entry{}, repository.ErrVersionConflict
	}
	e := repository.Entry{Key: key, Value: value, Version: cur.Version + 1}
	s.entries[key] = e
	return e, nil
}

// Delete removes key; a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return repository.ErrStoreClosed
	}
	delete(s.entries, key)
	return nil
}

// List returns the entries under prefix sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]repository.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, repository.ErrStoreClosed
	}
	out := make([]repository.Entry, 0)
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Ping fails once the store is closed.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return repository.ErrStoreClosed
	}
	return nil
}

// Close releases the entries; every later call fails with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}

// Len returns the number of live keys.
// This is for monitoring/testing purposes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
