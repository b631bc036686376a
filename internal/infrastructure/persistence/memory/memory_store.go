// Package memory is a process-local storage.Adapter backed by go-cache.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/turtacn/credkit/pkg/storage"
)

// Store keeps records in an in-memory cache with no expiration.
type Store struct {
	// mu serializes check-then-act operations (Remove, Clear) against writers.
	mu    sync.Mutex
	items *cache.Cache
}

// New creates an empty Store.
func New() *Store {
	return &Store{items: cache.New(cache.NoExpiration, 0)}
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, found := s.items.Get(name)
	return found, nil
}

func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	v, found := s.items.Get(name)
	if !found {
		return nil, nil
	}
	return clone(v.([]byte)), nil
}

func (s *Store) Store(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.items.Add(name, clone(data), cache.NoExpiration); err != nil {
		return storage.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.items.Replace(name, clone(data), cache.NoExpiration); err != nil {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.items.Get(name); !found {
		return false, nil
	}
	s.items.Delete(name)
	return true, nil
}

// List returns records ordered by name.
func (s *Store) List(ctx context.Context) ([][]byte, error) {
	items := s.items.Items()
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([][]byte, 0, len(names))
	for _, name := range names {
		out = append(out, clone(items[name].Object.([]byte)))
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Flush()
	return nil
}

// clone never returns nil so an empty record is distinguishable from a miss.
func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ storage.Adapter = (*Store)(nil)
