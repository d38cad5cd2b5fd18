// Package memory provides a generic thread-safe in-memory store used by
// repository adapters. Listings come back in a caller-defined order.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNotFound is returned by Store when the requested key does not exist.
var ErrNotFound = errors.New("not found")

// Store is a generic thread-safe in-memory key-value store.
type Store[K comparable, V any] struct {
	mu      sync.RWMutex
	data    map[K]V
	keyFunc func(V) K
	cmp     func(a, b V) int
}

// New creates a Store with a key extractor and an ordering for All and
// Filter. A nil cmp leaves the order unspecified.
func New[K comparable, V any](keyFunc func(V) K, cmp func(a, b V) int) *Store[K, V] {
	return &Store[K, V]{
		data:    make(map[K]V),
		keyFunc: keyFunc,
		cmp:     cmp,
	}
}

// Set inserts or replaces the value, using keyFunc to derive the key.
func (s *Store[K, V]) Set(_ context.Context, v V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.keyFunc(v)] = v
	return nil
}

// Insert stores v only if its key is free. It reports whether v was stored.
func (s *Store[K, V]) Insert(_ context.Context, v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keyFunc(v)
	if _, ok := s.data[k]; ok {
		return false
	}
	s.data[k] = v
	return true
}

// Get returns the value for key, or ErrNotFound if absent.
func (s *Store[K, V]) Get(_ context.Context, key K) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return v, nil
}

// Delete removes the value for key. Returns ErrNotFound if absent.
func (s *Store[K, V]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// All returns all stored values, sorted when the store has an ordering.
func (s *Store[K, V]) All(ctx context.Context) ([]V, error) {
	return s.Filter(ctx, func(V) bool { return true })
}

// Filter returns all values for which pred returns true.
func (s *Store[K, V]) Filter(_ context.Context, pred func(V) bool) ([]V, error) {
	s.mu.RLock()
	out := make([]V, 0, len(s.data))
	for _, v := range s.data {
		if pred(v) {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	if s.cmp != nil {
		slices.SortStableFunc(out, s.cmp)
	}
	return out, nil
}

// Has reports whether the key exists.
func (s *Store[K, V]) Has(_ context.Context, key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of stored values.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
