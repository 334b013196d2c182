// Package memory is a map-backed store for tests and for running the console
// without a state file.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/aussiebroadwan/backoffice/internal/console/store"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// WithTx runs fn against a staged copy and swaps it in only on success.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.KV) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &txStore{data: maps.Clone(s.data)}
	if err := fn(staged); err != nil {
		return err
	}
	s.data = staged.data
	return nil
}

func (s *Store) ApplyMigrations() error       { return nil }
func (s *Store) Close() error                 { return nil }
func (s *Store) Ping(_ context.Context) error { return nil }

// txStore is the unlocked view handed to WithTx callbacks.
type txStore struct {
	data map[string]string
}

func (t *txStore) Get(_ context.Context, key string) (string, error) {
	v, ok := t.data[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (t *txStore) Set(_ context.Context, key, value string) error {
	t.data[key] = value
	return nil
}

func (t *txStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(t.data, k)
	}
	return nil
}
