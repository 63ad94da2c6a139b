// Package memstore keeps agent state in process memory. Nothing survives a
// restart; it backs tests and agents that receive their whole configuration
// over the session.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/store"
)

// Driver is the name this backend registers under.
const Driver = "memory"

func init() {
	store.Register(Driver, func(string) (store.Store, error) { return New(), nil })
}

type Store struct {
	mu      sync.RWMutex
	config  []form.KeyValueList
	private map[string]string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{private: make(map[string]string)}
}

func (s *Store) LoadConfig(ctx context.Context) (*form.Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil, store.ErrNotFound
	}
	return form.FromPairs(s.config...), nil
}

func (s *Store) SaveConfig(ctx context.Context, conf *form.Form) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pairs := conf.Pairs()
	if pairs == nil {
		pairs = []form.KeyValueList{}
	}
	s.mu.Lock()
	s.config = pairs
	s.mu.Unlock()
	return nil
}

func (s *Store) GetPrivate(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.private[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (s *Store) SetPrivate(ctx context.Context, key, value string) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	s.private[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Store) DeletePrivate(ctx context.Context, key string) error {
	if err := validKey(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.private, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }

func validKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("private key is required")
	}
	return nil
}
