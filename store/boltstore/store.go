// Package boltstore provides a BoltDB-backed agent store.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/store"
)

// Driver is the name this backend registers under.
const Driver = "bolt"

const (
	configBucket  = "config"
	privateBucket = "private"
	configKey     = "current"
)

func init() {
	store.Register(Driver, func(path string) (store.Store, error) { return Open(path) })
}

// Store keeps the configuration as one JSON document and private values as
// plain keys.
type Store struct {
	db *bbolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) LoadConfig(ctx context.Context) (*form.Form, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var pairs []form.KeyValueList
	err := s.db.View(func(tx *bbolt.Tx) error {
		payload := tx.Bucket([]byte(configBucket)).Get([]byte(configKey))
		if payload == nil {
			return store.ErrNotFound
		}
		if err := json.Unmarshal(payload, &pairs); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return form.FromPairs(pairs...), nil
}

func (s *Store) SaveConfig(ctx context.Context, conf *form.Form) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(conf.Pairs())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(configBucket)).Put([]byte(configKey), payload)
	})
}

func (s *Store) GetPrivate(ctx context.Context, key string) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("private key is required")
	}

	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(privateBucket)).Get([]byte(key))
		if raw == nil {
			return store.ErrNotFound
		}
		value = string(raw)
		return nil
	})
	return value, err
}

func (s *Store) SetPrivate(ctx context.Context, key, value string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("private key is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(privateBucket)).Put([]byte(key), []byte(value))
	})
}

func (s *Store) DeletePrivate(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("private key is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(privateBucket)).Delete([]byte(key))
	})
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{configBucket, privateBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
