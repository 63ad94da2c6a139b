// Package sqlitestore provides a SQLite-backed agent store.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/store"
)

// Driver is the name this backend registers under.
const Driver = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS config (
  key   TEXT NOT NULL,
  idx   INTEGER NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (key, idx)
);
CREATE TABLE IF NOT EXISTS config_keys (
  key TEXT PRIMARY KEY,
  pos INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS config_saved (
  id INTEGER PRIMARY KEY CHECK (id = 1)
);
CREATE TABLE IF NOT EXISTS private (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

func init() {
	store.Register(Driver, func(path string) (store.Store, error) { return Open(path) })
}

// Store persists agent state in SQLite. Configuration keys keep their form
// order through config_keys; each value is one config row. The single
// config_saved row tells a saved empty form apart from none.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens a SQLite store and creates its tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) LoadConfig(ctx context.Context) (*form.Form, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var saved int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id FROM config_saved`).Scan(&saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query config marker: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT k.key, c.value
		   FROM config_keys k LEFT JOIN config c ON c.key = k.key
		  ORDER BY k.pos, c.idx`)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()

	conf := form.New()
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		values, _ := conf.Get(key)
		if value.Valid {
			values = append(values, value.String)
		}
		conf.Set(key, values...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config: %w", err)
	}
	return conf, nil
}

func (s *Store) SaveConfig(ctx context.Context, conf *form.Form) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin config tx: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	for _, stmt := range []string{`DELETE FROM config`, `DELETE FROM config_keys`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear config: %w", err)
		}
	}
	if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO config_saved (id) VALUES (1)`); err != nil {
		return fmt.Errorf("mark config saved: %w", err)
	}
	for pos, pair := range conf.Pairs() {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO config_keys (key, pos) VALUES (?, ?)`, pair.Key, pos); err != nil {
			return fmt.Errorf("insert config key %q: %w", pair.Key, err)
		}
		for idx, value := range pair.Values {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO config (key, idx, value) VALUES (?, ?, ?)`, pair.Key, idx, value); err != nil {
				return fmt.Errorf("insert config value %q: %w", pair.Key, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}

func (s *Store) GetPrivate(ctx context.Context, key string) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("private key is required")
	}

	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM private WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get private %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetPrivate(ctx context.Context, key, value string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("private key is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO private (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set private %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeletePrivate(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("private key is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM private WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete private %q: %w", key, err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}
