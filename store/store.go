// Package store persists the agent's last received configuration and its
// private key/value settings.
package store

import (
	"context"
	"errors"

	"github.com/younglifestyle/conflate4go/form"
)

var (
	// ErrNotFound is returned when no value exists for the requested key or
	// no configuration was ever saved.
	ErrNotFound = errors.New("store: not found")
	// ErrUnknownDriver is returned by Open for an unregistered driver name.
	ErrUnknownDriver = errors.New("store: unknown driver")
)

// Well-known private keys.
const (
	KeyStoredJID       = "stored_jid"
	KeyConfigIsPrivate = "config_is_private"
)

// Store is the durable state of one agent. The storage location is bound
// when the store is opened.
type Store interface {
	// LoadConfig returns the last saved configuration, which may be empty, or
	// ErrNotFound when none was ever saved.
	LoadConfig(ctx context.Context) (*form.Form, error)
	// SaveConfig replaces the saved configuration.
	SaveConfig(ctx context.Context, conf *form.Form) error
	// GetPrivate returns the value stored under key, or ErrNotFound.
	GetPrivate(ctx context.Context, key string) (string, error)
	SetPrivate(ctx context.Context, key, value string) error
	// DeletePrivate removes key. Removing a missing key is not an error.
	DeletePrivate(ctx context.Context, key string) error
	Close() error
}
