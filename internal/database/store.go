// Package database provides key-value storage backends for listener state.
package database

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// Store defines the interface for key-value operations.
// SQLite, PostgreSQL, Redis, Badger and the in-memory map all satisfy it.
type Store interface {
	Close() error

	// DatabaseType returns the name of the backend ("SQLite", "PostgreSQL", ...).
	DatabaseType() string

	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Path     string // sqlite file or badger directory
	DSN      string // postgres connection string
	RedisURL string
}

// Open creates the backend described by opts.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return New(opts.Path)
	case BackendPostgres:
		return NewPostgres(opts.DSN)
	case BackendRedis:
		return NewRedis(opts.RedisURL)
	case BackendBadger:
		return NewBadger(opts.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Scoped prefixes every key with namespace so several listeners can share one backend.
type Scoped struct {
	Store
	prefix string
}

// NewScoped returns a view of s whose keys live under namespace.
func NewScoped(s Store, namespace string) *Scoped {
	return &Scoped{Store: s, prefix: namespace + ":"}
}

// Get reads key inside the namespace.
func (s *Scoped) Get(key string) (string, error) {
	return s.Store.Get(s.prefix + key)
}

// Set writes key inside the namespace.
func (s *Scoped) Set(key, value string) error {
	return s.Store.Set(s.prefix+key, value)
}

// Close is a no-op: the shared backend is owned by whoever opened it.
func (s *Scoped) Close() error {
	return nil
}
