package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Persisted keys. Both absent means "no session".
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// ErrNotFound is returned by Backend.Get when a key is absent.
var ErrNotFound = errors.New("session key not found")

// Backend is the string key/value persistence layer behind a Store.
//
// Implementations must be safe for concurrent use. Delete of a missing key
// is not an error.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Backend kinds accepted by NewBackend.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendEncrypted = "encrypted"
	BackendRedis     = "redis"
)

// Options selects and configures a Backend.
type Options struct {
	Kind       string
	Path       string
	Passphrase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// NewBackend builds the backend described by opts.
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Kind {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendFile, "":
		return NewFileBackend(opts.Path), nil
	case BackendEncrypted:
		return NewEncryptedFileBackend(opts.Path, opts.Passphrase)
	case BackendRedis:
		return NewRedisBackend(ctx, RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			Prefix:   opts.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown session backend %q", opts.Kind)
	}
}

// MemoryBackend keeps values for the lifetime of the process.
type MemoryBackend struct {
	values sync.Map
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Get returns the value stored under key.
func (m *MemoryBackend) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values.Load(key)
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

// Set stores value under key.
func (m *MemoryBackend) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	m.values.Store(key, value)
	return nil
}

// Delete removes key.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.values.Delete(key)
	return nil
}
