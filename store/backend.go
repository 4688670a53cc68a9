package store

import (
	"context"
	"iter"
)

// Backend is the raw byte store under a Store. Keys are full, already
// bucket-prefixed keys; the Store owns prefixing and encoding.
type Backend interface {
	// Name labels the backend in logs and metrics.
	Name() string

	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error

	// SetDefault stores value if key is absent. It returns the value now held
	// under key and whether key already existed. It must be atomic.
	SetDefault(ctx context.Context, key string, value []byte) ([]byte, bool, error)

	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Pop(ctx context.Context, key string) ([]byte, bool, error)

	// Keys yields every key starting with prefix. Each call is a fresh scan.
	Keys(ctx context.Context, prefix string) iter.Seq2[string, error]

	Close() error
}
