package store

import (
	"context"
	"iter"
)

// LocalBackend stores values in a Manager.
type LocalBackend struct {
	m    *Manager
	owns bool
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend wraps m. When owns is true, Close also closes m.
func NewLocalBackend(m *Manager, owns bool) *LocalBackend {
	return &LocalBackend{m: m, owns: owns}
}

// Name implements Backend.
func (b *LocalBackend) Name() string { return "local" }

// Get implements Backend.
func (b *LocalBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return b.m.get(ctx, key)
}

// Put implements Backend.
func (b *LocalBackend) Put(ctx context.Context, key string, value []byte) error {
	return b.m.put(ctx, key, value)
}

// SetDefault implements Backend.
func (b *LocalBackend) SetDefault(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	return b.m.setDefault(ctx, key, value)
}

// Delete implements Backend.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	return b.m.delete(ctx, key)
}

// Pop implements Backend.
func (b *LocalBackend) Pop(ctx context.Context, key string) ([]byte, bool, error) {
	return b.m.pop(ctx, key)
}

// Keys implements Backend. The key set is snapshotted when iteration starts.
func (b *LocalBackend) Keys(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		keys, err := b.m.keys(ctx, prefix)
		if err != nil {
			yield("", err)
			return
		}
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// Close implements Backend.
func (b *LocalBackend) Close() error {
	if b.owns {
		return b.m.Close()
	}
	return nil
}
