package store

import (
	"context"
	stderrors "errors"
	"iter"
	"strings"

	"github.com/andreagemma/ga/natsclient"
)

// NetworkedBackend stores values in a NATS JetStream key/value bucket. It
// does not own the underlying connection; Close is a no-op.
type NetworkedBackend struct {
	kv *natsclient.KVStore
}

var _ Backend = (*NetworkedBackend)(nil)

// NewNetworkedBackend wraps kv.
func NewNetworkedBackend(kv *natsclient.KVStore) *NetworkedBackend {
	return &NetworkedBackend{kv: kv}
}

// Name implements Backend.
func (b *NetworkedBackend) Name() string { return "networked" }

// Get implements Backend.
func (b *NetworkedBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := b.kv.Get(ctx, key)
	if stderrors.Is(err, natsclient.ErrKVKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value, true, nil
}

// Put implements Backend.
func (b *NetworkedBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	return err
}

// SetDefault implements Backend.
func (b *NetworkedBackend) SetDefault(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	return b.kv.SetDefault(ctx, key, value)
}

// Delete implements Backend.
func (b *NetworkedBackend) Delete(ctx context.Context, key string) error {
	return b.kv.Delete(ctx, key)
}

// Pop implements Backend.
func (b *NetworkedBackend) Pop(ctx context.Context, key string) ([]byte, bool, error) {
	return b.kv.Pop(ctx, key)
}

// Keys implements Backend. JetStream lists the whole bucket, so the prefix
// is filtered client side.
func (b *NetworkedBackend) Keys(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for key, err := range b.kv.Keys(ctx) {
			if err != nil {
				yield("", err)
				return
			}
			if strings.HasPrefix(key, prefix) && !yield(key, nil) {
				return
			}
		}
	}
}

// Close implements Backend.
func (b *NetworkedBackend) Close() error { return nil }
