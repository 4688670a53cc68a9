package store

import (
	"context"

	"github.com/andreagemma/ga/codec"
)

// Value is an encoded value read from a store. Decode it with the store's codec.
type Value struct {
	data  []byte
	codec codec.Serializer
}

// Decode decodes the value into v.
func (v Value) Decode(out any) error {
	return v.codec.Decode(v.data, out)
}

// Bytes returns the encoded form.
func (v Value) Bytes() []byte {
	return v.data
}

// Item is a key with its value.
type Item struct {
	Key   string
	Value Value
}

// GetOr returns the value under key decoded as T, or def when key is missing.
func GetOr[T any](ctx context.Context, s KeyValueStore, key string, def T) (T, error) {
	var out T
	found, err := s.Get(ctx, key, &out)
	if err != nil || !found {
		return def, err
	}
	return out, nil
}

// PopOr removes key and returns its value decoded as T, or def when key is missing.
func PopOr[T any](ctx context.Context, s KeyValueStore, key string, def T) (T, error) {
	var out T
	found, err := s.Pop(ctx, key, &out)
	if err != nil || !found {
		return def, err
	}
	return out, nil
}
