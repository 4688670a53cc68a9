package store

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/andreagemma/ga/codec"
	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/metric"
)

// KeyValueStore is a bucket-scoped dictionary of encoded values.
//
// Lookups decode into out, which must be a pointer to a zero value: the
// codec fills maps and structs in place, so anything already held by out
// survives fields the stored value lacks. A lenient lookup that misses
// leaves out untouched; GetOr and PopOr handle defaults.
type KeyValueStore interface {
	Set(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string, out any) (bool, error)
	Lookup(ctx context.Context, key string, out any) error
	SetDefault(ctx context.Context, key string, value any, out any) (bool, error)
	Delete(ctx context.Context, key string) error
	Pop(ctx context.Context, key string, out any) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	Keys(ctx context.Context) iter.Seq2[string, error]
	Values(ctx context.Context) iter.Seq2[Value, error]
	Items(ctx context.Context) iter.Seq2[Item, error]
	ScanIter(ctx context.Context, pattern string) iter.Seq2[string, error]
	Close() error
}

// Store implements KeyValueStore over any Backend.
type Store struct {
	backend Backend
	keys    keyspace
	codec   codec.Serializer
	logger  *slog.Logger
	metrics *metric.Metrics
}

var _ KeyValueStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithBucket scopes every key under "{bucket}:". The name must not contain ':'.
func WithBucket(bucket string) Option {
	return func(s *Store) {
		s.keys.bucket = bucket
	}
}

// WithCodec replaces the default uncompressed JSON codec.
func WithCodec(c codec.Serializer) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operation counts and latency in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a Store over backend. The Store takes ownership of backend and
// closes it on Close.
func New(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil backend"), "Store", "New", "validate backend")
	}

	s := &Store{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if err := ValidateBucket(s.keys.bucket); err != nil {
		return nil, err
	}

	if s.codec == nil {
		c, err := codec.New(codec.None, codec.DefaultLevel)
		if err != nil {
			return nil, err
		}
		s.codec = c
	}

	s.logger = s.logger.With("component", "store", "backend", backend.Name(), "bucket", s.keys.bucket)
	return s, nil
}

// Bucket returns the configured bucket, empty if none.
func (s *Store) Bucket() string {
	return s.keys.bucket
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.metrics.RecordKVOperation(s.backend.Name(), op, err, time.Since(start))
}

// Set encodes value and stores it under key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key string, value any) (err error) {
	defer func(start time.Time) { s.observe("set", start, err) }(time.Now())

	full, err := s.keys.full(key)
	if err != nil {
		return err
	}
	data, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	return s.backend.Put(ctx, full, data)
}

// Get decodes the value under key into out and reports whether it existed.
// A missing key is not an error and leaves out untouched.
func (s *Store) Get(ctx context.Context, key string, out any) (found bool, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())

	full, err := s.keys.full(key)
	if err != nil {
		return false, err
	}
	data, found, err := s.backend.Get(ctx, full)
	if err != nil || !found {
		return false, err
	}
	return true, s.codec.Decode(data, out)
}

// GetValue returns the still-encoded value under key.
func (s *Store) GetValue(ctx context.Context, key string) (v Value, found bool, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())

	full, err := s.keys.full(key)
	if err != nil {
		return Value{}, false, err
	}
	data, found, err := s.backend.Get(ctx, full)
	if err != nil || !found {
		return Value{}, false, err
	}
	return Value{data: data, codec: s.codec}, true, nil
}

// Lookup is Get that fails with errors.ErrKeyNotFound when key is missing.
func (s *Store) Lookup(ctx context.Context, key string, out any) error {
	found, err := s.Get(ctx, key, out)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %q", errors.ErrKeyNotFound, key)
	}
	return nil
}

// SetDefault stores value under key unless key exists. It decodes the value
// held afterwards (the existing one, or value) into out when out is non-nil,
// and reports whether key already existed.
func (s *Store) SetDefault(ctx context.Context, key string, value any, out any) (existed bool, err error) {
	defer func(start time.Time) { s.observe("setdefault", start, err) }(time.Now())

	full, err := s.keys.full(key)
	if err != nil {
		return false, err
	}
	data, err := s.codec.Encode(value)
	if err != nil {
		return false, err
	}
	current, existed, err := s.backend.SetDefault(ctx, full, data)
	if err != nil {
		return false, err
	}
	if out != nil {
		if err := s.codec.Decode(current, out); err != nil {
			return existed, err
		}
	}
	return existed, nil
}

// Delete removes key if present.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())

	full, err := s.keys.full(key)
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, full)
}

// Pop removes key and decodes its value into out. A missing key reports
// false and leaves out untouched.
func (s *Store) Pop(ctx context.Context, key string, out any) (found bool, err error) {
	defer func(start time.Time) { s.observe("pop", start, err) }(time.Now())

	full, err := s.keys.full(key)
	if err != nil {
		return false, err
	}
	data, found, err := s.backend.Pop(ctx, full)
	if err != nil || !found {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	return true, s.codec.Decode(data, out)
}

// Has reports whether key exists.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	full, err := s.keys.full(key)
	if err != nil {
		return false, err
	}
	_, found, err := s.backend.Get(ctx, full)
	return found, err
}

// Clear deletes every key in the bucket. Without a bucket it refuses and
// returns errors.ErrNoBucket, so a shared unscoped space is never wiped.
func (s *Store) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("clear", start, err) }(time.Now())

	if s.keys.bucket == "" {
		return errors.WrapInvalid(errors.ErrNoBucket, "Store", "Clear", "check bucket")
	}

	var keys []string
	for full, err := range s.backend.Keys(ctx, s.keys.prefix()) {
		if err != nil {
			return err
		}
		keys = append(keys, full)
	}
	for _, full := range keys {
		if err := s.backend.Delete(ctx, full); err != nil {
			return err
		}
	}

	s.logger.Debug("cleared bucket", "keys", len(keys))
	return nil
}

// Keys yields the bucket's keys without the bucket prefix. Each iteration is
// a fresh scan; order is backend-defined.
func (s *Store) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for full, err := range s.backend.Keys(ctx, s.keys.prefix()) {
			if err != nil {
				yield("", err)
				return
			}
			key, ok := s.keys.strip(full)
			if !ok {
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

// ScanIter yields the bucket's keys matching an fnmatch-style pattern. The
// pattern applies to the key without the bucket prefix. A bad pattern is
// yielded as the first error.
func (s *Store) ScanIter(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		re, err := compileGlob(pattern)
		if err != nil {
			yield("", err)
			return
		}
		for key, err := range s.Keys(ctx) {
			if err != nil {
				yield("", err)
				return
			}
			if re.MatchString(key) && !yield(key, nil) {
				return
			}
		}
	}
}

// Values yields the encoded value of every key in the bucket. Keys deleted
// between listing and reading are skipped.
func (s *Store) Values(ctx context.Context) iter.Seq2[Value, error] {
	return func(yield func(Value, error) bool) {
		for item, err := range s.Items(ctx) {
			if !yield(item.Value, err) || err != nil {
				return
			}
		}
	}
}

// Items yields key/value pairs for the bucket. Keys deleted between listing
// and reading are skipped.
func (s *Store) Items(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for key, err := range s.Keys(ctx) {
			if err != nil {
				yield(Item{}, err)
				return
			}
			data, found, err := s.backend.Get(ctx, s.keys.prefix()+key)
			if err != nil {
				yield(Item{}, err)
				return
			}
			if !found {
				continue
			}
			if !yield(Item{Key: key, Value: Value{data: data, codec: s.codec}}, nil) {
				return
			}
		}
	}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
