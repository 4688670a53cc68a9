package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/pkg/retry"
)

// KVEntry wraps a KV entry with its revision for CAS operations
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions configures KV operations behavior
type KVOptions struct {
	Timeout       time.Duration // Per-operation timeout, zero for none
	MaxRetries    int           // Conflict retries for SetDefault and Pop
	RetryDelay    time.Duration // Initial delay between conflict retries
	MaxRetryDelay time.Duration // Upper bound for the retry delay
}

// DefaultKVOptions returns the defaults used by the networked store
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout:       5 * time.Second,
		MaxRetries:    10,
		RetryDelay:    5 * time.Millisecond,
		MaxRetryDelay: 250 * time.Millisecond,
	}
}

// Well-known KV errors. Not-found wraps the shared sentinel so callers can
// test with errors.IsNotFound.
var (
	ErrKVKeyNotFound      = fmt.Errorf("kv: %w", errors.ErrKeyNotFound)
	ErrKVKeyExists        = stderrors.New("kv: key already exists")
	ErrKVRevisionMismatch = stderrors.New("kv: revision mismatch (concurrent update)")
)

// errKVRaced marks an attempt that lost to a concurrent writer and should run again.
var errKVRaced = stderrors.New("kv: lost race with concurrent writer")

// KVStore provides key/value operations on one JetStream bucket. Keys are
// escaped on the way in and unescaped when listed, so any non-empty string
// is a valid key.
type KVStore struct {
	bucket  jetstream.KeyValue
	options KVOptions
	logger  *slog.Logger
}

// NewKVStore creates a new KV store with the given bucket
func (c *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &KVStore{
		bucket:  bucket,
		options: options,
		logger:  c.logger.With("bucket", bucket.Bucket()),
	}
}

// Bucket returns the JetStream bucket name
func (kv *KVStore) Bucket() string {
	return kv.bucket.Bucket()
}

func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout > 0 {
		return context.WithTimeout(ctx, kv.options.Timeout)
	}
	return ctx, func() {}
}

func (kv *KVStore) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  kv.options.MaxRetries + 1,
		InitialDelay: kv.options.RetryDelay,
		MaxDelay:     kv.options.MaxRetryDelay,
		Multiplier:   2.0,
		AddJitter:    true,
		Retryable: func(err error) bool {
			return stderrors.Is(err, errKVRaced)
		},
	}
}

// Get retrieves a value with its revision
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	escaped, err := EscapeKey(key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	entry, err := kv.bucket.Get(ctx, escaped)
	if err != nil {
		if IsKVNotFoundError(err) {
			return nil, ErrKVKeyNotFound
		}
		return nil, errors.WrapTransient(err, "KVStore", "Get", fmt.Sprintf("get %s", key))
	}

	return &KVEntry{Key: key, Value: entry.Value(), Revision: entry.Revision()}, nil
}

// Put creates or updates a key without revision check (last writer wins)
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	escaped, err := EscapeKey(key)
	if err != nil {
		return 0, err
	}

	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Put(ctx, escaped, value)
	if err != nil {
		return 0, errors.WrapTransient(err, "KVStore", "Put", fmt.Sprintf("put %s", key))
	}

	kv.logger.Debug("kv put", "key", key, "revision", rev)
	return rev, nil
}

// Create stores value only if key is absent or deleted
func (kv *KVStore) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	escaped, err := EscapeKey(key)
	if err != nil {
		return 0, err
	}

	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	rev, err := kv.bucket.Create(ctx, escaped, value)
	if err != nil {
		if IsKVConflictError(err) {
			return 0, ErrKVKeyExists
		}
		return 0, errors.WrapTransient(err, "KVStore", "Create", fmt.Sprintf("create %s", key))
	}

	kv.logger.Debug("kv create", "key", key, "revision", rev)
	return rev, nil
}

// SetDefault stores value if key is absent and returns the value now held
// under key, reporting whether it already existed. The create is atomic on
// the server; a concurrent delete between a failed create and the follow-up
// read restarts the attempt.
func (kv *KVStore) SetDefault(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	var current []byte
	var existed bool

	err := retry.Do(ctx, kv.retryConfig(), func() error {
		_, err := kv.Create(ctx, key, value)
		if err == nil {
			current, existed = value, false
			return nil
		}
		if !stderrors.Is(err, ErrKVKeyExists) {
			return err
		}

		entry, err := kv.Get(ctx, key)
		switch {
		case err == nil:
			current, existed = entry.Value, true
			return nil
		case stderrors.Is(err, ErrKVKeyNotFound):
			kv.logger.Debug("kv setdefault raced with delete, retrying", "key", key)
			return errKVRaced
		default:
			return err
		}
	})
	if err != nil {
		return nil, false, err
	}
	return current, existed, nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	escaped, err := EscapeKey(key)
	if err != nil {
		return err
	}

	ctx, cancel := kv.applyTimeout(ctx)
	defer cancel()

	if err := kv.bucket.Delete(ctx, escaped); err != nil && !IsKVNotFoundError(err) {
		return errors.WrapTransient(err, "KVStore", "Delete", fmt.Sprintf("delete %s", key))
	}

	kv.logger.Debug("kv delete", "key", key)
	return nil
}

// Pop deletes key and returns the value it held. The delete is guarded by
// the revision that was read, so a concurrent overwrite is never lost.
func (kv *KVStore) Pop(ctx context.Context, key string) ([]byte, bool, error) {
	escaped, err := EscapeKey(key)
	if err != nil {
		return nil, false, err
	}

	var value []byte
	var found bool

	err = retry.Do(ctx, kv.retryConfig(), func() error {
		entry, err := kv.Get(ctx, key)
		if stderrors.Is(err, ErrKVKeyNotFound) {
			value, found = nil, false
			return nil
		}
		if err != nil {
			return err
		}

		opCtx, cancel := kv.applyTimeout(ctx)
		defer cancel()

		err = kv.bucket.Delete(opCtx, escaped, jetstream.LastRevision(entry.Revision))
		switch {
		case err == nil:
			value, found = entry.Value, true
			return nil
		case IsKVConflictError(err):
			kv.logger.Debug("kv pop revision changed, retrying", "key", key)
			return errKVRaced
		default:
			return errors.WrapTransient(err, "KVStore", "Pop", fmt.Sprintf("delete %s", key))
		}
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// Keys yields every live key in the bucket, unescaped. Keys that were not
// written through EscapeKey are skipped.
func (kv *KVStore) Keys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		lister, err := kv.bucket.ListKeys(ctx)
		if err != nil {
			if !stderrors.Is(err, jetstream.ErrNoKeysFound) {
				yield("", errors.WrapTransient(err, "KVStore", "Keys", "list keys"))
			}
			return
		}
		defer func() { _ = lister.Stop() }()

		for escaped := range lister.Keys() {
			key, err := UnescapeKey(escaped)
			if err != nil {
				kv.logger.Debug("skipping foreign key", "key", escaped)
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield("", errors.WrapTransient(err, "KVStore", "Keys", "list keys"))
		}
	}
}

// IsKVNotFoundError checks if error indicates key not found
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrKVKeyNotFound) || stderrors.Is(err, jetstream.ErrKeyNotFound) ||
		stderrors.Is(err, jetstream.ErrKeyDeleted) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "key not found") ||
		strings.Contains(errMsg, "10037")
}

// IsKVConflictError checks if error indicates a conflict (key exists or wrong revision)
func IsKVConflictError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrKVRevisionMismatch) || stderrors.Is(err, ErrKVKeyExists) ||
		stderrors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "wrong last sequence") ||
		strings.Contains(errMsg, "10071") ||
		strings.Contains(errMsg, "key exists") ||
		strings.Contains(errMsg, "10058")
}
