package ipc

import (
	"context"
	stderrors "errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/andreagemma/ga/codec"
	"github.com/andreagemma/ga/config"
	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/health"
	"github.com/andreagemma/ga/metric"
	"github.com/andreagemma/ga/natsclient"
	"github.com/andreagemma/ga/pubsub"
	"github.com/andreagemma/ga/pubsub/broker"
	"github.com/andreagemma/ga/store"
)

// healthKey is read, never written, by Health to time a store round trip.
const healthKey = "__ga_health__"

// IPC combines a bucket-scoped key/value store and a pub/sub of the same
// backend kind.
type IPC struct {
	cfg     config.Config
	store   *store.Store
	pubsub  pubsub.PubSub
	nats    *natsclient.Client
	logger  *slog.Logger
	metrics *metric.Metrics

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	manager *store.Manager
	codec   codec.Serializer
}

// Option configures an IPC.
type Option func(*options)

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records metrics for every component in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLocalManager makes a local IPC share m with other instances instead
// of starting its own. The caller keeps ownership and closes m after every
// IPC using it.
func WithLocalManager(m *store.Manager) Option {
	return func(o *options) {
		o.manager = m
	}
}

// WithCodec replaces the codec built from the configured compression.
func WithCodec(c codec.Serializer) Option {
	return func(o *options) {
		o.codec = c
	}
}

// New validates cfg and builds the store and pub/sub of its backend. A
// networked IPC connects to NATS and creates its KV bucket here. A local IPC
// starts a Manager unless one is given; its broker is started by Init.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*IPC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.codec == nil {
		method, err := cfg.Method()
		if err != nil {
			return nil, err
		}
		c, err := codec.New(method, cfg.CompressionLevel, codec.WithLogger(o.logger), codec.WithMetrics(o.metrics))
		if err != nil {
			return nil, err
		}
		o.codec = c
	}

	i := &IPC{
		cfg:     cfg,
		logger:  o.logger.With("component", "ipc", "backend", cfg.Backend, "bucket", cfg.Bucket),
		metrics: o.metrics,
	}

	psOpts := []pubsub.Option{
		pubsub.WithBucket(cfg.Bucket),
		pubsub.WithCodec(o.codec),
		pubsub.WithLogger(o.logger),
		pubsub.WithMetrics(o.metrics),
		pubsub.WithProbeTimeout(cfg.ProbeTimeout),
	}

	var backend store.Backend
	switch cfg.Backend {
	case config.BackendNetworked:
		client, kv, err := connectNATS(ctx, cfg, o)
		if err != nil {
			return nil, err
		}
		i.nats = client
		backend = store.NewNetworkedBackend(kv)

		ps, err := pubsub.NewNetworked(client, psOpts...)
		if err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		i.pubsub = ps

	case config.BackendLocal:
		ps, err := pubsub.NewLocal(broker.Config{
			Host:      cfg.Local.Host,
			Port:      cfg.Local.Port,
			Path:      cfg.Local.Path,
			QueueSize: cfg.Local.QueueSize,
		}, psOpts...)
		if err != nil {
			return nil, err
		}
		i.pubsub = ps

		if o.manager != nil {
			backend = store.NewLocalBackend(o.manager, false)
		} else {
			backend = store.NewLocalBackend(store.NewManager(o.logger), true)
		}

	default:
		// Validate already rejected it.
		return nil, errors.WrapInvalid(errors.ErrUnsupportedBackend, "IPC", "New", "select backend")
	}

	st, err := store.New(backend,
		store.WithBucket(cfg.Bucket),
		store.WithCodec(o.codec),
		store.WithLogger(o.logger),
		store.WithMetrics(o.metrics),
	)
	if err != nil {
		_ = backend.Close()
		_ = i.Close(ctx)
		return nil, err
	}
	i.store = st

	i.logger.Debug("ipc ready")
	return i, nil
}

func connectNATS(ctx context.Context, cfg config.Config, o options) (*natsclient.Client, *natsclient.KVStore, error) {
	clientOpts := []natsclient.ClientOption{
		natsclient.WithLogger(o.logger),
		natsclient.WithMetrics(o.metrics),
		natsclient.WithName("ga-" + uuid.NewString()),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
	}
	if cfg.NATS.Timeout > 0 {
		clientOpts = append(clientOpts, natsclient.WithTimeout(cfg.NATS.Timeout))
	}
	if cfg.NATS.Username != "" {
		clientOpts = append(clientOpts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		clientOpts = append(clientOpts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(cfg.NATSURL(), clientOpts...)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.KVBucket(),
		Description: "ga key/value store",
	})
	if err != nil {
		_ = client.Close(ctx)
		return nil, nil, err
	}

	kv := client.NewKVStore(bucket, func(opts *natsclient.KVOptions) {
		if cfg.NATS.Timeout > 0 {
			opts.Timeout = cfg.NATS.Timeout
		}
	})
	return client, kv, nil
}

// Config returns the configuration the IPC was built with.
func (i *IPC) Config() config.Config { return i.cfg }

// Store returns the key/value store.
func (i *IPC) Store() store.KeyValueStore { return i.store }

// PubSub returns the pub/sub.
func (i *IPC) PubSub() pubsub.PubSub { return i.pubsub }

// Subscribe adds cb to channel.
func (i *IPC) Subscribe(ctx context.Context, channel string, cb pubsub.Callback) error {
	return i.pubsub.Subscribe(ctx, channel, cb)
}

// Publish sends v to channel.
func (i *IPC) Publish(ctx context.Context, channel string, v any) error {
	return i.pubsub.Publish(ctx, channel, v)
}

// Listen dispatches messages until ctx is cancelled or the IPC is closed.
func (i *IPC) Listen(ctx context.Context) error {
	return i.pubsub.Listen(ctx)
}

// Running probes the pub/sub backend.
func (i *IPC) Running(ctx context.Context) bool {
	return i.pubsub.Running(ctx)
}

// Init checks the backend, starting a local broker if needed.
func (i *IPC) Init(ctx context.Context) error {
	return i.pubsub.Init(ctx)
}

// Set stores value under key.
func (i *IPC) Set(ctx context.Context, key string, value any) error {
	return i.store.Set(ctx, key, value)
}

// Get decodes key into out and reports whether it existed.
func (i *IPC) Get(ctx context.Context, key string, out any) (bool, error) {
	return i.store.Get(ctx, key, out)
}

// Lookup decodes key into out or fails with errors.ErrKeyNotFound.
func (i *IPC) Lookup(ctx context.Context, key string, out any) error {
	return i.store.Lookup(ctx, key, out)
}

// SetDefault stores value unless key exists and decodes the held value into out.
func (i *IPC) SetDefault(ctx context.Context, key string, value, out any) (bool, error) {
	return i.store.SetDefault(ctx, key, value, out)
}

// Delete removes key.
func (i *IPC) Delete(ctx context.Context, key string) error {
	return i.store.Delete(ctx, key)
}

// Pop removes key and decodes its value into out.
func (i *IPC) Pop(ctx context.Context, key string, out any) (bool, error) {
	return i.store.Pop(ctx, key, out)
}

// Has reports whether key exists.
func (i *IPC) Has(ctx context.Context, key string) (bool, error) {
	return i.store.Has(ctx, key)
}

// Clear deletes every key of the bucket.
func (i *IPC) Clear(ctx context.Context) error {
	return i.store.Clear(ctx)
}

// Keys yields the bucket's keys.
func (i *IPC) Keys(ctx context.Context) iter.Seq2[string, error] {
	return i.store.Keys(ctx)
}

// Values yields the bucket's values.
func (i *IPC) Values(ctx context.Context) iter.Seq2[store.Value, error] {
	return i.store.Values(ctx)
}

// Items yields the bucket's key/value pairs.
func (i *IPC) Items(ctx context.Context) iter.Seq2[store.Item, error] {
	return i.store.Items(ctx)
}

// ScanIter yields the bucket's keys matching pattern.
func (i *IPC) ScanIter(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return i.store.ScanIter(ctx, pattern)
}

// SetMany stores every entry of values. It stops at the first failure.
func (i *IPC) SetMany(ctx context.Context, values map[string]any) error {
	for key, v := range values {
		if err := i.store.Set(ctx, key, v); err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
	}
	return nil
}

// GetMany returns the encoded values of keys. Missing keys are absent from
// the result.
func (i *IPC) GetMany(ctx context.Context, keys []string) (map[string]store.Value, error) {
	out := make(map[string]store.Value, len(keys))
	for _, key := range keys {
		v, found, err := i.store.GetValue(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", key, err)
		}
		if found {
			out[key] = v
		}
	}
	return out, nil
}

// DeleteMany removes every key in keys.
func (i *IPC) DeleteMany(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := i.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}
	return nil
}

// Health probes the store and the pub/sub.
func (i *IPC) Health(ctx context.Context) health.Status {
	start := time.Now()
	_, err := i.store.Has(ctx, healthKey)
	storeStatus := health.FromProbe("store", err, time.Since(start))

	start = time.Now()
	var psErr error
	if !i.pubsub.Running(ctx) {
		psErr = fmt.Errorf("%w: %s backend did not answer", errors.ErrNotConnected, i.cfg.Backend)
	}
	psStatus := health.FromProbe("pubsub", psErr, time.Since(start))

	i.metrics.RecordHealthStatus("store", storeStatus.IsHealthy())
	i.metrics.RecordHealthStatus("pubsub", psStatus.IsHealthy())

	return health.Aggregate("ipc", []health.Status{storeStatus, psStatus})
}

// Close stops the pub/sub and releases every resource the IPC owns: the
// NATS connection, its Manager and a broker started by Init. Safe to call
// more than once.
func (i *IPC) Close(ctx context.Context) error {
	i.closeOnce.Do(func() {
		var errs []error
		if i.pubsub != nil {
			errs = append(errs, i.pubsub.Stop(ctx))
		}
		if i.store != nil {
			errs = append(errs, i.store.Close())
		}
		if i.nats != nil {
			errs = append(errs, i.nats.Close(ctx))
		}
		i.closeErr = stderrors.Join(errs...)
		i.logger.Debug("ipc closed")
	})
	return i.closeErr
}
