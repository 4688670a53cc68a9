package pubsub

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/andreagemma/ga/codec"
	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/metric"
)

type options struct {
	bucket       string
	codec        codec.Serializer
	logger       *slog.Logger
	metrics      *metric.Metrics
	probeTimeout time.Duration
	bufferSize   int
}

func defaultOptions() options {
	return options{
		logger:       slog.Default(),
		probeTimeout: time.Second,
		bufferSize:   1024,
	}
}

func (o *options) apply(opts []Option) error {
	for _, opt := range opts {
		opt(o)
	}
	if strings.Contains(o.bucket, ":") {
		return errors.WrapInvalid(fmt.Errorf("%w: %q contains ':'", errors.ErrInvalidBucket, o.bucket),
			"PubSub", "New", "check bucket")
	}
	if o.codec == nil {
		c, err := codec.New(codec.None, codec.DefaultLevel)
		if err != nil {
			return err
		}
		o.codec = c
	}
	return nil
}

// Option configures a PubSub.
type Option func(*options)

// WithBucket prefixes every channel with "{bucket}:". The name must not contain ':'.
func WithBucket(bucket string) Option {
	return func(o *options) {
		o.bucket = bucket
	}
}

// WithCodec replaces the default uncompressed JSON codec.
func WithCodec(c codec.Serializer) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records message and callback metrics in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithProbeTimeout bounds Running and Init.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.probeTimeout = d
		}
	}
}

// WithBufferSize sets how many received messages may wait for Listen. The
// local backend drops the oldest waiting message beyond that.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}
