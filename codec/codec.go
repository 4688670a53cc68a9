package codec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/andreagemma/ga/errors"
	"github.com/andreagemma/ga/metric"
)

// DefaultLevel is the compression level used when none is configured.
const DefaultLevel = 5

// Serializer converts values to bytes and back. *Codec implements it; stores
// and pubsubs accept any Serializer so callers can plug their own format.
type Serializer interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// Codec serializes values as JSON and compresses the result.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	method    Method
	effective Method
	level     int
	comp      Compressor
}

// Option configures a Codec.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	lookup  func(Method) (Compressor, bool)
}

// WithLogger sets the logger that receives the fallback warning.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics counts fallbacks in m.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// withLookup replaces the compiled-in registry, letting tests simulate a
// missing library.
func withLookup(fn func(Method) (Compressor, bool)) Option {
	return func(o *options) {
		o.lookup = fn
	}
}

// New builds a Codec for method at level. Level is clamped to 0..9.
// An unknown method fails; a known method without its library falls back to
// None and logs a warning.
func New(method Method, level int, opts ...Option) (*Codec, error) {
	o := options{logger: slog.Default(), lookup: lookup}
	for _, opt := range opts {
		opt(&o)
	}

	if method == "" {
		method = None
	}
	if !method.Valid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnsupportedCompression, method),
			"Codec", "New", "validate method")
	}

	c := &Codec{method: method, effective: None, level: clampLevel(level)}
	if method == None {
		return c, nil
	}

	comp, ok := o.lookup(method)
	if !ok {
		o.logger.Warn("compression library not available, storing uncompressed",
			"method", method)
		o.metrics.RecordCodecFallback(string(method))
		return c, nil
	}

	c.effective = method
	c.comp = comp
	return c, nil
}

// Method returns the method the Codec was asked for.
func (c *Codec) Method() Method { return c.method }

// EffectiveMethod returns the method actually applied, None after a fallback.
func (c *Codec) EffectiveMethod() Method { return c.effective }

// Level returns the clamped compression level.
func (c *Codec) Level() int { return c.level }

// Compress applies only the compression stage.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	if c.comp == nil {
		return data, nil
	}
	return c.comp.Compress(data, c.level)
}

// Decompress reverses Compress. Errors from the compression library are
// returned as-is.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	if c.comp == nil {
		return data, nil
	}
	return c.comp.Decompress(data)
}

// Encode serializes v and compresses it.
func (c *Codec) Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "Encode", "serialize value")
	}
	return c.Compress(raw)
}

// Decode decompresses data and deserializes it into v. Nil or empty data
// leaves v untouched.
func (c *Codec) Decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	raw, err := c.Decompress(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.WrapInvalid(err, "Codec", "Decode", "deserialize value")
	}
	return nil
}

// DecodeAny decodes data into generic JSON values (map[string]any, []any,
// float64, string, bool, nil). Nil or empty input is returned unchanged.
func (c *Codec) DecodeAny(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	if len(data) == 0 {
		return data, nil
	}
	var out any
	if err := c.Decode(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type cacheKey struct {
	method Method
	level  int
}

var shared sync.Map // cacheKey -> *Codec

func cached(method Method, level int) (*Codec, error) {
	key := cacheKey{method: method, level: clampLevel(level)}
	if c, ok := shared.Load(key); ok {
		return c.(*Codec), nil
	}
	c, err := New(method, level)
	if err != nil {
		return nil, err
	}
	actual, _ := shared.LoadOrStore(key, c)
	return actual.(*Codec), nil
}

// Encode serializes v with a shared Codec for method and level.
func Encode(v any, method Method, level int) ([]byte, error) {
	c, err := cached(method, level)
	if err != nil {
		return nil, err
	}
	return c.Encode(v)
}

// Decode deserializes data produced by Encode with the same method.
func Decode(data []byte, method Method, v any) error {
	c, err := cached(method, DefaultLevel)
	if err != nil {
		return err
	}
	return c.Decode(data, v)
}
