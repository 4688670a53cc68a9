package config

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/andreagemma/ga/codec"
	"github.com/andreagemma/ga/errors"
)

// Backend kinds
const (
	BackendNetworked = "networked" // NATS JetStream KV and core pub/sub
	BackendLocal     = "local"     // In-process manager and WebSocket broker
)

// Backends lists the accepted backend kinds.
var Backends = []string{BackendNetworked, BackendLocal}

// Config is the complete configuration of an IPC instance.
type Config struct {
	Backend          string        `json:"backend" yaml:"backend"`
	Bucket           string        `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Host             string        `json:"host" yaml:"host"`
	Port             int           `json:"port" yaml:"port"`
	DB               int           `json:"db" yaml:"db"`
	Compression      string        `json:"compression,omitempty" yaml:"compression,omitempty"`
	CompressionLevel int           `json:"compression_level" yaml:"compression_level"`
	ProbeTimeout     time.Duration `json:"probe_timeout" yaml:"probe_timeout"`
	Local            LocalConfig   `json:"local" yaml:"local"`
	NATS             NATSConfig    `json:"nats" yaml:"nats"`
}

// LocalConfig configures the local broker.
type LocalConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	Path      string `json:"path" yaml:"path"`
	QueueSize int    `json:"queue_size" yaml:"queue_size"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	MaxReconnects int           `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	Username      string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string        `json:"password,omitempty" yaml:"password,omitempty"`
	Token         string        `json:"token,omitempty" yaml:"token,omitempty"`
}

// Default returns the default configuration: networked backend on
// localhost, database 0, no compression.
func Default() Config {
	return Config{
		Backend:          BackendNetworked,
		Host:             "localhost",
		Port:             4222,
		DB:               0,
		CompressionLevel: codec.DefaultLevel,
		ProbeTimeout:     time.Second,
		Local: LocalConfig{
			Host:      "127.0.0.1",
			Port:      6380,
			Path:      "/",
			QueueSize: 256,
		},
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
	}
}

// Validate checks the configuration. Every failure wraps
// errors.ErrInvalidConfig, or errors.ErrUnsupportedBackend and
// errors.ErrUnsupportedCompression for unknown kinds.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNetworked, BackendLocal:
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: %q (expected one of %v)", errors.ErrUnsupportedBackend, c.Backend, Backends),
			"Config", "Validate", "check backend")
	}

	if strings.Contains(c.Bucket, ":") {
		return errors.WrapInvalid(fmt.Errorf("%w: %q contains ':'", errors.ErrInvalidBucket, c.Bucket),
			"Config", "Validate", "check bucket")
	}

	if _, err := codec.ParseMethod(c.Compression); err != nil {
		return err
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return invalid("compression_level %d outside 0..9", c.CompressionLevel)
	}

	if c.Backend == BackendNetworked {
		if c.Host == "" {
			return invalid("host is required")
		}
		if err := validatePort("port", c.Port); err != nil {
			return err
		}
		if c.DB < 0 {
			return invalid("db %d must not be negative", c.DB)
		}
		if c.NATS.Timeout < 0 || c.NATS.ReconnectWait < 0 {
			return invalid("nats durations must not be negative")
		}
	}

	if c.Backend == BackendLocal {
		if err := validatePort("local.port", c.Local.Port); err != nil {
			return err
		}
		if c.Local.QueueSize < 0 {
			return invalid("local.queue_size %d must not be negative", c.Local.QueueSize)
		}
	}

	if c.ProbeTimeout < 0 {
		return invalid("probe_timeout must not be negative")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return invalid("%s %d outside 1..65535", name, port)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "validate")
}

// Method returns the parsed compression method.
func (c *Config) Method() (codec.Method, error) {
	return codec.ParseMethod(c.Compression)
}

// NATSURL returns the NATS server URL for Host and Port.
func (c *Config) NATSURL() string {
	return "nats://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// KVBucket returns the JetStream bucket that holds database DB.
func (c *Config) KVBucket() string {
	return fmt.Sprintf("IPC_DB%d", c.DB)
}

// String returns a JSON representation of the config with secrets masked.
func (c Config) String() string {
	if c.NATS.Password != "" {
		c.NATS.Password = "***"
	}
	if c.NATS.Token != "" {
		c.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
