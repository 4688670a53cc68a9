package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreagemma/ga/codec"
	"github.com/andreagemma/ga/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendNetworked, cfg.Backend)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL())
	assert.Equal(t, "IPC_DB0", cfg.KVBucket())

	m, err := cfg.Method()
	require.NoError(t, err)
	assert.Equal(t, codec.None, m)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"unknown backend", func(c *Config) { c.Backend = "redis" }, errors.ErrUnsupportedBackend},
		{"empty backend", func(c *Config) { c.Backend = "" }, errors.ErrUnsupportedBackend},
		{"unknown compression", func(c *Config) { c.Compression = "brotli" }, errors.ErrUnsupportedCompression},
		{"level too high", func(c *Config) { c.CompressionLevel = 10 }, errors.ErrInvalidConfig},
		{"negative level", func(c *Config) { c.CompressionLevel = -1 }, errors.ErrInvalidConfig},
		{"bad port", func(c *Config) { c.Port = 70000 }, errors.ErrInvalidConfig},
		{"no host", func(c *Config) { c.Host = "" }, errors.ErrInvalidConfig},
		{"negative db", func(c *Config) { c.DB = -1 }, errors.ErrInvalidConfig},
		{"bad local port", func(c *Config) { c.Backend = BackendLocal; c.Local.Port = 0 }, errors.ErrInvalidConfig},
		{"negative probe timeout", func(c *Config) { c.ProbeTimeout = -time.Second }, errors.ErrInvalidConfig},
		{"bucket with separator", func(c *Config) { c.Bucket = "a:x" }, errors.ErrInvalidBucket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConfig_LocalIgnoresNetworkedFields(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendLocal
	cfg.Host = ""
	cfg.Port = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.NATS.Password = "hunter2"
	cfg.NATS.Token = "secret-token"

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "secret-token")
	assert.Equal(t, "hunter2", cfg.NATS.Password)
}

func TestConfig_StringLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.json")

	cfg := Default()
	cfg.Bucket = "jobs"
	cfg.Compression = "zstd"
	require.NoError(t, os.WriteFile(path, []byte(cfg.String()), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}
