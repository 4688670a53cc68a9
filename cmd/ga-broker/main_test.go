package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreagemma/ga/config"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parseFlags([]string{"--port=7000", "--log-level=debug", "--metrics-port=0"})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0, cfg.MetricsPort)
	require.NoError(t, validateFlags(cfg))
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name string
		cfg  CLIConfig
	}{
		{"bad level", CLIConfig{LogLevel: "trace", LogFormat: "json"}},
		{"bad format", CLIConfig{LogLevel: "info", LogFormat: "xml"}},
		{"bad port", CLIConfig{LogLevel: "info", LogFormat: "json", Port: 70000}},
		{"bad metrics port", CLIConfig{LogLevel: "info", LogFormat: "json", MetricsPort: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validateFlags(&tt.cfg))
		})
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("local:\n  port: 7001\n  host: 0.0.0.0\n"), 0600))

	cfg, err := loadConfig(&CLIConfig{ConfigPath: path, Port: 7002})
	require.NoError(t, err)

	assert.Equal(t, config.BackendLocal, cfg.Backend)
	assert.Equal(t, "0.0.0.0", cfg.Local.Host)
	assert.Equal(t, 7002, cfg.Local.Port)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, appName, entry["service"])
}

func TestServe_StartsAndStops(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendLocal
	cfg.Local.Port = 0

	// Port 0 is not valid configuration, so serve is driven directly.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, &cfg, &CLIConfig{ShutdownTimeout: 5 * time.Second}, setupLogger(&bytes.Buffer{}, "error", "text"))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}
