package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	Host            string
	Port            int
	LogLevel        string
	LogFormat       string
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	fs.StringVar(&cfg.ConfigPath, "config", getEnv("GA_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: GA_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c", getEnv("GA_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: GA_CONFIG)")

	fs.StringVar(&cfg.Host, "host", "", "Listen host, overrides local.host")
	fs.IntVar(&cfg.Port, "port", 0, "Listen port, overrides local.port")

	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("GA_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: GA_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("GA_LOG_FORMAT", "text"),
		"Log format: json, text (env: GA_LOG_FORMAT)")

	fs.IntVar(&cfg.MetricsPort, "metrics-port", getEnvInt("GA_METRICS_PORT", 9090),
		"Metrics and health port, 0 to disable (env: GA_METRICS_PORT)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("GA_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: GA_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.ShowHelp {
		fs.Usage()
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - local publish/subscribe broker

Runs the WebSocket broker used by the local backend in the foreground.

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Listen on the default local port
  %s

  # Listen on another port with debug logging
  %s --port=7000 --log-level=debug

  # Use a configuration file and environment overrides
  export GA_LOCAL_PORT=7001
  %s --config=ipc.yaml

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
