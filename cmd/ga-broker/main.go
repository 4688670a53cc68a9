// Package main runs the local publish/subscribe broker as a standalone
// process, with Prometheus metrics and a health endpoint.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/andreagemma/ga/config"
	"github.com/andreagemma/ga/metric"
	"github.com/andreagemma/ga/pubsub/broker"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "ga-broker"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Broker failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowHelp {
		return nil
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(os.Stdout, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, cliCfg, logger)
}

// loadConfig builds the local broker configuration from the optional file,
// the environment and the command line, in that order.
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg.Backend = config.BackendLocal
	if cliCfg.Host != "" {
		cfg.Local.Host = cliCfg.Host
	}
	if cliCfg.Port != 0 {
		cfg.Local.Port = cliCfg.Port
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	registry := metric.NewMetricsRegistry()

	server := broker.NewServer(broker.Config{
		Host:      cfg.Local.Host,
		Port:      cfg.Local.Port,
		Path:      cfg.Local.Path,
		QueueSize: cfg.Local.QueueSize,
	}, broker.WithLogger(logger), broker.WithMetrics(registry.CoreMetrics()))

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start broker: %w", err)
	}

	var metricsServer *metric.Server
	if cliCfg.MetricsPort > 0 {
		metricsServer = metric.NewServer(cliCfg.MetricsPort, "/metrics", registry, func(ctx context.Context) (bool, string) {
			if err := broker.Probe(ctx, server.URL(), cfg.ProbeTimeout); err != nil {
				return false, err.Error()
			}
			stats := server.Stats()
			return true, fmt.Sprintf("%d connections, %d subscriptions", stats.Connections, stats.Subscriptions)
		})
		if err := metricsServer.Start(); err != nil {
			_ = server.Close()
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("Metrics server listening", "address", metricsServer.Address())
	}

	logger.Info("Broker started", "url", server.URL(), "identity", broker.Identity)

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	return shutdown(server, metricsServer, cliCfg.ShutdownTimeout, logger)
}

// shutdown stops the broker within timeout. Connections still open at the
// deadline are abandoned.
func shutdown(server *broker.Server, metricsServer *metric.Server, timeout time.Duration, logger *slog.Logger) error {
	done := make(chan error, 1)
	go func() {
		var err error
		if metricsServer != nil {
			err = metricsServer.Stop()
		}
		if closeErr := server.Close(); closeErr != nil {
			err = closeErr
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		stats := server.Stats()
		logger.Info("Broker shutdown complete",
			"published", stats.Published,
			"delivered", stats.Delivered,
			"send_failures", stats.SendFailures)
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("graceful shutdown timed out after %v", timeout)
	}
}
