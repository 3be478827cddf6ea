package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/smartmeter"
	"github.com/jpalmerr/smartmeter/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd reads the meter and serves the dashboard.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Read the meter and serve the dashboard",
	Long: `Read the meter and serve the dashboard.

The server will:
  - Load configuration from the specified YAML file
  - Connect to the serial device or TCP bridge, reconnecting on failure
  - Serve the dashboard UI and JSON API on the configured port
  - Publish every telegram to the configured broker, if any

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  smartmeter serve -c config.yaml
  smartmeter serve --config /etc/smartmeter/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.SlogLevel())

	opts, err := config.BuildOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build sensors: %w", err)
	}
	m, err := smartmeter.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create meter: %w", err)
	}

	src := config.BuildSource(cfg)
	logger.Info("config loaded",
		"sensors", len(cfg.Sensors),
		"source", src.String(),
		"messaging", cfg.Messaging.Backend,
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.ServeDashboard(ctx, cfg.Port, cfg.Title); err != nil {
		return err
	}

	pub, client, err := config.BuildPublisher(cfg, m, logger)
	if err != nil {
		return err
	}
	if pub != nil {
		pub.Start(ctx)
		logger.Info("publishing readings", "broker", client.String(), "topic", cfg.Messaging.Topic)
	}

	// blocks until a signal arrives
	_ = m.Supervise(ctx, src, config.BuildBackoff(cfg))

	if pub != nil {
		done := make(chan struct{})
		go func() {
			pub.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "dropping unsent readings",
			)
		}
		if err := client.Close(); err != nil {
			logger.Warn("failed to close broker connection", "error", err)
		}
		logger.Info("publisher stopped", "stats", pub.Stats())
	}

	logger.Info("shutdown complete", "stats", m.Stats())
	return nil
}
