package smartmeter

import (
	"context"
	"fmt"

	"github.com/jpalmerr/smartmeter/dashboard"
	"github.com/jpalmerr/smartmeter/internal/server"
)

// ServeDashboard starts the HTTP dashboard and JSON API on port.
//
// ServeDashboard is non-blocking: it returns once the port is bound and
// serves until ctx is cancelled, then shuts down gracefully. The API
// exposes every stored reading, the configured sensors with their current
// values, and [Meter.Stats]; /api/sse streams readings as telegrams are
// applied.
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	if err := m.ServeDashboard(ctx, 8080, "Basement"); err != nil {
//	    return err
//	}
//	m.Supervise(ctx, src, smartmeter.Backoff{})
//
// Returns an error if port is out of range or cannot be bound.
func (m *Meter) ServeDashboard(ctx context.Context, port int, title string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}

	sensors := make([]server.Sensor, len(m.sensors))
	for i, s := range m.sensors {
		sensors[i] = server.Sensor{Address: s.address, Name: s.name}
	}

	srv := server.NewServer(server.Config{
		Store:   m.store,
		Sensors: sensors,
		Stats:   func() any { return m.Stats() },
		Port:    port,
		Assets:  dashboard.Assets,
		Title:   title,
		Logger:  m.logger,
	})
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", port))
	return nil
}
