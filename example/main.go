package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/smartmeter"
)

func main() {
	// start the simulated meter (see mock_meter.go)
	go StartMockMeter(":2001")
	time.Sleep(100 * time.Millisecond)

	power, _ := smartmeter.NewSensor("1-0:16.7.0*255", smartmeter.WithName("Live power"))

	m, err := smartmeter.New(
		smartmeter.WithAddresses("1-0:1.8.0*255", "1-0:2.8.0*255"),
		smartmeter.WithSensor(power),
		smartmeter.WithDisconnectHandler(func(err *smartmeter.DisconnectError) {
			slog.Warn("meter link lost", "error", err)
		}),
	)
	if err != nil {
		slog.Error("failed to create meter", "error", err)
		os.Exit(1)
	}

	// invoked once now, then after every telegram
	m.AddUpdateListener(func() {
		if v, unit, ok := m.GetValue("1-0:16.7.0*255"); ok {
			slog.Info("power", "value", v, "unit", unit)
		}
	})

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Smart Meter Demo                                    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Simulated meter on tcp://localhost:2001             ║")
	fmt.Println("  ║   • one telegram every 2s, split into random chunks   ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.ServeDashboard(ctx, 8080, "Smart Meter Demo"); err != nil {
		slog.Error("dashboard error", "error", err)
		os.Exit(1)
	}

	_ = m.Supervise(ctx, smartmeter.TCPSource("localhost:2001"), smartmeter.Backoff{})
}
