// Standalone simulated meter for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockmeter
//
// Then in another terminal:
//
//	go run ./cmd/smartmeter serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/jpalmerr/smartmeter/internal/telegram"
)

func main() {
	ln, err := net.Listen("tcp", ":2001")
	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	fmt.Println("Simulated meter listening on :2001")
	fmt.Println("One telegram every 2s, every 5th one carries a corrupt line")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Error("accept failed", "error", err)
			os.Exit(1)
		}
		slog.Info("client connected", "remote", conn.RemoteAddr().String())
		go serve(conn)
	}
}

func serve(conn net.Conn) {
	defer conn.Close()

	energy, power := 1234.5, 350.0
	for i := 1; ; i++ {
		power = min(max(power+float64(rand.Intn(401)-200), 150), 4000)
		energy += power * 2 / 3600 / 1000

		t := telegram.Telegram{
			Identification: "ESY5Q3DA1024 V3.04",
			Lines:          []string{"1-0:0.0.0*255(1ESY1160000001)"},
			Measurements: []telegram.Measurement{
				{Address: "1-0:1.8.0*255", Value: float64(int64(energy*10000)) / 10000, Unit: "kWh"},
				{Address: "1-0:16.7.0*255", Value: float64(int64(power)), Unit: "W"},
			},
		}
		if i%5 == 0 {
			t.Lines = append(t.Lines, "1-0:2.8.0*255(0000#.000*kWh)")
		}

		data := telegram.Encode(t)
		for len(data) > 0 {
			n := min(1+rand.Intn(32), len(data))
			if _, err := conn.Write(data[:n]); err != nil {
				slog.Info("client gone", "remote", conn.RemoteAddr().String())
				return
			}
			data = data[n:]
		}
		time.Sleep(2 * time.Second)
	}
}
