package main

import (
	"log/slog"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/jpalmerr/smartmeter/internal/telegram"
)

// mockMeter simulates a household meter: the energy register grows with the
// current power draw, which wanders between 150 W and 4 kW.
type mockMeter struct {
	energy float64 // kWh
	power  float64 // W
}

func (m *mockMeter) next(elapsed time.Duration) []byte {
	m.power += float64(rand.Intn(401) - 200)
	m.power = min(max(m.power, 150), 4000)
	m.energy += m.power * elapsed.Hours() / 1000

	return telegram.Encode(telegram.Telegram{
		Identification: "ESY5Q3DA1024 V3.04",
		Lines:          []string{"1-0:0.0.0*255(1ESY1160000001)"},
		Measurements: []telegram.Measurement{
			{Address: "1-0:1.8.0*255", Value: round(m.energy, 4), Unit: "kWh"},
			{Address: "1-0:2.8.0*255", Value: 0, Unit: "kWh"},
			{Address: "1-0:16.7.0*255", Value: round(m.power, 0), Unit: "W"},
		},
	})
}

func round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}

// StartMockMeter serves a simulated meter over TCP, like a ser2net bridge in
// front of a read head. Every client receives one telegram every two seconds,
// split into randomly sized writes.
// Call this in a goroutine before connecting the meter.
func StartMockMeter(addr string) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("mock meter error", "error", err)
		return
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Error("mock meter accept failed", "error", err)
			return
		}
		go serveMockMeter(conn)
	}
}

func serveMockMeter(conn net.Conn) {
	defer conn.Close()

	m := &mockMeter{energy: 1234.5, power: 350}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	last := time.Now()
	for now := range ticker.C {
		data := m.next(now.Sub(last))
		last = now

		// a serial line delivers telegrams in arbitrary pieces
		for len(data) > 0 {
			n := min(1+rand.Intn(32), len(data))
			if _, err := conn.Write(data[:n]); err != nil {
				slog.Info("mock meter client gone", "remote", conn.RemoteAddr().String())
				return
			}
			data = data[n:]
			time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		}
	}
}
