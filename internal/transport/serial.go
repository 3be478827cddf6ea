package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"go.bug.st/serial"
)

// Parity names accepted by [Serial].
const (
	ParityNone = "none"
	ParityEven = "even"
	ParityOdd  = "odd"
)

// Serial opens a local serial device, e.g. an IR read head on /dev/ttyUSB0.
//
// D0 meters in push mode talk 9600 baud 8N1 or 7E1 depending on the model.
type Serial struct {
	Device   string
	BaudRate int
	DataBits int    // 7 or 8, 0 means 8
	Parity   string // none, even or odd; empty means none
	StopBits int    // 1 or 2, 0 means 1
}

// Open opens the device with the configured line settings.
func (s Serial) Open(_ context.Context) (io.ReadCloser, error) {
	mode, err := s.mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(s.Device, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

func (s Serial) String() string {
	return fmt.Sprintf("serial:%s@%d", s.Device, s.BaudRate)
}

func (s Serial) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	switch s.DataBits {
	case 0, 8:
	case 7:
		mode.DataBits = 7
	default:
		return nil, fmt.Errorf("unsupported data bits %d", s.DataBits)
	}

	switch strings.ToLower(s.Parity) {
	case "", ParityNone:
	case ParityEven:
		mode.Parity = serial.EvenParity
	case ParityOdd:
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q", s.Parity)
	}

	switch s.StopBits {
	case 0, 1:
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unsupported stop bits %d", s.StopBits)
	}

	return mode, nil
}

// TCP opens a serial-over-TCP bridge such as ser2net.
type TCP struct {
	Addr string
}

// Open dials the bridge. The dial honours ctx cancellation.
func (t TCP) Open(ctx context.Context) (io.ReadCloser, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", t.Addr)
}

func (t TCP) String() string {
	return "tcp:" + t.Addr
}
