package smartmeter

import (
	"context"
	"io"

	"github.com/jpalmerr/smartmeter/internal/transport"
)

// Source opens the byte stream of a meter, e.g. a serial read head or a
// serial-over-TCP bridge. See [SerialSource], [TCPSource] and [SourceFunc].
type Source = transport.Opener

// Backoff bounds the delay between reconnect attempts in [Meter.Supervise].
//
// The delay starts at Min and doubles after every failed attempt up to Max.
// It resets to Min after a link that delivered at least one connect.
// Zero values default to 1s and 30s.
type Backoff = transport.Backoff

// SerialOption configures a serial source.
type SerialOption func(*transport.Serial)

// WithDataBits sets the number of data bits (7 or 8).
func WithDataBits(n int) SerialOption {
	return func(s *transport.Serial) { s.DataBits = n }
}

// WithParity sets parity to "none", "even" or "odd".
func WithParity(p string) SerialOption {
	return func(s *transport.Serial) { s.Parity = p }
}

// WithStopBits sets the number of stop bits (1 or 2).
func WithStopBits(n int) SerialOption {
	return func(s *transport.Serial) { s.StopBits = n }
}

// SerialSource reads from a local serial device.
//
// The default line settings are 8N1. Invalid settings are reported when the
// source is opened.
func SerialSource(device string, baudRate int, opts ...SerialOption) Source {
	s := transport.Serial{Device: device, BaudRate: baudRate}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// TCPSource reads from a serial-over-TCP bridge listening on addr.
func TCPSource(addr string) Source {
	return transport.TCP{Addr: addr}
}

// SourceFunc adapts a function to [Source]. Useful for tests and replaying
// captured telegrams.
func SourceFunc(fn func(ctx context.Context) (io.ReadCloser, error)) Source {
	return transport.OpenerFunc(fn)
}
