package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// DefaultChunkSize is the read buffer size used by [Pump].
const DefaultChunkSize = 256

// ErrClosed is reported when the source reached end of stream.
var ErrClosed = errors.New("transport: source closed")

// Handler receives the events of one connection, in order:
// OnConnect, any number of OnBytes, then exactly one OnDisconnect.
//
// All calls happen on the pump goroutine. The chunk passed to OnBytes is only
// valid for the duration of the call.
type Handler interface {
	OnConnect()
	OnBytes(chunk []byte)
	OnDisconnect(reason error)
}

// Opener opens a byte source.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// OpenerFunc adapts a function to [Opener].
type OpenerFunc func(ctx context.Context) (io.ReadCloser, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

func (f OpenerFunc) String() string {
	return "func"
}

// Pump opens src once and delivers its bytes to h until the source fails or
// ctx is cancelled.
//
// If opening fails, h sees no events and the open error is returned.
// Otherwise h.OnDisconnect is always called exactly once: with ctx.Err() on
// cancellation (Pump then returns nil), or with the read error (returned as
// well). End of stream is reported as [ErrClosed].
func Pump(ctx context.Context, src Opener, h Handler, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	conn, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", src, err)
	}

	// closing the source is the only portable way to unblock a pending Read
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	h.OnConnect()

	buf := make([]byte, chunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			h.OnBytes(buf[:n])
		}
		if err == nil {
			continue
		}

		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			h.OnDisconnect(ctxErr)
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			err = ErrClosed
		}
		err = fmt.Errorf("transport: read %s: %w", src, err)
		h.OnDisconnect(err)
		return err
	}
}
