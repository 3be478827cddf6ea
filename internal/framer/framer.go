package framer

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
)

const (
	// StartByte opens a telegram (the identification line begins with it).
	StartByte byte = '/'

	// EndByte closes a telegram. The checksum (if any) follows it and is ignored.
	EndByte byte = '!'

	// DefaultMaxSize bounds the accumulation buffer. A D0 telegram is at most
	// a few hundred bytes; anything larger is line noise without an end byte.
	DefaultMaxSize = 16 * 1024
)

// Frame is one completed telegram.
type Frame struct {
	// Raw holds the telegram bytes from the start byte through the end byte.
	// If no start byte was seen before the end byte, Raw begins with whatever
	// was buffered.
	Raw []byte

	// Headless is true when the frame completed without a start byte.
	Headless bool
}

// Text returns the frame decoded as ISO-8859-1.
//
// Every byte value maps to exactly one rune, so decoding never fails and is
// independent of where the transport split the stream.
func (f Frame) Text() string {
	text, err := charmap.ISO8859_1.NewDecoder().Bytes(f.Raw)
	if err != nil {
		// unreachable for a single-byte charset, keep the bytes as-is
		return string(f.Raw)
	}
	return string(text)
}

// Stats counts framer activity since construction.
type Stats struct {
	Frames    uint64 // completed frames returned by Feed
	Discarded uint64 // partial telegrams dropped by a new start byte or overflow
	Overflows uint64 // buffers dropped because they exceeded the max size
}

// Framer accumulates bytes and detects telegram boundaries.
//
// States:
//   - idle: no start byte seen since the last emitted frame. Bytes are still
//     buffered so a headless frame can be emitted if an end byte arrives.
//   - collecting: a start byte has been seen, bytes accumulate until the end byte.
//   - discarding: the buffer overflowed. Every byte up to the next start byte
//     is dropped, end bytes included, so the tail of a truncated telegram is
//     never emitted.
//
// A start byte always resets the buffer, discarding whatever was collected.
// An end byte emits the buffer and clears it, returning to idle.
type Framer struct {
	buf        bytes.Buffer
	collecting bool
	discarding bool
	maxSize    int
	stats      Stats
}

// New creates a [Framer]. A maxSize <= 0 uses [DefaultMaxSize].
func New(maxSize int) *Framer {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Framer{maxSize: maxSize}
}

// Feed appends a chunk and returns every frame it completed, in order.
//
// Markers are located per byte, so a chunk that ends one telegram and begins
// the next yields the first frame and leaves the second one collecting.
// Returns nil when the chunk completed nothing.
func (f *Framer) Feed(chunk []byte) []Frame {
	var frames []Frame

	for len(chunk) > 0 {
		if f.discarding {
			i := bytes.IndexByte(chunk, StartByte)
			if i < 0 {
				break
			}
			f.discarding = false
			chunk = chunk[i:]
		}

		i := bytes.IndexAny(chunk, string([]byte{StartByte, EndByte}))
		if i < 0 {
			f.append(chunk)
			break
		}

		switch chunk[i] {
		case StartByte:
			// bytes before the start byte belong to whatever was buffered,
			// which the reset discards anyway
			f.reset()
			f.collecting = true
			f.append(chunk[i : i+1])
		case EndByte:
			f.append(chunk[:i+1])
			if f.buf.Len() > 0 {
				frames = append(frames, f.emit())
			}
		}
		chunk = chunk[i+1:]
	}

	return frames
}

// Pending reports how many bytes are buffered and whether a start byte has
// been seen for them.
func (f *Framer) Pending() (n int, collecting bool) {
	return f.buf.Len(), f.collecting
}

// Discarding reports whether the framer is dropping input after an overflow
// and waiting for the next start byte.
func (f *Framer) Discarding() bool {
	return f.discarding
}

// Stats returns a copy of the framer counters.
func (f *Framer) Stats() Stats {
	return f.stats
}

func (f *Framer) append(b []byte) {
	if f.buf.Len()+len(b) > f.maxSize {
		f.stats.Overflows++
		f.reset()
		f.discarding = true
		return
	}
	f.buf.Write(b)
}

func (f *Framer) emit() Frame {
	raw := make([]byte, f.buf.Len())
	copy(raw, f.buf.Bytes())
	frame := Frame{Raw: raw, Headless: !f.collecting}

	f.buf.Reset()
	f.collecting = false
	f.stats.Frames++
	return frame
}

// reset drops the buffer. Only a buffer that began with a start byte counts
// as discarded; idle bytes are the trailer of the previous telegram or noise.
func (f *Framer) reset() {
	if f.collecting && f.buf.Len() > 0 {
		f.stats.Discarded++
	}
	f.buf.Reset()
	f.collecting = false
}
