package framer

import (
	"bytes"
	"testing"
)

func TestFramer_SingleChunk(t *testing.T) {
	f := New(0)

	frames := f.Feed([]byte("/ESY5\r\n\r\n1-0:1.8.0*255(00001.000*kWh)\r\n!"))
	if len(frames) != 1 {
		t.Fatalf("Feed() = %d frames, want 1", len(frames))
	}

	want := "/ESY5\r\n\r\n1-0:1.8.0*255(00001.000*kWh)\r\n!"
	if frames[0].Text() != want {
		t.Errorf("Text() = %q, want %q", frames[0].Text(), want)
	}
	if frames[0].Headless {
		t.Error("Headless = true, want false")
	}
}

func TestFramer_SplitAcrossChunks(t *testing.T) {
	f := New(0)

	if frames := f.Feed([]byte("/header\r\n1-0:1.8.0*255(00123.456")); frames != nil {
		t.Fatalf("Feed(first) = %v, want nil", frames)
	}
	frames := f.Feed([]byte("*kWh)\r\n!"))
	if len(frames) != 1 {
		t.Fatalf("Feed(second) = %d frames, want 1", len(frames))
	}

	want := "/header\r\n1-0:1.8.0*255(00123.456*kWh)\r\n!"
	if frames[0].Text() != want {
		t.Errorf("Text() = %q, want %q", frames[0].Text(), want)
	}
}

func TestFramer_ByteAtATime(t *testing.T) {
	f := New(0)
	input := []byte("/X\r\nA(1*V)\r\n!")

	var frames []Frame
	for i := range input {
		frames = append(frames, f.Feed(input[i:i+1])...)
	}

	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0].Raw, input) {
		t.Errorf("Raw = %q, want %q", frames[0].Raw, input)
	}
}

func TestFramer_NoEndMarkerNeverCompletes(t *testing.T) {
	f := New(0)

	for i := 0; i < 100; i++ {
		if frames := f.Feed([]byte("1-0:1.8.0*255(00001.000*kWh)\r\n")); frames != nil {
			t.Fatalf("Feed() iteration %d = %v, want nil", i, frames)
		}
	}
	if f.Stats().Frames != 0 {
		t.Errorf("Stats().Frames = %d, want 0", f.Stats().Frames)
	}
}

func TestFramer_NewStartDiscardsPartial(t *testing.T) {
	f := New(0)

	f.Feed([]byte("/OLD\r\n1-0:1.8.0*255(00999"))
	frames := f.Feed([]byte("/NEW\r\n1-0:2.8.0*255(1*kWh)\r\n!"))

	if len(frames) != 1 {
		t.Fatalf("Feed() = %d frames, want 1", len(frames))
	}
	if bytes.Contains(frames[0].Raw, []byte("OLD")) {
		t.Errorf("frame contains discarded content: %q", frames[0].Raw)
	}
	if f.Stats().Discarded != 1 {
		t.Errorf("Stats().Discarded = %d, want 1", f.Stats().Discarded)
	}
}

func TestFramer_StartMidChunkDropsPrefix(t *testing.T) {
	f := New(0)

	frames := f.Feed([]byte("noise/ID\r\n!"))
	if len(frames) != 1 {
		t.Fatalf("Feed() = %d frames, want 1", len(frames))
	}
	if got := string(frames[0].Raw); got != "/ID\r\n!" {
		t.Errorf("Raw = %q, want %q", got, "/ID\r\n!")
	}
}

func TestFramer_MultipleFramesInOneChunk(t *testing.T) {
	f := New(0)

	frames := f.Feed([]byte("/A\r\n!\r\n/B\r\n!\r\n/C\r\n"))
	if len(frames) != 2 {
		t.Fatalf("Feed() = %d frames, want 2", len(frames))
	}
	if string(frames[0].Raw) != "/A\r\n!" || string(frames[1].Raw) != "/B\r\n!" {
		t.Errorf("frames = %q, %q", frames[0].Raw, frames[1].Raw)
	}

	n, collecting := f.Pending()
	if !collecting || n != len("/C\r\n") {
		t.Errorf("Pending() = (%d, %v), want (%d, true)", n, collecting, len("/C\r\n"))
	}
}

func TestFramer_ClearsAfterEmit(t *testing.T) {
	f := New(0)

	f.Feed([]byte("/A\r\n!"))
	// checksum line and noise between telegrams
	f.Feed([]byte("E1F3\r\n"))
	frames := f.Feed([]byte("/B\r\n!"))

	if len(frames) != 1 {
		t.Fatalf("Feed() = %d frames, want 1", len(frames))
	}
	if string(frames[0].Raw) != "/B\r\n!" {
		t.Errorf("Raw = %q, want %q", frames[0].Raw, "/B\r\n!")
	}
	if f.Stats().Discarded != 0 {
		t.Errorf("Stats().Discarded = %d, want 0 for bytes between telegrams", f.Stats().Discarded)
	}
}

func TestFramer_HeadlessFrame(t *testing.T) {
	f := New(0)

	frames := f.Feed([]byte("1-0:1.8.0*255(5*kWh)\r\n!"))
	if len(frames) != 1 {
		t.Fatalf("Feed() = %d frames, want 1", len(frames))
	}
	if !frames[0].Headless {
		t.Error("Headless = false, want true")
	}
}

func TestFramer_Overflow(t *testing.T) {
	f := New(16)

	f.Feed([]byte("/0123456789"))
	f.Feed([]byte("0123456789"))

	n, collecting := f.Pending()
	if n != 0 || collecting {
		t.Errorf("Pending() = (%d, %v), want (0, false)", n, collecting)
	}
	if f.Stats().Overflows != 1 {
		t.Errorf("Stats().Overflows = %d, want 1", f.Stats().Overflows)
	}
	if !f.Discarding() {
		t.Error("Discarding() = false after overflow")
	}

	// the tail of the truncated telegram must not surface as a headless frame
	if frames := f.Feed([]byte("55(12.3*kWh)\r\n!\r\n")); frames != nil {
		t.Errorf("Feed(tail) = %v, want nil", frames)
	}
	if frames := f.Feed([]byte("!")); frames != nil {
		t.Errorf("Feed(!) = %v, want nil while discarding", frames)
	}

	frames := f.Feed([]byte("/A!"))
	if len(frames) != 1 || string(frames[0].Raw) != "/A!" {
		t.Errorf("Feed(/A!) = %v, want one frame", frames)
	}
}

func TestFramer_OverflowResumesMidChunk(t *testing.T) {
	f := New(16)

	// overflow, truncated tail and the next telegram in a single chunk
	frames := f.Feed([]byte("/0123456789ABCDEFGH\r\nX(1*V)\r\n!\r\n/B\r\n!"))
	if len(frames) != 1 {
		t.Fatalf("Feed() = %d frames, want 1", len(frames))
	}
	if frames[0].Headless || string(frames[0].Raw) != "/B\r\n!" {
		t.Errorf("frame = %+v, want /B telegram", frames[0])
	}
	if f.Discarding() {
		t.Error("Discarding() = true after a start byte")
	}
}

func TestFramer_NoiseOverflowWaitsForStart(t *testing.T) {
	f := New(16)

	f.Feed([]byte("noise without any markers at all"))
	if frames := f.Feed([]byte("A(1*V)\r\n!")); frames != nil {
		t.Errorf("Feed() = %v, want nil after overflowing noise", frames)
	}
	if f.Stats().Discarded != 0 {
		t.Errorf("Stats().Discarded = %d, want 0 for noise", f.Stats().Discarded)
	}
}

func TestFrame_TextLatin1(t *testing.T) {
	frame := Frame{Raw: []byte{'/', 0xB0, 'C', '!'}}

	if got := frame.Text(); got != "/°C!" {
		t.Errorf("Text() = %q, want %q", got, "/°C!")
	}
}
