package audio

import (
	"bytes"
	"testing"
)

func TestFramer_WriteCompleteFrames(t *testing.T) {
	f := NewFramer(4)

	frames := f.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2, 3, 4}) {
		t.Errorf("First frame incorrect: %v", frames[0])
	}
	if !bytes.Equal(frames[1], []byte{5, 6, 7, 8}) {
		t.Errorf("Second frame incorrect: %v", frames[1])
	}
	if f.Buffered() != 0 {
		t.Errorf("Expected empty buffer, got %d bytes", f.Buffered())
	}
}

func TestFramer_PartialWriteAccumulates(t *testing.T) {
	f := NewFramer(4)

	if frames := f.Write([]byte{1, 2}); frames != nil {
		t.Errorf("Expected no frames from partial write, got %d", len(frames))
	}
	if f.Buffered() != 2 {
		t.Errorf("Expected 2 buffered bytes, got %d", f.Buffered())
	}

	// Completing the frame across a write boundary
	frames := f.Write([]byte{3, 4, 5})
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2, 3, 4}) {
		t.Errorf("Frame incorrect: %v", frames[0])
	}
	if f.Buffered() != 1 {
		t.Errorf("Expected 1 buffered byte, got %d", f.Buffered())
	}
}

func TestFramer_FlushRemainder(t *testing.T) {
	f := NewFramer(4)

	f.Write([]byte{1, 2, 3, 4, 5, 6})
	rest := f.Flush()
	if !bytes.Equal(rest, []byte{5, 6}) {
		t.Errorf("Expected remainder [5 6], got %v", rest)
	}
	if f.Buffered() != 0 {
		t.Errorf("Expected empty buffer after flush, got %d", f.Buffered())
	}
}

func TestFramer_FlushEmpty(t *testing.T) {
	f := NewFramer(4)

	if rest := f.Flush(); rest != nil {
		t.Errorf("Expected nil from empty flush, got %v", rest)
	}

	f.Write([]byte{1, 2, 3, 4})
	if rest := f.Flush(); rest != nil {
		t.Errorf("Expected nil flush after exact frame, got %v", rest)
	}
}

// Round-trip law: concatenating every emitted frame plus the flush
// remainder reconstructs exactly the bytes written, in order.
func TestFramer_RoundTrip(t *testing.T) {
	f := NewFramer(7)

	var input []byte
	for i := 0; i < 100; i++ {
		input = append(input, byte(i))
	}

	var output []byte
	// Feed in uneven chunks to exercise frame boundaries
	for _, size := range []int{3, 13, 1, 29, 54} {
		chunk := input[:size]
		input = input[size:]
		for _, frame := range f.Write(chunk) {
			if len(frame) != 7 {
				t.Fatalf("Expected frame size 7, got %d", len(frame))
			}
			output = append(output, frame...)
		}
	}
	output = append(output, f.Flush()...)

	for i := 0; i < 100; i++ {
		if output[i] != byte(i) {
			t.Fatalf("Byte %d reordered or lost: got %d", i, output[i])
		}
	}
	if len(output) != 100 {
		t.Errorf("Expected 100 bytes out, got %d", len(output))
	}
}

func TestFramer_InvalidFrameSize(t *testing.T) {
	f := NewFramer(0)

	frames := f.Write([]byte{9})
	if len(frames) != 1 {
		t.Fatalf("Expected fallback single-byte framing, got %d frames", len(frames))
	}
}
