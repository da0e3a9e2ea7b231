package audio

import (
	"bytes"
	"sync"
)

// Framer accumulates raw encoded audio bytes and slices them into
// fixed-size frames. Bytes are never reordered: frames come out in the
// exact order the bytes went in, and Flush drains whatever is left as
// one final partial frame.
type Framer struct {
	frameSize int
	mu        sync.Mutex
	buf       bytes.Buffer
}

// NewFramer creates a framer that emits frames of frameSize bytes.
// A frameSize <= 0 falls back to a single-byte frame so Write never
// stalls on a misconfigured size.
func NewFramer(frameSize int) *Framer {
	if frameSize <= 0 {
		frameSize = 1
	}
	return &Framer{frameSize: frameSize}
}

// Write appends data to the internal buffer and returns zero or more
// complete frames. Each returned frame is an independent copy; the
// caller may hold onto it.
func (f *Framer) Write(data []byte) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.buf.Write(data)

	var frames [][]byte
	for f.buf.Len() >= f.frameSize {
		frame := make([]byte, f.frameSize)
		f.buf.Read(frame)
		frames = append(frames, frame)
	}
	return frames
}

// Flush returns all remaining buffered bytes as a final partial frame
// and resets the buffer. Returns nil if nothing is buffered.
func (f *Framer) Flush() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.buf.Len() == 0 {
		return nil
	}
	rest := make([]byte, f.buf.Len())
	f.buf.Read(rest)
	f.buf.Reset()
	return rest
}

// Buffered returns the number of bytes waiting for a full frame.
func (f *Framer) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Len()
}

// FrameSize returns the configured frame size in bytes.
func (f *Framer) FrameSize() int {
	return f.frameSize
}
