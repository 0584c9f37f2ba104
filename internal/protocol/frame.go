// Package protocol turns the panel's serial status stream into classified
// messages. It frames bytes on CRLF, matches frames against a fixed table of
// known message shapes, and parses zone updates.
//
// Like internal/logic, this package has no I/O and never reads the clock:
// every time-dependent call takes the caller's timestamp.
package protocol

import (
	"errors"
	"time"
)

const (
	// DefaultMaxFrameSize is the printable byte limit of one frame.
	DefaultMaxFrameSize = 100

	// DefaultFrameTimeout is the quiet period after which a partial frame is flushed.
	DefaultFrameTimeout = 50 * time.Millisecond

	cr = 13
	lf = 10
)

var (
	// ErrFramingOverflow marks a frame flushed because the buffer filled before CRLF.
	ErrFramingOverflow = errors.New("frame exceeded maximum size before terminator")

	// ErrFrameTimeout marks a frame flushed because it was not completed in time.
	ErrFrameTimeout = errors.New("frame not completed within timeout")
)

// FrameStatus records how a frame was completed.
type FrameStatus int

const (
	FrameComplete FrameStatus = iota
	FrameOverflow
	FrameTimedOut
)

func (s FrameStatus) String() string {
	switch s {
	case FrameComplete:
		return "complete"
	case FrameOverflow:
		return "overflow"
	case FrameTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Frame is one message extracted from the byte stream. It is immutable:
// Bytes returns a copy.
type Frame struct {
	data   []byte
	status FrameStatus
}

// NewFrame builds a complete frame from literal content. Used by tests and
// by callers replaying captured traffic.
func NewFrame(content string) Frame {
	return Frame{data: []byte(content), status: FrameComplete}
}

// Bytes returns a copy of the frame content.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

// String returns the frame content as a string.
func (f Frame) String() string { return string(f.data) }

// Len returns the content length in bytes.
func (f Frame) Len() int { return len(f.data) }

// Status reports how the frame was completed.
func (f Frame) Status() FrameStatus { return f.status }

// Err returns the diagnostic error for forced flushes, nil for complete frames.
func (f Frame) Err() error {
	switch f.status {
	case FrameOverflow:
		return ErrFramingOverflow
	case FrameTimedOut:
		return ErrFrameTimeout
	default:
		return nil
	}
}

// FrameReader accumulates bytes into frames terminated by CRLF.
// Not safe for concurrent use.
type FrameReader struct {
	maxSize   int
	timeout   time.Duration
	buf       []byte
	printable int
	startedAt time.Time
}

// NewFrameReader creates a reader flushing at maxSize printable bytes or
// after timeout has elapsed since the first byte of a frame.
func NewFrameReader(maxSize int, timeout time.Duration) *FrameReader {
	return &FrameReader{
		maxSize: maxSize,
		timeout: timeout,
		buf:     make([]byte, 0, maxSize*2),
	}
}

// Feed adds one byte. It returns a frame when the byte completes one.
func (r *FrameReader) Feed(b byte, now time.Time) (Frame, bool) {
	if len(r.buf) == 0 {
		r.startedAt = now
	}

	if b == lf && len(r.buf) > 0 && r.buf[len(r.buf)-1] == cr {
		content := r.buf[:len(r.buf)-1]
		if len(content) == 0 {
			// Blank line.
			r.reset()
			return Frame{}, false
		}
		return r.flush(content, FrameComplete), true
	}

	r.buf = append(r.buf, b)
	if isPrintable(b) {
		r.printable++
	}

	// Non-printable bytes do not count toward the limit, but the raw buffer
	// is still capped so a stream of control bytes cannot grow it unbounded.
	if r.printable >= r.maxSize || len(r.buf) >= r.maxSize*2 {
		return r.flush(r.buf, FrameOverflow), true
	}
	return Frame{}, false
}

// FeedBytes feeds every byte of p and returns the frames completed on the way.
func (r *FrameReader) FeedBytes(p []byte, now time.Time) []Frame {
	var frames []Frame
	for _, b := range p {
		if f, ok := r.Feed(b, now); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// PollTimeout flushes the partial frame if more than the timeout has elapsed
// since its first byte. Call it every tick, whether or not bytes arrived.
func (r *FrameReader) PollTimeout(now time.Time) (Frame, bool) {
	if len(r.buf) == 0 {
		return Frame{}, false
	}
	if now.Sub(r.startedAt) <= r.timeout {
		return Frame{}, false
	}
	return r.flush(r.buf, FrameTimedOut), true
}

// Pending returns the number of buffered bytes.
func (r *FrameReader) Pending() int { return len(r.buf) }

func (r *FrameReader) flush(content []byte, status FrameStatus) Frame {
	data := make([]byte, len(content))
	copy(data, content)
	r.reset()
	return Frame{data: data, status: status}
}

func (r *FrameReader) reset() {
	r.buf = r.buf[:0]
	r.printable = 0
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}
