package serial

import (
	"errors"
	"sync"
	"time"
)

// FakePort is a test double that returns scripted chunks.
type FakePort struct {
	mu     sync.Mutex
	chunks [][]byte
	closed bool

	// ReadError, if set, is returned once the scripted chunks are consumed.
	ReadError error
}

// NewFakePort creates a FakePort with the given chunks.
func NewFakePort(chunks ...string) *FakePort {
	f := &FakePort{}
	for _, c := range chunks {
		f.chunks = append(f.chunks, []byte(c))
	}
	return f
}

// Push appends a chunk for a later Read.
func (f *FakePort) Push(chunk string) {
	f.mu.Lock()
	f.chunks = append(f.chunks, []byte(chunk))
	f.mu.Unlock()
}

// Read returns the next chunk. With nothing scripted it behaves like a port
// whose read timeout expired.
func (f *FakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if len(f.chunks) == 0 {
		err := f.ReadError
		f.mu.Unlock()
		if err != nil {
			return 0, err
		}
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	chunk := f.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		f.chunks[0] = chunk[n:]
	} else {
		f.chunks = f.chunks[1:]
	}
	f.mu.Unlock()
	return n, nil
}

// Close marks the port closed.
func (f *FakePort) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
