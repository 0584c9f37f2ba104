package gpio

import (
	"errors"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

// FakeReader is a test double that returns scripted sense line samples.
type FakeReader struct {
	// Samples contains scripted line states to return.
	// Each call to Read() consumes the next sample.
	Samples []logic.SenseLines

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...logic.SenseLines) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Active builds a sample with the given lines active.
func Active(lines ...logic.Line) logic.SenseLines {
	var s logic.SenseLines
	for _, l := range lines {
		s[l] = true
	}
	return s
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (logic.SenseLines, error) {
	f.Reads++
	if f.ReadError != nil {
		return logic.SenseLines{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.SenseLines{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Push appends samples to the script.
func (f *FakeReader) Push(samples ...logic.SenseLines) {
	f.Samples = append(f.Samples, samples...)
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}
