//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(string, Pins, bool) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (logic.SenseLines, error) {
	return logic.SenseLines{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// PeriphReader is not available on non-Linux platforms.
type PeriphReader struct{}

// NewPeriphReader returns an error on non-Linux platforms.
func NewPeriphReader(Pins, bool) (*PeriphReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *PeriphReader) Read() (logic.SenseLines, error) {
	return logic.SenseLines{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *PeriphReader) Close() error {
	return nil
}
