//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

// RealReader reads the sense lines through the Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	// values is reused between reads.
	values []int
}

// NewRealReader requests every pin as an input with pull-up.
// With activeLow the kernel inverts the levels, so Value 1 = line active.
func NewRealReader(chipName string, pins Pins, activeLow bool) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	lines, err := chip.RequestLines(pins[:], opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sense pins %v: %w", pins, err)
	}

	return &RealReader{
		chip:   chip,
		lines:  lines,
		values: make([]int, logic.LineCount),
	}, nil
}

// Read returns the logical state of every sense line.
func (r *RealReader) Read() (logic.SenseLines, error) {
	var out logic.SenseLines
	if err := r.lines.Values(r.values); err != nil {
		return out, fmt.Errorf("read sense pins: %w", err)
	}
	for i, v := range r.values {
		out[i] = v == 1
	}
	return out, nil
}

// Close releases GPIO resources.
// Lines are left as inputs with pull-up so the panel outputs are not loaded
// while the daemon is down.
func (r *RealReader) Close() error {
	var err error
	if r.lines != nil {
		err = multierr.Append(err, wrap("reconfigure sense pins", r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp)))
		err = multierr.Append(err, wrap("close sense pins", r.lines.Close()))
	}
	if r.chip != nil {
		err = multierr.Append(err, wrap("close chip", r.chip.Close()))
	}
	return err
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
