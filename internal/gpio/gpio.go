// Package gpio provides sense line reading with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

// Reader reads the panel's digital sense lines.
type Reader interface {
	// Read returns the logical state of every sense line.
	// Electrical levels are already converted: true = line active.
	Read() (logic.SenseLines, error)

	// Close releases GPIO resources.
	Close() error
}

// Pins maps each sense line to a BCM GPIO number.
type Pins [logic.LineCount]int

// DefaultPins is the wiring of the opto-isolator board on the Pi header.
var DefaultPins = Pins{
	logic.LineFullArmed:    17,
	logic.LinePartArmed:    27,
	logic.LineExit:         22,
	logic.LineEntry:        23,
	logic.LineTriggered:    24,
	logic.LineArmFailed:    25,
	logic.LineFaultPresent: 5,
	logic.LineAreaReady:    6,
}

// Backend names accepted by Open.
const (
	BackendCdev   = "cdev"
	BackendPeriph = "periph"
)

// DefaultChip is the character device used by the cdev backend.
const DefaultChip = "gpiochip0"

// Options selects and configures a hardware backend.
type Options struct {
	Backend string
	Chip    string
	Pins    Pins
	// ActiveLow means a line is active when its electrical level is low.
	ActiveLow bool
}

// Open opens the configured backend.
func Open(opts Options) (Reader, error) {
	switch opts.Backend {
	case "", BackendCdev:
		chip := opts.Chip
		if chip == "" {
			chip = DefaultChip
		}
		r, err := NewRealReader(chip, opts.Pins, opts.ActiveLow)
		if err != nil {
			return nil, err
		}
		return r, nil
	case BackendPeriph:
		r, err := NewPeriphReader(opts.Pins, opts.ActiveLow)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", opts.Backend)
	}
}

// toLines converts raw electrical levels to logical line states.
func toLines(high [logic.LineCount]bool, activeLow bool) logic.SenseLines {
	var lines logic.SenseLines
	for i, h := range high {
		lines[i] = h != activeLow
	}
	return lines
}
