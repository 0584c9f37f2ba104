//go:build linux

package gpio

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

// PeriphReader reads the sense lines through periph.io, for boards where the
// character device is unavailable.
type PeriphReader struct {
	pins      [logic.LineCount]gpio.PinIO
	activeLow bool
}

// NewPeriphReader initialises the periph host drivers and configures every
// pin as an input with pull-up.
func NewPeriphReader(pins Pins, activeLow bool) (*PeriphReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	r := &PeriphReader{activeLow: activeLow}
	for i, n := range pins {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			return nil, fmt.Errorf("gpio pin %d (%s) not found", n, logic.Line(i))
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure pin %d (%s): %w", n, logic.Line(i), err)
		}
		r.pins[i] = p
	}
	return r, nil
}

// Read returns the logical state of every sense line.
func (r *PeriphReader) Read() (logic.SenseLines, error) {
	var high [logic.LineCount]bool
	for i, p := range r.pins {
		high[i] = p.Read() == gpio.High
	}
	return toLines(high, r.activeLow), nil
}

// Close is a no-op; periph pins are not held open.
func (r *PeriphReader) Close() error {
	return nil
}
