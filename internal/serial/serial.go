// Package serial reads the panel's text stream from a UART.
package serial

import (
	"fmt"
	"time"

	goserial "go.bug.st/serial"
)

const (
	// DefaultBaudRate is the panel's Crestron port speed.
	DefaultBaudRate = 19200
	// DefaultReadTimeout bounds each blocking read so Close is observed promptly.
	DefaultReadTimeout = 100 * time.Millisecond
	// DefaultPath is the USB serial adapter on the Pi.
	DefaultPath = "/dev/ttyUSB0"
)

// Port is the part of a serial port the pump uses.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Open opens path at baud, 8 data bits, no parity, two stop bits.
func Open(path string, baud int) (goserial.Port, error) {
	mode := &goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.TwoStopBits,
	}
	port, err := goserial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	if err := port.SetReadTimeout(DefaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	return port, nil
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	return goserial.GetPortsList()
}
