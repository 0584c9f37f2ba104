package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/texecom-monitor/internal/protocol"
)

// ErrConfigurationInvalid is returned by New for unusable configuration.
var ErrConfigurationInvalid = errors.New("invalid monitor configuration")

// DefaultSampleInterval is how often the sense lines are sampled.
const DefaultSampleInterval = 1000 * time.Millisecond

// Config holds constructor-time settings of the monitor.
type Config struct {
	// ZoneCount is the number of zones in the zone table.
	ZoneCount int
	// FirstZone is the panel zone number of table index 0.
	FirstZone int
	// Users names panel users by login index.
	Users []string
	// IdleBanner is the idle screen text including the leading quote.
	IdleBanner string
	// Debounce is the alarm state debounce window.
	Debounce time.Duration
	// SampleInterval is the sense line sampling period.
	SampleInterval time.Duration
	// MaxFrameSize is the printable byte limit of one frame.
	MaxFrameSize int
	// FrameTimeout is the quiet period after which a partial frame is flushed.
	FrameTimeout time.Duration
}

// DefaultConfig returns the settings of the installed panel.
func DefaultConfig() Config {
	return Config{
		ZoneCount:      11,
		FirstZone:      9,
		Users:          []string{"root", "Kevin", "Nicki", "Mumma"},
		IdleBanner:     protocol.DefaultIdleBanner,
		Debounce:       DefaultDebounce,
		SampleInterval: DefaultSampleInterval,
		MaxFrameSize:   protocol.DefaultMaxFrameSize,
		FrameTimeout:   protocol.DefaultFrameTimeout,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.ZoneCount <= 0:
		return fmt.Errorf("%w: zone count %d", ErrConfigurationInvalid, c.ZoneCount)
	case c.FirstZone < 0:
		return fmt.Errorf("%w: first zone %d", ErrConfigurationInvalid, c.FirstZone)
	case c.FirstZone+c.ZoneCount > 1000:
		return fmt.Errorf("%w: zones %d..%d exceed the 3-digit zone field",
			ErrConfigurationInvalid, c.FirstZone, c.FirstZone+c.ZoneCount-1)
	case c.Debounce <= 0:
		return fmt.Errorf("%w: debounce %v", ErrConfigurationInvalid, c.Debounce)
	case c.SampleInterval <= 0:
		return fmt.Errorf("%w: sample interval %v", ErrConfigurationInvalid, c.SampleInterval)
	case c.MaxFrameSize <= 0:
		return fmt.Errorf("%w: max frame size %d", ErrConfigurationInvalid, c.MaxFrameSize)
	case c.FrameTimeout <= 0:
		return fmt.Errorf("%w: frame timeout %v", ErrConfigurationInvalid, c.FrameTimeout)
	case c.IdleBanner == "":
		return fmt.Errorf("%w: empty idle banner", ErrConfigurationInvalid)
	}
	return nil
}
