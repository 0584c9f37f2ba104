package logic

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.FirstZone != 9 || cfg.ZoneCount != 11 {
		t.Errorf("unexpected zones %d+%d", cfg.FirstZone, cfg.ZoneCount)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("unexpected debounce %v", cfg.Debounce)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero zones", func(c *Config) { c.ZoneCount = 0 }},
		{"negative first zone", func(c *Config) { c.FirstZone = -1 }},
		{"zones past 999", func(c *Config) { c.FirstZone = 995; c.ZoneCount = 10 }},
		{"zero debounce", func(c *Config) { c.Debounce = 0 }},
		{"zero sample interval", func(c *Config) { c.SampleInterval = 0 }},
		{"zero frame size", func(c *Config) { c.MaxFrameSize = 0 }},
		{"zero frame timeout", func(c *Config) { c.FrameTimeout = 0 }},
		{"empty banner", func(c *Config) { c.IdleBanner = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfigurationInvalid) {
				t.Errorf("expected ErrConfigurationInvalid, got %v", err)
			}
		})
	}
}

func TestConfigValidateBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FirstZone = 990
	cfg.ZoneCount = 10
	if err := cfg.Validate(); err != nil {
		t.Errorf("zones 990..999 should be valid, got %v", err)
	}
}
