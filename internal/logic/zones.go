package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/texecom-monitor/internal/protocol"
)

// ErrZoneIndexOutOfRange is returned for zone numbers outside the configured table.
var ErrZoneIndexOutOfRange = errors.New("zone index out of range")

// ZoneTable holds the state of every configured zone.
type ZoneTable struct {
	firstZone int
	zones     []ZoneState
}

// NewZoneTable creates a table of count zones numbered from firstZone.
func NewZoneTable(firstZone, count int) *ZoneTable {
	return &ZoneTable{
		firstZone: firstZone,
		zones:     make([]ZoneState, count),
	}
}

// Apply updates the addressed zone from a parsed zone update and returns the
// event to emit. Out-of-range zones leave the table untouched.
func (t *ZoneTable) Apply(u protocol.ZoneUpdate, now time.Time) (ZoneEvent, error) {
	idx := u.Zone - t.firstZone
	if idx < 0 || idx >= len(t.zones) {
		return ZoneEvent{}, fmt.Errorf("%w: zone %d (first %d, count %d)",
			ErrZoneIndexOutOfRange, u.Zone, t.firstZone, len(t.zones))
	}

	state := t.zones[idx]
	switch u.Health {
	case protocol.HealthSecure:
		state &^= ZoneActive | ZoneTamper
	case protocol.HealthActive:
		state |= ZoneActive
		state &^= ZoneTamper
	case protocol.HealthTamper:
		state |= ZoneTamper
		state &^= ZoneActive
	}
	t.zones[idx] = state

	return ZoneEvent{Timestamp: now, ZoneID: u.Zone, State: state}, nil
}

// Get returns the state of an absolute zone number.
func (t *ZoneTable) Get(zone int) (ZoneState, bool) {
	idx := zone - t.firstZone
	if idx < 0 || idx >= len(t.zones) {
		return 0, false
	}
	return t.zones[idx], true
}

// Snapshot returns a copy of every zone.
func (t *ZoneTable) Snapshot() []ZoneSnapshot {
	out := make([]ZoneSnapshot, len(t.zones))
	for i, z := range t.zones {
		out[i] = ZoneSnapshot{ZoneID: t.firstZone + i, State: z}
	}
	return out
}
