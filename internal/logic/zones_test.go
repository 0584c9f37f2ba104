package logic

import (
	"errors"
	"testing"

	"github.com/sweeney/texecom-monitor/internal/protocol"
)

func TestZoneHealthCodes(t *testing.T) {
	table := NewZoneTable(9, 11)

	ev, err := table.Apply(protocol.ZoneUpdate{Zone: 12, Health: protocol.HealthActive}, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.ZoneID != 12 {
		t.Errorf("expected zone 12, got %d", ev.ZoneID)
	}
	if !ev.State.Has(ZoneActive) || ev.State.Has(ZoneTamper) {
		t.Errorf("expected active, got %08b", ev.State)
	}

	ev, _ = table.Apply(protocol.ZoneUpdate{Zone: 12, Health: protocol.HealthTamper}, start)
	if ev.State.Has(ZoneActive) || !ev.State.Has(ZoneTamper) {
		t.Errorf("expected tamper only, got %08b", ev.State)
	}

	ev, _ = table.Apply(protocol.ZoneUpdate{Zone: 12, Health: protocol.HealthSecure}, start)
	if ev.State != 0 {
		t.Errorf("expected clear, got %08b", ev.State)
	}
}

func TestZoneOtherFlagsUntouched(t *testing.T) {
	table := NewZoneTable(9, 11)
	table.zones[3] = ZoneFault | ZoneAlarmed | ZoneManualBypass | ZoneTamper

	ev, err := table.Apply(protocol.ZoneUpdate{Zone: 12, Health: protocol.HealthActive}, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ZoneFault | ZoneAlarmed | ZoneManualBypass | ZoneActive
	if ev.State != want {
		t.Errorf("expected %08b, got %08b", want, ev.State)
	}

	// Unknown health codes still emit, without touching any bit.
	ev, err = table.Apply(protocol.ZoneUpdate{Zone: 12, Health: 7}, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.State != want {
		t.Errorf("expected %08b after unknown code, got %08b", want, ev.State)
	}
}

func TestZoneOutOfRange(t *testing.T) {
	table := NewZoneTable(9, 11)

	for _, zone := range []int{8, 20, 999} {
		_, err := table.Apply(protocol.ZoneUpdate{Zone: zone, Health: protocol.HealthActive}, start)
		if !errors.Is(err, ErrZoneIndexOutOfRange) {
			t.Errorf("zone %d: expected ErrZoneIndexOutOfRange, got %v", zone, err)
		}
	}

	for _, z := range table.Snapshot() {
		if z.State != 0 {
			t.Errorf("zone %d mutated by out-of-range update", z.ZoneID)
		}
	}
}

func TestZoneSnapshotAndGet(t *testing.T) {
	table := NewZoneTable(9, 3)
	table.Apply(protocol.ZoneUpdate{Zone: 10, Health: protocol.HealthActive}, start)

	snap := table.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 zones, got %d", len(snap))
	}
	if snap[0].ZoneID != 9 || snap[1].ZoneID != 10 || snap[2].ZoneID != 11 {
		t.Errorf("unexpected zone ids %+v", snap)
	}
	if snap[1].State != ZoneActive {
		t.Errorf("expected zone 10 active, got %08b", snap[1].State)
	}

	snap[1].State = 0
	if s, ok := table.Get(10); !ok || s != ZoneActive {
		t.Errorf("snapshot aliased the table: %08b ok=%v", s, ok)
	}
	if _, ok := table.Get(12); ok {
		t.Error("expected zone 12 to be out of range")
	}
}
