// Package logic contains the pure panel-observation logic: zone table,
// sense-line edge detection, and the debounced alarm state machine.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"strings"
	"time"
)

// AlarmState is the committed alarm condition of the panel.
type AlarmState int

const (
	Disarmed AlarmState = iota
	ArmedHome
	ArmedAway
	Entry
	Exit
	Triggered
)

var alarmStateNames = [...]string{
	Disarmed:  "disarmed",
	ArmedHome: "armed_home",
	ArmedAway: "armed_away",
	Entry:     "entry",
	Exit:      "exit",
	Triggered: "triggered",
}

func (s AlarmState) String() string {
	if s < 0 || int(s) >= len(alarmStateNames) {
		return "unknown"
	}
	return alarmStateNames[s]
}

// PublishedName returns the Home Assistant alarm panel name of the state.
// Entry and Exit are both reported as "pending".
func (s AlarmState) PublishedName() string {
	switch s {
	case Entry, Exit:
		return "pending"
	default:
		return s.String()
	}
}

// AlarmFlags are panel indicators that change independently of AlarmState.
type AlarmFlags uint8

const (
	FlagReady AlarmFlags = 1 << iota
	FlagFault
	FlagArmFailed
)

// Has reports whether all bits in f are set.
func (a AlarmFlags) Has(f AlarmFlags) bool { return a&f == f }

func (a AlarmFlags) String() string {
	var parts []string
	if a.Has(FlagReady) {
		parts = append(parts, "ready")
	}
	if a.Has(FlagFault) {
		parts = append(parts, "fault")
	}
	if a.Has(FlagArmFailed) {
		parts = append(parts, "arm_failed")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ZoneState is the bit set describing one zone.
type ZoneState uint8

const (
	ZoneActive ZoneState = 1 << iota
	ZoneTamper
	ZoneFault
	ZoneFailedTest
	ZoneAlarmed
	ZoneManualBypass
	ZoneAutoBypass
)

// Has reports whether all bits in f are set.
func (z ZoneState) Has(f ZoneState) bool { return z&f == f }

// ZoneEvent is emitted for every decoded zone update.
type ZoneEvent struct {
	Timestamp time.Time
	// ZoneID is the absolute zone number (first-zone offset applied).
	ZoneID int
	State  ZoneState
}

// AlarmEvent is emitted once per committed alarm change.
type AlarmEvent struct {
	Timestamp time.Time
	State     AlarmState
	Flags     AlarmFlags
}

// EventSink receives committed events. Implementations publish them; they
// must not call back into the Monitor.
type EventSink interface {
	OnZoneChange(ZoneEvent)
	OnAlarmChange(AlarmEvent)
}

// DiagnosticSink receives free-text diagnostic lines. It must not block and
// has no way to report failure back to the caller.
type DiagnosticSink interface {
	WriteLine(line string)
}

// Line indexes the eight digital sense lines.
type Line int

const (
	LineFullArmed Line = iota
	LinePartArmed
	LineExit
	LineEntry
	LineTriggered
	LineArmFailed
	LineFaultPresent
	LineAreaReady

	LineCount = 8
)

var lineNames = [LineCount]string{
	"full_armed", "part_armed", "exit", "entry",
	"triggered", "arm_failed", "fault_present", "area_ready",
}

func (l Line) String() string {
	if l < 0 || int(l) >= LineCount {
		return "unknown"
	}
	return lineNames[l]
}

// SenseLines is one sample of the eight lines; true means the line is at
// its active level (already converted from the electrical level).
type SenseLines [LineCount]bool

// PendingTransition is an open debounce window.
type PendingTransition struct {
	Target    AlarmState
	StartedAt time.Time
}

// TextHint is the alarm condition implied by the text stream.
type TextHint int

const (
	HintNone TextHint = iota
	HintArmed
	HintDisarmed
	HintEntry
	HintExit
	HintIntruder
)

func (h TextHint) String() string {
	switch h {
	case HintArmed:
		return "armed"
	case HintDisarmed:
		return "disarmed"
	case HintEntry:
		return "entry"
	case HintExit:
		return "exit"
	case HintIntruder:
		return "intruder"
	default:
		return "none"
	}
}

// Agrees reports whether the hint is consistent with a committed state.
func (h TextHint) Agrees(s AlarmState) bool {
	switch h {
	case HintArmed:
		return s == ArmedHome || s == ArmedAway
	case HintDisarmed:
		return s == Disarmed
	case HintEntry:
		return s == Entry
	case HintExit:
		return s == Exit
	case HintIntruder:
		return s == Triggered
	default:
		return true
	}
}

// Counts tracks monitor activity since startup.
type Counts struct {
	Frames       int
	Unrecognized int
	Overflows    int
	Timeouts     int
	ZoneEvents   int
	AlarmEvents  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

// ZoneSnapshot is the state of one zone.
type ZoneSnapshot struct {
	ZoneID int
	State  ZoneState
}

// Snapshot is a copy of the monitor's committed view.
type Snapshot struct {
	State   AlarmState
	Flags   AlarmFlags
	Pending bool
	Zones   []ZoneSnapshot
	Counts  Counts
	Hint    TextHint
}
