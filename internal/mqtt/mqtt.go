// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

// TopicAlarm is the MQTT topic for committed alarm state.
const TopicAlarm = "home/security/alarm"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/security/monitor/system"

// ZoneTopic returns the topic of an absolute zone number.
func ZoneTopic(zoneID int) string {
	return fmt.Sprintf("home/security/zone/%03d", zoneID)
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishZone sends a zone state to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishZone(event logic.ZoneEvent) error

	// PublishAlarm sends the committed alarm state to the broker.
	PublishAlarm(event logic.AlarmEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ZonePayload is the retained state of one zone.
type ZonePayload struct {
	Active  bool `json:"active"`
	Tamper  bool `json:"tamper"`
	Fault   bool `json:"fault"`
	Alarmed bool `json:"alarmed"`
}

// FormatZonePayload creates the JSON payload for a zone event.
func FormatZonePayload(event logic.ZoneEvent) ([]byte, error) {
	return json.Marshal(ZonePayload{
		Active:  event.State.Has(logic.ZoneActive),
		Tamper:  event.State.Has(logic.ZoneTamper),
		Fault:   event.State.Has(logic.ZoneFault),
		Alarmed: event.State.Has(logic.ZoneAlarmed),
	})
}

// AlarmPayload is the retained alarm panel state. State uses the Home
// Assistant alarm panel names.
type AlarmPayload struct {
	State     string `json:"state"`
	Ready     bool   `json:"ready"`
	Fault     bool   `json:"fault"`
	ArmFailed bool   `json:"arm_failed"`
}

// FormatAlarmPayload creates the JSON payload for an alarm event.
func FormatAlarmPayload(event logic.AlarmEvent) ([]byte, error) {
	return json.Marshal(AlarmPayload{
		State:     event.State.PublishedName(),
		Ready:     event.Flags.Has(logic.FlagReady),
		Fault:     event.Flags.Has(logic.FlagFault),
		ArmFailed: event.Flags.Has(logic.FlagArmFailed),
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is published by the broker when the connection drops uncleanly.
// It has no timestamp because it is registered at connect time.
func WillPayload() []byte {
	payload, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	return payload
}
