package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Alarm         AlarmJSON    `json:"alarm"`
	Zones         []ZoneJSON   `json:"zones"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Serial        SerialStatus `json:"serial"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// AlarmJSON is the committed alarm state.
type AlarmJSON struct {
	State          string `json:"state"`
	PublishedState string `json:"published_state"`
	Pending        bool   `json:"pending"`
	Ready          bool   `json:"ready"`
	Fault          bool   `json:"fault"`
	ArmFailed      bool   `json:"arm_failed"`
	TextHint       string `json:"text_hint"`
	LastChange     string `json:"last_change,omitempty"`
}

// ZoneJSON is the state of one zone.
type ZoneJSON struct {
	ID       int  `json:"id"`
	Active   bool `json:"active"`
	Tamper   bool `json:"tamper"`
	Fault    bool `json:"fault"`
	Alarmed  bool `json:"alarmed"`
	Bypassed bool `json:"bypassed"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// SerialStatus reports the panel serial link.
type SerialStatus struct {
	Port  string `json:"port"`
	Baud  int    `json:"baud"`
	Error string `json:"error,omitempty"`
}

// CountsJSON is the JSON representation of monitor counters.
type CountsJSON struct {
	Frames       int `json:"frames"`
	Unrecognized int `json:"unrecognized"`
	Overflows    int `json:"overflows"`
	Timeouts     int `json:"timeouts"`
	ZoneEvents   int `json:"zone_events"`
	AlarmEvents  int `json:"alarm_events"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	SampleMs    int64  `json:"sample_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	GPIOBackend string `json:"gpio_backend"`
	FirstZone   int    `json:"first_zone"`
	ZoneCount   int    `json:"zone_count"`
}

func buildZones(zones []logic.ZoneSnapshot) []ZoneJSON {
	out := make([]ZoneJSON, 0, len(zones))
	for _, z := range zones {
		out = append(out, ZoneJSON{
			ID:       z.ZoneID,
			Active:   z.State.Has(logic.ZoneActive),
			Tamper:   z.State.Has(logic.ZoneTamper),
			Fault:    z.State.Has(logic.ZoneFault),
			Alarmed:  z.State.Has(logic.ZoneAlarmed),
			Bypassed: z.State.Has(logic.ZoneManualBypass) || z.State.Has(logic.ZoneAutoBypass),
		})
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	p := snap.Panel
	alarm := AlarmJSON{
		State:          p.State.String(),
		PublishedState: p.State.PublishedName(),
		Pending:        p.Pending,
		Ready:          p.Flags.Has(logic.FlagReady),
		Fault:          p.Flags.Has(logic.FlagFault),
		ArmFailed:      p.Flags.Has(logic.FlagArmFailed),
		TextHint:       p.Hint.String(),
	}
	if !snap.LastAlarmChange.IsZero() {
		alarm.LastChange = snap.LastAlarmChange.UTC().Format(time.RFC3339)
	}

	return StatusInner{
		Alarm:         alarm,
		Zones:         buildZones(p.Zones),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Serial: SerialStatus{
			Port:  snap.Config.SerialPort,
			Baud:  snap.Config.BaudRate,
			Error: snap.SerialErr,
		},
		Counts: CountsJSON{
			Frames:       p.Counts.Frames,
			Unrecognized: p.Counts.Unrecognized,
			Overflows:    p.Counts.Overflows,
			Timeouts:     p.Counts.Timeouts,
			ZoneEvents:   p.Counts.ZoneEvents,
			AlarmEvents:  p.Counts.AlarmEvents,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			SampleMs:    snap.Config.SampleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			GPIOBackend: snap.Config.GPIOBackend,
			FirstZone:   snap.Config.FirstZone,
			ZoneCount:   snap.Config.ZoneCount,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
