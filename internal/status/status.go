// Package status provides a thread-safe status tracker for the texecom-monitor daemon.
// It is read by HTTP handlers and by heartbeat publishing.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/texecom-monitor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	SampleMs    int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	SerialPort  string
	BaudRate    int
	GPIOBackend string
	FirstZone   int
	ZoneCount   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Panel           logic.Snapshot
	LastAlarmChange time.Time
	StartTime       time.Time
	Now             time.Time
	MQTTConnected   bool
	SerialErr       string
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the monitor's committed view.
// Called from runLoop on every tick.
func (t *Tracker) Update(panel logic.Snapshot) {
	t.mu.Lock()
	t.snap.Panel = panel
	t.mu.Unlock()
}

// SetAlarmChanged records when the last alarm event was committed.
func (t *Tracker) SetAlarmChanged(at time.Time) {
	t.mu.Lock()
	t.snap.LastAlarmChange = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetSerialError records the error that stopped the serial reader.
func (t *Tracker) SetSerialError(err error) {
	t.mu.Lock()
	if err == nil {
		t.snap.SerialErr = ""
	} else {
		t.snap.SerialErr = err.Error()
	}
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	// Panel.Zones is shared with readers; Update always receives a fresh slice.
	s.Now = time.Now()
	return s
}
