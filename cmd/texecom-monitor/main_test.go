package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/texecom-monitor/internal/config"
	"github.com/sweeney/texecom-monitor/internal/gpio"
	"github.com/sweeney/texecom-monitor/internal/logger"
	"github.com/sweeney/texecom-monitor/internal/logic"
	"github.com/sweeney/texecom-monitor/internal/mqtt"
	"github.com/sweeney/texecom-monitor/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")

	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.Type != "" || info.IP != "" {
		t.Errorf("expected empty type and IP, got %+v", info)
	}
}

// --- config and flags ---

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texecom-monitor.yaml")
	body := "serial:\n  port: /dev/ttyS1\nmqtt:\n  broker: tcp://file:1883\nhttp:\n  addr: \":8080\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := &options{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--config", path, "--broker", "tcp://flag:1883", "--log-level", "debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://flag:1883" {
		t.Errorf("broker: got %q", cfg.MQTT.Broker)
	}
	if cfg.Serial.Port != "/dev/ttyS1" {
		t.Errorf("serial: got %q, want file value", cfg.Serial.Port)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http: got %q, want file value", cfg.HTTP.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	opts := &options{}
	cmd := newRootCmd(opts)
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, err := loadConfig(cmd, opts); err == nil {
		t.Error("expected error for explicitly named missing config")
	}
}

func TestLoadConfigRejectsBadFlag(t *testing.T) {
	opts := &options{}
	cmd := newRootCmd(opts)
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := cmd.ParseFlags([]string{"--config", path, "--log-level", "chatty"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, err := loadConfig(cmd, opts); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texecom-monitor.yaml")

	var out bytes.Buffer
	cmd := newRootCmd(&options{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "-o", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("unexpected output %q", out.String())
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.MQTT.Broker != config.DefaultBroker || cfg.Panel.ZoneCount != 11 {
		t.Errorf("unexpected config %+v", cfg)
	}

	// A second run refuses to overwrite without --force.
	cmd = newRootCmd(&options{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "-o", path})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for existing file")
	}

	cmd = newRootCmd(&options{})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "-o", path, "--force"})
	if err := cmd.Execute(); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

func TestPrintLines(t *testing.T) {
	var buf bytes.Buffer
	printLines(&buf, gpio.Active(logic.LineFullArmed, logic.LineAreaReady))

	out := buf.String()
	for _, want := range []string{
		"full_armed:    ACTIVE",
		"exit:          inactive",
		"area_ready:    ACTIVE",
		"state:         armed_away (ready)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample logic.SenseLines, n int) []logic.SenseLines {
	out := make([]logic.SenseLines, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

var (
	idle  = gpio.Active()
	armed = gpio.Active(logic.LineFullArmed, logic.LineAreaReady)
)

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (logic.SenseLines, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return logic.SenseLines{}, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

// scriptedSerial hands out one chunk per Drain call.
type scriptedSerial struct {
	chunks []string
	err    error
	errAt  int
	drains int
}

func (s *scriptedSerial) Drain() []byte {
	s.drains++
	if len(s.chunks) == 0 {
		return nil
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return []byte(c)
}

func (s *scriptedSerial) Err() error {
	if s.err != nil && s.drains > s.errAt {
		return s.err
	}
	return nil
}

type loopFixture struct {
	ctx     context.Context
	monitor *logic.Monitor
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	clock   func() time.Time
}

var loopStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// newLoopFixture builds a monitor sampling every 100ms with a 250ms debounce,
// driven by a clock stepping step per call.
func newLoopFixture(t *testing.T, step time.Duration) *loopFixture {
	t.Helper()
	clock := fakeClock(loopStart, step)
	startTime := clock()

	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(startTime, status.Config{FirstZone: 9, ZoneCount: 11})

	cfg := logic.DefaultConfig()
	cfg.Debounce = 250 * time.Millisecond
	cfg.SampleInterval = 100 * time.Millisecond

	monitor, err := logic.New(cfg, newPublishingSink(context.Background(), pub, tracker), logger.NewDiagnosticSink(nil), startTime)
	if err != nil {
		t.Fatalf("logic.New: %v", err)
	}
	return &loopFixture{ctx: context.Background(), monitor: monitor, pub: pub, tracker: tracker, clock: clock}
}

// run drives runLoop for nTicks and then delivers signal.
func (f *loopFixture) run(t *testing.T, serialIn byteSource, reader gpio.Reader, heartbeat time.Duration, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(f.ctx, f.monitor, serialIn, reader, f.pub, f.pub, f.tracker, heartbeat, f.clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func systemEvents(pub *mqtt.FakePublisher, name string) []mqtt.SystemEvent {
	var out []mqtt.SystemEvent
	for _, se := range pub.SystemEvents {
		if se.Event == name {
			out = append(out, se)
		}
	}
	return out
}

func TestRunLoopNoEventsWhileIdle(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	reader := gpio.NewFakeReader(repeat(idle, 4)...)

	if err := f.run(t, nil, reader, 0, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.pub.AlarmEvents) != 0 || len(f.pub.ZoneEvents) != 0 {
		t.Errorf("expected no events, got alarms=%v zones=%v", f.pub.AlarmEvents, f.pub.ZoneEvents)
	}
	if len(f.pub.SystemEvents) != 1 || f.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %+v", f.pub.SystemEvents)
	}
	if reader.Reads != 4 {
		t.Errorf("expected one sample per tick, got %d reads", reader.Reads)
	}
}

func TestRunLoopArmCommitsAfterDebounce(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	// Lines go active on the third tick (t=300ms); commit is due at 550ms.
	reader := gpio.NewFakeReader(append(repeat(idle, 2), repeat(armed, 6)...)...)

	if err := f.run(t, nil, reader, 0, 8, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.pub.AlarmEvents) != 1 {
		t.Fatalf("expected 1 alarm event, got %d", len(f.pub.AlarmEvents))
	}
	ev := f.pub.AlarmEvents[0]
	if ev.State != logic.ArmedAway || !ev.Flags.Has(logic.FlagReady) {
		t.Errorf("unexpected alarm event %+v", ev)
	}
	if want := loopStart.Add(600 * time.Millisecond); !ev.Timestamp.Equal(want) {
		t.Errorf("commit time: got %v, want %v", ev.Timestamp, want)
	}

	msg, ok := f.pub.Last(mqtt.TopicAlarm)
	if !ok || !msg.Retained {
		t.Fatalf("expected retained alarm message, got %+v", msg)
	}
	if !strings.Contains(string(msg.Payload), `"state":"armed_away"`) {
		t.Errorf("unexpected payload %s", msg.Payload)
	}

	snap := f.tracker.Snapshot()
	if snap.Panel.State != logic.ArmedAway {
		t.Errorf("tracker state: got %s", snap.Panel.State)
	}
	if !snap.LastAlarmChange.Equal(ev.Timestamp) {
		t.Errorf("LastAlarmChange: got %v", snap.LastAlarmChange)
	}
	if !snap.MQTTConnected {
		t.Error("expected tracker to see MQTT connected")
	}
}

func TestRunLoopBounceRejection(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	// A single armed sample then idle again: the window reopens on disarm
	// and the last target is Disarmed, equal to the committed state.
	samples := append(repeat(idle, 2), armed)
	samples = append(samples, repeat(idle, 6)...)
	reader := gpio.NewFakeReader(samples...)

	if err := f.run(t, nil, reader, 0, len(samples), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	for _, ev := range f.pub.AlarmEvents {
		if ev.State != logic.Disarmed {
			t.Errorf("bounce published %s", ev.State)
		}
	}
}

func TestRunLoopSerialZoneUpdate(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	serialIn := &scriptedSerial{chunks: []string{"\"Z00", "91\r\n", "\"Z0121\r\n"}}
	reader := gpio.NewFakeReader(idle)

	if err := f.run(t, serialIn, reader, 0, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.pub.ZoneEvents) != 2 {
		t.Fatalf("expected 2 zone events, got %d", len(f.pub.ZoneEvents))
	}
	if f.pub.ZoneEvents[0].ZoneID != 9 || f.pub.ZoneEvents[1].ZoneID != 12 {
		t.Errorf("unexpected zones %+v", f.pub.ZoneEvents)
	}
	msg, ok := f.pub.Last(mqtt.ZoneTopic(12))
	if !ok {
		t.Fatal("expected message on zone 012 topic")
	}
	if !strings.Contains(string(msg.Payload), `"active":true`) {
		t.Errorf("unexpected payload %s", msg.Payload)
	}

	snap := f.tracker.Snapshot()
	if snap.Panel.Counts.ZoneEvents != 2 || snap.Panel.Counts.Frames != 2 {
		t.Errorf("unexpected counts %+v", snap.Panel.Counts)
	}
}

func TestRunLoopSerialError(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	core, logs := observer.New(zapcore.InfoLevel)
	f.ctx = logger.ToContext(context.Background(), zap.New(core).Sugar())
	serialIn := &scriptedSerial{err: errors.New("device unplugged"), errAt: 2}
	reader := gpio.NewFakeReader(idle)

	if err := f.run(t, serialIn, reader, 0, 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if got := f.tracker.Snapshot().SerialErr; got != "device unplugged" {
		t.Errorf("SerialErr: got %q", got)
	}
	if serialIn.drains != 5 {
		t.Errorf("loop stopped draining after error: %d drains", serialIn.drains)
	}
	errs := logs.FilterMessage("serial read error").All()
	if len(errs) != 1 {
		t.Fatalf("expected the serial error logged once, got %d", len(errs))
	}
	if errs[0].LoggerName != "serial" {
		t.Errorf("logger name: got %q", errs[0].LoggerName)
	}
	if len(systemEvents(f.pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN after serial error")
	}
}

func TestRunLoopGPIOReadError(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	reader := &faultReader{
		inner:      gpio.NewFakeReader(repeat(idle, 2)...),
		faultStart: 2, // calls 2,3 return error
		faultEnd:   4,
	}

	if err := f.run(t, nil, reader, 0, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(systemEvents(f.pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN system event after GPIO errors")
	}
}

func TestRunLoopGPIOErrorRecovery(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	reader := &faultReader{
		inner:      gpio.NewFakeReader(append(repeat(idle, 2), repeat(armed, 6)...)...),
		faultStart: 2, // calls 2,3,4 return error
		faultEnd:   5,
	}

	// 2 idle + 3 errors + 6 armed
	if err := f.run(t, nil, reader, 0, 11, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(f.pub.AlarmEvents) != 1 {
		t.Fatalf("expected 1 alarm event after recovery, got %d", len(f.pub.AlarmEvents))
	}
	if f.pub.AlarmEvents[0].State != logic.ArmedAway {
		t.Errorf("expected armed_away, got %s", f.pub.AlarmEvents[0].State)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.42")
	t.Setenv(envNetworkWifiSSID, "HomeNet")

	// Ticks at 5, 10, 15 and 20 minutes: the heartbeat fires once at 15.
	f := newLoopFixture(t, 5*time.Minute)
	reader := gpio.NewFakeReader(idle)

	if err := f.run(t, nil, reader, 15*time.Minute, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := systemEvents(f.pub, "HEARTBEAT")
	if len(hbs) != 1 {
		t.Fatalf("expected 1 HEARTBEAT event, got %d", len(hbs))
	}
	hb := hbs[0]
	if want := loopStart.Add(15 * time.Minute); !hb.Timestamp.Equal(want) {
		t.Errorf("heartbeat time: got %v, want %v", hb.Timestamp, want)
	}
	if hb.Retained {
		t.Error("HEARTBEAT should not be retained")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(hb.RawPayload, &parsed); err != nil {
		t.Fatalf("invalid heartbeat payload: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q", parsed.Status.Event)
	}
	if parsed.Status.Network == nil || parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("heartbeat missing network info: %+v", parsed.Status.Network)
	}
	if len(systemEvents(f.pub, "SHUTDOWN")) != 1 {
		t.Error("expected 1 SHUTDOWN event")
	}
}

func TestRunLoopPublishError(t *testing.T) {
	f := newLoopFixture(t, 100*time.Millisecond)
	f.pub.PublishError = fmt.Errorf("broker unavailable")
	reader := gpio.NewFakeReader(append(repeat(idle, 2), repeat(armed, 6)...)...)

	if err := f.run(t, nil, reader, 0, 8, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// Alarm publishing failed, but the state machine still committed.
	if len(f.pub.AlarmEvents) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(f.pub.AlarmEvents))
	}
	if f.tracker.Snapshot().Panel.State != logic.ArmedAway {
		t.Error("expected committed state despite publish failure")
	}
	if len(systemEvents(f.pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
}

func TestRunLoopShutdownSignals(t *testing.T) {
	for _, tc := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			f := newLoopFixture(t, 100*time.Millisecond)
			reader := gpio.NewFakeReader(idle)

			if err := f.run(t, nil, reader, 0, 2, tc.sig); err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}

			if len(f.pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(f.pub.SystemEvents))
			}
			se := f.pub.SystemEvents[0]
			if se.Event != "SHUTDOWN" || se.Reason != tc.want {
				t.Errorf("got %s/%s, want SHUTDOWN/%s", se.Event, se.Reason, tc.want)
			}
			if !se.Retained {
				t.Error("expected Retained=true for SHUTDOWN")
			}

			var parsed status.StatusJSON
			if err := json.Unmarshal(se.RawPayload, &parsed); err != nil {
				t.Fatalf("invalid shutdown payload: %v", err)
			}
			if parsed.Status.Reason != tc.want {
				t.Errorf("payload reason: got %q", parsed.Status.Reason)
			}
		})
	}
}
