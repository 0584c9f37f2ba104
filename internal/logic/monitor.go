package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/texecom-monitor/internal/protocol"
)

// ErrUserIndexOutOfRange is reported when a login names a user outside the user table.
var ErrUserIndexOutOfRange = errors.New("user index out of range")

// Monitor owns the frame reader, classifier, zone table, sense monitor and
// state machine of one panel, and routes between them.
//
// The driver calls, in any order within one tick: FeedBytes for received
// bytes, PollTimeout, Sample when SampleDue, and Commit. Not safe for
// concurrent use.
type Monitor struct {
	cfg        Config
	frames     *protocol.FrameReader
	classifier *protocol.Classifier
	zones      *ZoneTable
	sense      *SenseMonitor
	machine    *StateMachine
	sink       EventSink
	diag       DiagnosticSink

	nextSample    time.Time
	startTime     time.Time
	lastHeartbeat time.Time
	counts        Counts
}

// New validates cfg and builds a monitor. diag may be nil to discard diagnostics.
func New(cfg Config, sink EventSink, diag DiagnosticSink, startTime time.Time) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("%w: nil event sink", ErrConfigurationInvalid)
	}
	if diag == nil {
		diag = discard{}
	}

	return &Monitor{
		cfg:           cfg,
		frames:        protocol.NewFrameReader(cfg.MaxFrameSize, cfg.FrameTimeout),
		classifier:    protocol.NewClassifier(cfg.IdleBanner),
		zones:         NewZoneTable(cfg.FirstZone, cfg.ZoneCount),
		sense:         NewSenseMonitor(),
		machine:       NewStateMachine(cfg.Debounce),
		sink:          sink,
		diag:          diag,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}, nil
}

// FeedBytes frames received bytes and handles every completed frame.
func (m *Monitor) FeedBytes(p []byte, now time.Time) {
	for _, f := range m.frames.FeedBytes(p, now) {
		m.handleFrame(f, now)
	}
}

// PollTimeout flushes a stalled partial frame.
func (m *Monitor) PollTimeout(now time.Time) {
	if f, ok := m.frames.PollTimeout(now); ok {
		m.handleFrame(f, now)
	}
}

// SampleDue reports whether the sense lines should be sampled at now.
func (m *Monitor) SampleDue(now time.Time) bool {
	return !now.Before(m.nextSample)
}

// Sample runs one sense-line pass and feeds the state machine.
func (m *Monitor) Sample(lines SenseLines, now time.Time) {
	m.nextSample = now.Add(m.cfg.SampleInterval)

	res := m.sense.Sample(lines, now)
	for _, line := range res.Diagnostics {
		m.diag.WriteLine(line)
	}
	m.machine.Apply(res)
}

// Commit emits the alarm event once the debounce window has elapsed.
func (m *Monitor) Commit(now time.Time) {
	window, open := m.machine.Pending()
	if !open {
		return
	}
	ev, ok := m.machine.Commit(now)
	if !ok {
		return
	}
	m.counts.AlarmEvents++

	if hint, at := m.machine.Hint(); hint != HintNone && !at.Before(window.StartedAt) && !hint.Agrees(ev.State) {
		m.diag.WriteLine(fmt.Sprintf("alarm state %s not corroborated by text stream (%s)", ev.State, hint))
	}

	m.sink.OnAlarmChange(ev)
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed
// or is <= 0 (disabled).
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}
	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.counts,
	}
}

// Snapshot returns a copy of the committed view.
func (m *Monitor) Snapshot() Snapshot {
	_, pending := m.machine.Pending()
	hint, _ := m.machine.Hint()
	return Snapshot{
		State:   m.machine.State(),
		Flags:   m.machine.CommittedFlags(),
		Pending: pending,
		Zones:   m.zones.Snapshot(),
		Counts:  m.counts,
		Hint:    hint,
	}
}

// Counts returns activity counters since startup.
func (m *Monitor) Counts() Counts { return m.counts }

func (m *Monitor) handleFrame(f protocol.Frame, now time.Time) {
	m.counts.Frames++
	switch f.Status() {
	case protocol.FrameOverflow:
		m.counts.Overflows++
		m.diag.WriteLine(fmt.Sprintf("%v: flushed %d bytes", f.Err(), f.Len()))
	case protocol.FrameTimedOut:
		m.counts.Timeouts++
		m.diag.WriteLine(fmt.Sprintf("%v: flushed %d bytes", f.Err(), f.Len()))
	}

	msg := m.classifier.Classify(f)
	switch msg.Kind {
	case protocol.KindUnrecognized:
		m.counts.Unrecognized++
		if msg.Framed {
			m.diag.WriteLine(fmt.Sprintf("unknown Crestron command - %s", f))
		} else {
			m.diag.WriteLine(fmt.Sprintf("unknown non-Crestron command - %q [% x]", f.String(), f.Bytes()))
		}
	case protocol.KindZoneUpdate:
		m.handleZone(f, now)
	case protocol.KindUserLogin:
		m.handleLogin(msg)
	default:
		m.machine.Corroborate(hintFor(msg.Kind), now)
	}
}

func (m *Monitor) handleZone(f protocol.Frame, now time.Time) {
	upd, err := protocol.ParseZoneUpdate(f)
	if err != nil {
		m.diag.WriteLine(fmt.Sprintf("zone update %q: %v", f.String(), err))
		return
	}
	ev, err := m.zones.Apply(upd, now)
	if err != nil {
		m.diag.WriteLine(fmt.Sprintf("zone update %q: %v", f.String(), err))
		return
	}
	m.counts.ZoneEvents++
	m.sink.OnZoneChange(ev)
}

func (m *Monitor) handleLogin(msg protocol.Message) {
	if msg.User < 0 || msg.User >= len(m.cfg.Users) {
		m.diag.WriteLine(fmt.Sprintf("user logged in: %v (index %d, table size %d)",
			ErrUserIndexOutOfRange, msg.User, len(m.cfg.Users)))
		return
	}
	m.diag.WriteLine("user logged in: " + m.cfg.Users[msg.User])
}

func hintFor(kind protocol.MessageKind) TextHint {
	switch kind {
	case protocol.KindArmUpdate, protocol.KindReplyArmed,
		protocol.KindScreenPartArmed, protocol.KindScreenFullArmed:
		return HintArmed
	case protocol.KindDisarmUpdate, protocol.KindReplyDisarmed, protocol.KindScreenIdle:
		return HintDisarmed
	case protocol.KindEntryUpdate, protocol.KindScreenEntry:
		return HintEntry
	case protocol.KindArmingUpdate, protocol.KindScreenExit:
		return HintExit
	case protocol.KindIntruderUpdate:
		return HintIntruder
	default:
		return HintNone
	}
}

type discard struct{}

func (discard) WriteLine(string) {}
