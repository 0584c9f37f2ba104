package logic

import "time"

// DefaultDebounce is the quiet window before a proposed state is committed.
const DefaultDebounce = 1000 * time.Millisecond

// StateMachine coalesces proposed transitions into committed alarm events.
// Panel outputs flip several lines within tens of milliseconds during one
// transition; only the last target seen in the window is committed.
type StateMachine struct {
	debounceDuration time.Duration
	state            AlarmState
	flags            AlarmFlags
	committedFlags   AlarmFlags
	pending          *PendingTransition

	hint   TextHint
	hintAt time.Time
}

// NewStateMachine creates a machine in the Disarmed state.
func NewStateMachine(debounceDuration time.Duration) *StateMachine {
	return &StateMachine{
		debounceDuration: debounceDuration,
		state:            Disarmed,
	}
}

// Apply feeds one sampling pass. Flags become live immediately; proposals
// open a window or retarget the open one without moving its start.
func (m *StateMachine) Apply(res SampleResult) {
	m.flags = res.Flags
	if !res.Changed() {
		return
	}

	target := m.target()
	if n := len(res.Proposals); n > 0 {
		target = res.Proposals[n-1]
	}

	if m.pending == nil {
		m.pending = &PendingTransition{Target: target, StartedAt: res.Time}
		return
	}
	m.pending.Target = target
}

// Commit closes the window once the debounce duration has elapsed and
// returns the single event for it.
func (m *StateMachine) Commit(now time.Time) (AlarmEvent, bool) {
	if m.pending == nil {
		return AlarmEvent{}, false
	}
	if now.Sub(m.pending.StartedAt) < m.debounceDuration {
		return AlarmEvent{}, false
	}

	m.state = m.pending.Target
	m.committedFlags = m.flags
	m.pending = nil

	return AlarmEvent{
		Timestamp: now,
		State:     m.state,
		Flags:     m.flags,
	}, true
}

// Corroborate records the text stream's view of the alarm. It never
// changes state.
func (m *StateMachine) Corroborate(hint TextHint, now time.Time) {
	if hint == HintNone {
		return
	}
	m.hint = hint
	m.hintAt = now
}

// Hint returns the last text hint and when it was received.
func (m *StateMachine) Hint() (TextHint, time.Time) {
	return m.hint, m.hintAt
}

// State returns the committed state.
func (m *StateMachine) State() AlarmState { return m.state }

// Flags returns the live flags.
func (m *StateMachine) Flags() AlarmFlags { return m.flags }

// CommittedFlags returns the flags carried by the last committed event.
func (m *StateMachine) CommittedFlags() AlarmFlags { return m.committedFlags }

// Pending returns a copy of the open window, if any.
func (m *StateMachine) Pending() (PendingTransition, bool) {
	if m.pending == nil {
		return PendingTransition{}, false
	}
	return *m.pending, true
}

func (m *StateMachine) target() AlarmState {
	if m.pending != nil {
		return m.pending.Target
	}
	return m.state
}
