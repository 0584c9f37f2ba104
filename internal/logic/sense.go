package logic

import "time"

// stateLines maps the five state lines to the state each proposes when it
// becomes active, in evaluation order. Later proposals in one pass win.
var stateLines = [...]struct {
	line  Line
	state AlarmState
}{
	{LineFullArmed, ArmedAway},
	{LinePartArmed, ArmedHome},
	{LineExit, Exit},
	{LineEntry, Entry},
	{LineTriggered, Triggered},
}

// flagLines maps indicator lines to flags and their diagnostic lines.
var flagLines = [...]struct {
	line      Line
	flag      AlarmFlags
	onSet     string
	onCleared string
}{
	{LineAreaReady, FlagReady, "", ""},
	{LineFaultPresent, FlagFault, "alarm is reporting a fault", "alarm fault cleared"},
	{LineArmFailed, FlagArmFailed, "alarm failed to arm", "alarm arm failure cleared"},
}

// SampleResult is everything one sampling pass produced.
type SampleResult struct {
	Time time.Time
	// Proposals are the proposed states in evaluation order.
	Proposals []AlarmState
	// Flags is the live flag value after this pass.
	Flags AlarmFlags
	// FlagsChanged reports whether any flag line changed.
	FlagsChanged bool
	// Diagnostics are log-worthy lines (fault and arm-failure transitions).
	Diagnostics []string
}

// Changed reports whether the pass should reach the state machine.
func (r SampleResult) Changed() bool {
	return len(r.Proposals) > 0 || r.FlagsChanged
}

// SenseMonitor edge-detects the digital sense lines.
type SenseMonitor struct {
	previous     SenseLines
	flags        AlarmFlags
	lastProposed AlarmState
}

// NewSenseMonitor creates a monitor assuming all lines start inactive.
func NewSenseMonitor() *SenseMonitor {
	return &SenseMonitor{lastProposed: Disarmed}
}

// Sample compares lines with the previous sample and returns the proposals.
func (m *SenseMonitor) Sample(lines SenseLines, now time.Time) SampleResult {
	res := SampleResult{Time: now}

	for _, sl := range stateLines {
		active := lines[sl.line]
		if active != m.previous[sl.line] && active {
			res.Proposals = append(res.Proposals, sl.state)
		}
	}

	for _, fl := range flagLines {
		active := lines[fl.line]
		if active == m.previous[fl.line] {
			continue
		}
		res.FlagsChanged = true
		if active {
			m.flags |= fl.flag
			if fl.onSet != "" {
				res.Diagnostics = append(res.Diagnostics, fl.onSet)
			}
		} else {
			m.flags &^= fl.flag
			if fl.onCleared != "" {
				res.Diagnostics = append(res.Diagnostics, fl.onCleared)
			}
		}
	}

	// Disarm has no line of its own: it is inferred once every state line
	// has dropped.
	if len(res.Proposals) == 0 && m.lastProposed != Disarmed && allInactive(lines) {
		res.Proposals = append(res.Proposals, Disarmed)
	}

	if n := len(res.Proposals); n > 0 {
		m.lastProposed = res.Proposals[n-1]
	}

	m.previous = lines
	res.Flags = m.flags
	return res
}

// Previous returns the last sampled lines.
func (m *SenseMonitor) Previous() SenseLines { return m.previous }

func allInactive(lines SenseLines) bool {
	for _, sl := range stateLines {
		if lines[sl.line] {
			return false
		}
	}
	return true
}
