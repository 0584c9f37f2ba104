package protocol

import (
	"errors"
	"strings"
)

// ErrUnrecognizedMessage is reported for frames that match no rule.
var ErrUnrecognizedMessage = errors.New("unrecognized message")

// Quote is the leading delimiter of every Crestron-style message.
const Quote = '"'

// DefaultIdleBanner is the idle screen text shown by the installed panel.
const DefaultIdleBanner = `"  The Cooper's`

// MessageKind identifies a known message shape.
type MessageKind int

const (
	KindUnrecognized MessageKind = iota
	KindZoneUpdate
	KindArmUpdate
	KindDisarmUpdate
	KindEntryUpdate
	KindArmingUpdate
	KindIntruderUpdate
	KindUserLogin
	KindReplyDisarmed
	KindReplyArmed
	KindScreenPartArmed
	KindScreenFullArmed
	KindScreenIdle
	KindScreenWelcome
	KindScreenArmPrompt
	KindScreenPartArmPrompt
	KindScreenNightArmPrompt
	KindScreenDisarmPrompt
	KindScreenEntry
	KindScreenExit
)

var kindNames = map[MessageKind]string{
	KindUnrecognized:         "unrecognized",
	KindZoneUpdate:           "zone_update",
	KindArmUpdate:            "arm_update",
	KindDisarmUpdate:         "disarm_update",
	KindEntryUpdate:          "entry_update",
	KindArmingUpdate:         "arming_update",
	KindIntruderUpdate:       "intruder_update",
	KindUserLogin:            "user_login",
	KindReplyDisarmed:        "reply_disarmed",
	KindReplyArmed:           "reply_armed",
	KindScreenPartArmed:      "screen_part_armed",
	KindScreenFullArmed:      "screen_full_armed",
	KindScreenIdle:           "screen_idle",
	KindScreenWelcome:        "screen_welcome",
	KindScreenArmPrompt:      "screen_arm_prompt",
	KindScreenPartArmPrompt:  "screen_part_arm_prompt",
	KindScreenNightArmPrompt: "screen_night_arm_prompt",
	KindScreenDisarmPrompt:   "screen_disarm_prompt",
	KindScreenEntry:          "screen_entry",
	KindScreenExit:           "screen_exit",
}

func (k MessageKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Rule matches frames by prefix and length.
// ExactLen, when non-zero, takes precedence over MinLen.
type Rule struct {
	Prefix   string
	MinLen   int
	ExactLen int
	Kind     MessageKind
}

func (r Rule) matches(content string) bool {
	if r.ExactLen > 0 {
		if len(content) != r.ExactLen {
			return false
		}
	} else if len(content) < r.MinLen {
		return false
	}
	return strings.HasPrefix(content, r.Prefix)
}

// prefixRule requires at least the prefix itself.
func prefixRule(prefix string, kind MessageKind) Rule {
	return Rule{Prefix: prefix, MinLen: len(prefix), Kind: kind}
}

// Message is the result of classifying a frame.
type Message struct {
	Kind MessageKind
	// User is the login user index for KindUserLogin, -1 otherwise
	// (including a login whose index is not a digit).
	User int
	// Framed reports whether the frame starts with the quote delimiter.
	Framed bool
}

// Recognized reports whether the frame matched a rule.
func (m Message) Recognized() bool { return m.Kind != KindUnrecognized }

// Classifier evaluates an ordered rule table; the first match wins.
// Classify does not mutate the classifier and is safe to call repeatedly.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the rule table. idleBanner is the panel's idle
// screen text including the leading quote; empty selects DefaultIdleBanner.
func NewClassifier(idleBanner string) *Classifier {
	if idleBanner == "" {
		idleBanner = DefaultIdleBanner
	}
	return &Classifier{rules: buildRules(idleBanner)}
}

func buildRules(idleBanner string) []Rule {
	return []Rule{
		{Prefix: `"Z0`, ExactLen: ZoneUpdateLen, Kind: KindZoneUpdate},
		{Prefix: `"A0`, MinLen: 6, Kind: KindArmUpdate},
		{Prefix: `"D0`, MinLen: 6, Kind: KindDisarmUpdate},
		{Prefix: `"E0`, ExactLen: 6, Kind: KindEntryUpdate},
		{Prefix: `"X0`, ExactLen: 6, Kind: KindArmingUpdate},
		{Prefix: `"L0`, ExactLen: 6, Kind: KindIntruderUpdate},
		{Prefix: `"U0`, ExactLen: 6, Kind: KindUserLogin},
		{Prefix: `"T0`, ExactLen: 6, Kind: KindUserLogin},
		{Prefix: `"N`, ExactLen: 5, Kind: KindReplyDisarmed},
		{Prefix: `"Y`, ExactLen: 5, Kind: KindReplyArmed},
		prefixRule(`"Part`, KindScreenPartArmed),
		prefixRule(`"Night`, KindScreenPartArmed),
		prefixRule(`" * PART ARMED *`, KindScreenPartArmed),
		prefixRule(`"Area FULL ARMED`, KindScreenFullArmed),
		prefixRule(idleBanner, KindScreenIdle),
		// The welcome screen always carries the user name after the prefix.
		{Prefix: `"  Welcome Back`, MinLen: len(`"  Welcome Back`) + 1, Kind: KindScreenWelcome},
		prefixRule(`"Do you want to  Arm System?`, KindScreenArmPrompt),
		prefixRule(`"Do you want to  Part Arm System?`, KindScreenPartArmPrompt),
		prefixRule(`"Do you want:-   Night Arm`, KindScreenNightArmPrompt),
		prefixRule(`"Do you want to  Disarm System?`, KindScreenDisarmPrompt),
		prefixRule(`"Area in Entry`, KindScreenEntry),
		prefixRule(`"Area in Exit >`, KindScreenExit),
	}
}

// Rules returns a copy of the rule table in priority order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify matches the frame against the rule table.
func (c *Classifier) Classify(f Frame) Message {
	content := string(f.data)
	msg := Message{
		Kind:   KindUnrecognized,
		User:   -1,
		Framed: len(content) > 0 && content[0] == Quote,
	}

	for _, rule := range c.rules {
		if !rule.matches(content) {
			continue
		}
		msg.Kind = rule.Kind
		if rule.Kind == KindUserLogin {
			msg.User = userIndex(content)
		}
		return msg
	}
	return msg
}

// userIndex reads the single digit at offset 4 of a login message.
func userIndex(content string) int {
	d := content[4]
	if d < '0' || d > '9' {
		return -1
	}
	return int(d - '0')
}
