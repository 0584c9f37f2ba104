package mqtt

import (
	"github.com/sweeney/texecom-monitor/internal/logic"
)

// Message is one published message as seen by the broker.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// ZoneEvents contains all zone events that were published.
	ZoneEvents []logic.ZoneEvent

	// AlarmEvents contains all alarm events that were published.
	AlarmEvents []logic.AlarmEvent

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// Messages contains every message in publish order.
	Messages []Message

	// PublishError, if set, will be returned by PublishZone and PublishAlarm.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishZone records the zone event.
func (f *FakePublisher) PublishZone(event logic.ZoneEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatZonePayload(event)
	if err != nil {
		return err
	}
	f.ZoneEvents = append(f.ZoneEvents, event)
	f.Messages = append(f.Messages, Message{Topic: ZoneTopic(event.ZoneID), Payload: payload, Retained: true})
	return nil
}

// PublishAlarm records the alarm event.
func (f *FakePublisher) PublishAlarm(event logic.AlarmEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatAlarmPayload(event)
	if err != nil {
		return err
	}
	f.AlarmEvents = append(f.AlarmEvents, event)
	f.Messages = append(f.Messages, Message{Topic: TopicAlarm, Payload: payload, Retained: true})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.Messages = append(f.Messages, Message{Topic: TopicSystem, Payload: payload, Retained: event.Retained})
	return nil
}

// Last returns the most recent message on topic.
func (f *FakePublisher) Last(topic string) (Message, bool) {
	for i := len(f.Messages) - 1; i >= 0; i-- {
		if f.Messages[i].Topic == topic {
			return f.Messages[i], true
		}
	}
	return Message{}, false
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.ZoneEvents = nil
	f.AlarmEvents = nil
	f.SystemEvents = nil
	f.Messages = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
