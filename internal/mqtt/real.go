package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/texecom-monitor/internal/logger"
	"github.com/sweeney/texecom-monitor/internal/logic"
)

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// BufferSize is the number of messages kept while disconnected.
	BufferSize     int
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	// Now stamps RECONNECTED events; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the options used by the daemon for broker.
func DefaultOptions(broker string) Options {
	return Options{
		Broker:         broker,
		ClientID:       "texecom-monitor",
		BufferSize:     DefaultBufferSize,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// RealPublisher publishes to an actual MQTT broker. Zone and alarm messages
// are retained at QoS 1. While the connection is down messages are kept in a
// ring buffer and replayed, oldest first, once paho reconnects.
type RealPublisher struct {
	client paho.Client
	opts   Options
	log    *zap.SugaredLogger

	// mu serialises publishes with the replay in onConnect.
	mu            sync.Mutex
	buffer        *ringBuffer
	connectedOnce bool
	// ready is set once onConnect has replayed the buffer. paho reports the
	// connection open before onConnect runs, so publishes keep buffering
	// until then.
	ready bool
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// An unreachable broker is not an error: paho keeps retrying and messages
// are buffered until it connects.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	p := newPublisher(nil, opts)

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(p.opts.ConnectTimeout) {
		p.log.Warnw("broker not reachable yet, buffering until connected",
			"broker", opts.Broker, "timeout", p.opts.ConnectTimeout)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(client paho.Client, opts Options) *RealPublisher {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RealPublisher{
		client: client,
		opts:   opts,
		log:    logger.Logger().Named("mqtt"),
		buffer: newRingBuffer(opts.BufferSize),
	}
}

// PublishZone sends a zone state, retained, to its zone topic.
func (p *RealPublisher) PublishZone(event logic.ZoneEvent) error {
	payload, err := FormatZonePayload(event)
	if err != nil {
		return fmt.Errorf("format zone payload: %w", err)
	}
	return p.publish(ZoneTopic(event.ZoneID), payload, true)
}

// PublishAlarm sends the committed alarm state, retained.
func (p *RealPublisher) PublishAlarm(event logic.AlarmEvent) error {
	payload, err := FormatAlarmPayload(event)
	if err != nil {
		return fmt.Errorf("format alarm payload: %w", err)
	}
	return p.publish(TopicAlarm, payload, true)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, payload, event.Retained)
}

func (p *RealPublisher) publish(topic string, payload []byte, retained bool) error {
	p.mu.Lock()
	if !p.ready || !p.client.IsConnectionOpen() {
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: 1, retained: retained})
		p.mu.Unlock()
		p.log.Debugw("buffered until connected", "topic", topic)
		return nil
	}
	token := p.client.Publish(topic, 1, retained, payload)
	p.mu.Unlock()

	return p.wait(token, topic)
}

func (p *RealPublisher) wait(token paho.Token, topic string) error {
	if !token.WaitTimeout(p.opts.PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// onConnect runs on paho's goroutine after every successful connect.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connectedOnce {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.opts.Now(), Event: "RECONNECTED"})
		if err := p.wait(c.Publish(TopicSystem, 1, false, payload), TopicSystem); err != nil {
			p.log.Warnw("publish reconnect event", "error", err)
		}
	}
	p.connectedOnce = true

	defer func() { p.ready = true }()

	dropped := p.buffer.dropped
	msgs := p.buffer.drainAll()
	if len(msgs) == 0 {
		p.log.Infow("connected to broker", "broker", p.opts.Broker)
		return
	}

	p.log.Infow("connected to broker, replaying buffered messages",
		"broker", p.opts.Broker, "count", len(msgs), "dropped", dropped)
	for _, m := range msgs {
		if err := p.wait(c.Publish(m.topic, m.qos, m.retained, m.payload), m.topic); err != nil {
			p.log.Warnw("replay buffered message", "error", err)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.ready = false
	p.mu.Unlock()
	p.log.Warnw("connection to broker lost", "error", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
