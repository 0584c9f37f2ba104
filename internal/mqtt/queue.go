package mqtt

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/texecom-monitor/internal/logger"
	"github.com/sweeney/texecom-monitor/internal/logic"
)

// DefaultQueueDepth is the number of events a Queue holds for its publisher.
const DefaultQueueDepth = 256

var (
	// ErrQueueFull is returned when an event is dropped because the queue is full.
	ErrQueueFull = errors.New("mqtt publish queue full")
	// ErrQueueClosed is returned for events handed to a closed queue.
	ErrQueueClosed = errors.New("mqtt publish queue closed")
)

type queued struct {
	topic   string
	publish func(Publisher) error
}

// Queue hands events to a publisher on its own goroutine, in order, so the
// run loop never waits on the broker. Publish errors are logged.
type Queue struct {
	pub   Publisher
	log   *zap.SugaredLogger
	items chan queued
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue starts publishing through pub. depth <= 0 selects
// DefaultQueueDepth; a nil log selects the global logger.
func NewQueue(pub Publisher, depth int, log *zap.SugaredLogger) *Queue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	if log == nil {
		log = logger.Logger().Named("mqtt")
	}
	q := &Queue{
		pub:   pub,
		log:   log,
		items: make(chan queued, depth),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for it := range q.items {
		if err := it.publish(q.pub); err != nil {
			q.log.Warnw("publish error", "topic", it.topic, "error", err)
		}
	}
}

func (q *Queue) enqueue(it queued) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.items <- it:
		return nil
	default:
		return ErrQueueFull
	}
}

// PublishZone queues a zone event.
func (q *Queue) PublishZone(event logic.ZoneEvent) error {
	return q.enqueue(queued{
		topic:   ZoneTopic(event.ZoneID),
		publish: func(p Publisher) error { return p.PublishZone(event) },
	})
}

// PublishAlarm queues an alarm event.
func (q *Queue) PublishAlarm(event logic.AlarmEvent) error {
	return q.enqueue(queued{
		topic:   TopicAlarm,
		publish: func(p Publisher) error { return p.PublishAlarm(event) },
	})
}

// PublishSystem queues a system event.
func (q *Queue) PublishSystem(event SystemEvent) error {
	return q.enqueue(queued{
		topic:   TopicSystem,
		publish: func(p Publisher) error { return p.PublishSystem(event) },
	})
}

// Close publishes what is still queued and then closes the publisher.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()

	q.wg.Wait()
	return q.pub.Close()
}
