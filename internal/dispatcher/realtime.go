package dispatcher

import (
	"sync"

	"github.com/wnt/tada/internal/metrics"
	"github.com/wnt/tada/internal/pipeline"
)

// Broadcaster is the pub/sub abstraction the realtime push bus delivers
// through. Modeled on nevasik-swap_stats's internal/pubsub.Broadcaster
// interface so a second backend (see broadcaster_nats.go) can be swapped
// in without touching the bus itself.
type Broadcaster interface {
	Publish(topic string, rec pipeline.OutputRecord) error
	Health() error
}

// Subscriber is the read side of a realtime backend: attach a client to a
// topic and get back a channel of records plus an unsubscribe func. Every
// Broadcaster implementation must also satisfy this so WSHandler can be
// driven off whichever backend cfg.RealtimeBackend selected, rather than
// being hardwired to LocalBus regardless of the active backend.
type Subscriber interface {
	Subscribe(id, topic string) (<-chan pipeline.OutputRecord, func())
}

// RealtimeBackend is the full capability set a realtime backend needs:
// publish (for the dispatcher) and subscribe (for WSHandler). main.go
// wires exactly one of these up per process, selected by
// cfg.RealtimeBackend.
type RealtimeBackend interface {
	Broadcaster
	Subscriber
}

// subscriber holds one client's bounded delivery queue.
type subscriber struct {
	id     string
	topic  string
	queue  chan pipeline.OutputRecord
}

// LocalBus is the in-process Broadcaster implementation: each subscriber
// gets a bounded channel, and a full queue drops its oldest entry rather
// than blocking the publisher, per spec.md §4.5/§5.
type LocalBus struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	queueSize   int
}

func NewLocalBus(queueSize int) *LocalBus {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &LocalBus{
		subscribers: make(map[string][]*subscriber),
		queueSize:   queueSize,
	}
}

// Subscribe registers a new client for a topic and returns a channel of
// delivered records plus an unsubscribe function.
func (b *LocalBus) Subscribe(id, topic string) (<-chan pipeline.OutputRecord, func()) {
	sub := &subscriber{id: id, topic: topic, queue: make(chan pipeline.OutputRecord, b.queueSize)}
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[topic]
		for i, s := range subs {
			if s == sub {
				b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				close(sub.queue)
				break
			}
		}
	}
	return sub.queue, unsubscribe
}

func (b *LocalBus) Publish(topic string, rec pipeline.OutputRecord) error {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.queue <- rec:
		default:
			// queue full: drop the oldest entry and retry once, per
			// spec.md's drop-oldest overflow policy.
			select {
			case <-sub.queue:
				metrics.RecordRealtimeDrop(topic)
			default:
			}
			select {
			case sub.queue <- rec:
			default:
				metrics.RecordRealtimeDrop(topic)
			}
		}
	}
	return nil
}

func (b *LocalBus) Health() error { return nil }

// SubscriberCount reports how many clients are attached to a topic.
func (b *LocalBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
