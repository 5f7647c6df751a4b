package events

import (
	"sync"

	"github.com/btittelbach/pubsub"
)

// Bus topics.
const (
	TopicEvent   = "event"
	TopicRules   = "rules.changed"
	TopicDevices = "device.changed"
)

// defaultSubscriberBuffer is the per-subscriber channel capacity.
const defaultSubscriberBuffer = 64

// Bus fans messages out to in-process subscribers.
//
// Subscribers must keep draining their channel: a full subscriber channel
// blocks publishers.
type Bus struct {
	ps     *pubsub.PubSub
	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus whose subscriber channels hold up to buffer messages.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Bus{ps: pubsub.New(buffer)}
}

// Publish delivers msg to every subscriber of topic. Publishing on a closed
// bus is a no-op.
func (b *Bus) Publish(topic string, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.ps.Pub(msg, topic)
}

// Subscribe returns a channel receiving messages from the given topics.
// It returns nil once the bus is closed.
func (b *Bus) Subscribe(topics ...string) chan interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	return b.ps.Sub(topics...)
}

// Unsubscribe detaches ch from topics and drains it until the bus closes
// it, so a publisher blocked on ch is released.
func (b *Bus) Unsubscribe(ch chan interface{}, topics ...string) {
	if ch == nil {
		return
	}
	b.mu.RLock()
	closed := b.closed
	if !closed {
		go b.ps.Unsub(ch, topics...)
	}
	b.mu.RUnlock()

	if closed {
		return
	}
	for range ch {
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}
