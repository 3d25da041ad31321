// Package events implements the channel-based pub/sub fabric connecting feeds,
// trading instances, and observers.
package events

import (
	"sync"
)

// Bus is a lightweight in-process broker. Publishing never blocks: payloads to
// slow subscribers are dropped, which is acceptable for ticks (the next tick
// supersedes) and required so a stalled observer cannot stall trading.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]chan any
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan any)}
}

// Subscribe registers a listener on a topic. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe(topic Topic, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[topic] = append(b.subs[topic], ch)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Publish fans the payload out to every subscriber of the topic.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs[topic] {
		select {
		case ch <- payload:
		default:
			// subscriber is behind; drop rather than block the publisher
		}
	}
}

// Close closes all subscriber channels. Publish and Subscribe become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
}
