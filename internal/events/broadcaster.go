// Package events fans out engine updates to subscribers.
package events

import (
	"sync"

	"github.com/vadiminshakov/hyperlev/internal/metrics"
)

// Broadcaster fans out values to all subscribers via buffered channels.
// A subscriber that does not keep up misses values instead of blocking the publisher.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// Publish sends v to all subscribers, dropping if a reader is slow.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives values until Unsubscribe is called.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	metrics.StateSubscribers.Inc()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
		metrics.StateSubscribers.Dec()
	}
	b.mu.Unlock()
}

// Len number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
