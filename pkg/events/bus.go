// Package events provides a small in-process notification bus.
//
// Subscribers are registered by name and receive events either
// synchronously, inline with Publish, or through a queued dispatcher backed
// by a single worker goroutine. The single worker guarantees that a queued
// subscriber observes events in exactly the order they were published.
package events

import (
	"fmt"
	"sync"
)

// Kind classifies a notification.
type Kind string

const (
	// ResourceSaved signals that a synced resource was saved in its origin
	// database with at least one synced attribute changed.
	ResourceSaved Kind = "resource.saved"

	// ResourceChangedInForeignDatabase signals that propagation wrote the
	// resource into a database other than the origin.
	ResourceChangedInForeignDatabase Kind = "resource.changed_in_foreign_database"
)

// Event is one notification delivered to subscribers.
type Event struct {
	Kind    Kind
	Payload interface{}
}

// Handler consumes events. Handlers must not call back into the bus.
type Handler func(Event)

type subscriber struct {
	name    string
	handler Handler
	queued  bool
	enabled bool
}

type delivery struct {
	handler Handler
	event   Event
}

// Bus fans events out to named subscribers.
type Bus struct {
	mu          sync.Mutex
	subscribers []*subscriber

	queue  chan delivery
	done   chan struct{}
	closed bool
}

// NewBus creates a bus whose queued dispatcher buffers up to queueSize
// pending deliveries. A non-positive queueSize uses a default of 256.
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	b := &Bus{
		queue: make(chan delivery, queueSize),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a synchronous handler under the given name.
// A handler registered twice under the same name replaces the earlier one.
func (b *Bus) Subscribe(name string, h Handler) {
	b.add(name, h, false)
}

// SubscribeQueued registers a handler invoked from the queued dispatcher.
func (b *Bus) SubscribeQueued(name string, h Handler) {
	b.add(name, h, true)
}

func (b *Bus) add(name string, h Handler, queued bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		if sub.name == name {
			sub.handler = h
			sub.queued = queued
			sub.enabled = true
			return
		}
	}
	b.subscribers = append(b.subscribers, &subscriber{
		name:    name,
		handler: h,
		queued:  queued,
		enabled: true,
	})
}

// Unsubscribe removes the named subscriber.
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.name == name {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// SetEnabled toggles delivery to the named subscriber without removing it.
// The flag is evaluated when an event is published; deliveries already
// queued are unaffected.
func (b *Bus) SetEnabled(name string, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		if sub.name == name {
			sub.enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("unknown subscriber: %q", name)
}

// Publish delivers the event to every enabled subscriber. Synchronous
// subscribers run inline in registration order; queued subscribers receive
// the event later, in publish order.
//
// The subscriber set, enabled flags, and handlers are snapshotted under the
// bus lock; queued deliveries are also enqueued under it, so no send can
// race Close closing the queue. The dispatcher drains the queue without
// taking the lock, so a full queue cannot deadlock a publisher.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	var inline []Handler
	for _, sub := range b.subscribers {
		if !sub.enabled {
			continue
		}
		if sub.queued {
			b.queue <- delivery{handler: sub.handler, event: e}
			continue
		}
		inline = append(inline, sub.handler)
	}
	b.mu.Unlock()

	for _, h := range inline {
		h(e)
	}
}

// Close stops the queued dispatcher after draining pending deliveries.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.queue)
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for d := range b.queue {
		d.handler(d.event)
	}
}
