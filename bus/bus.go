// Package bus implements a publish/subscribe router that delivers events
// onto a queue.Queue rather than invoking subscriber callbacks directly.
// Subscriptions are keyed by (action, tag); raising an action pushes the
// callback onto the subscriber's queue rather than calling it inline, so
// delivery always happens on the subscriber's own thread. Callers that
// tear down a queue are expected to Unsubscribe first; the bus does not
// track queue liveness itself.
package bus

import (
	"sync"

	"github.com/fenwick-labs/netcore/queue"
)

// Callback receives the payload raised for a subscription.
type Callback func(data any)

type subscription struct {
	queue    *queue.Queue
	callback Callback
}

// Bus routes named (action, tag) events to subscribers. The zero value is
// ready to use.
type Bus struct {
	mu sync.Mutex
	// actions[action][tag] = subscription
	actions map[string]map[string]subscription
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{actions: make(map[string]map[string]subscription)}
}

// Subscribe registers callback to run, on q, whenever action is raised
// for tag. A later call with the same (action, tag) replaces the prior
// subscription.
func (b *Bus) Subscribe(tag, action string, q *queue.Queue, callback Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byTag, ok := b.actions[action]
	if !ok {
		byTag = make(map[string]subscription)
		b.actions[action] = byTag
	}
	byTag[tag] = subscription{queue: q, callback: callback}
}

// Unsubscribe removes the subscription registered for (action, tag), if
// any.
func (b *Bus) Unsubscribe(tag, action string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byTag, ok := b.actions[action]
	if !ok {
		return
	}
	delete(byTag, tag)
	if len(byTag) == 0 {
		delete(b.actions, action)
	}
}

// Raise delivers data to the subscriber registered for (action, tag), by
// pushing a callback onto its queue. A no-op if there is no such
// subscriber.
func (b *Bus) Raise(tag, action string, data any) {
	b.mu.Lock()
	byTag, ok := b.actions[action]
	if !ok {
		b.mu.Unlock()
		return
	}
	sub, ok := byTag[tag]
	b.mu.Unlock()
	if !ok {
		return
	}

	cb := sub.callback
	sub.queue.Push(func() { cb(data) })
}

// RaiseAction delivers data to every subscriber registered for action,
// regardless of tag.
func (b *Bus) RaiseAction(action string, data any) {
	b.mu.Lock()
	byTag, ok := b.actions[action]
	if !ok {
		b.mu.Unlock()
		return
	}
	targets := make([]subscription, 0, len(byTag))
	for _, sub := range byTag {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		cb := sub.callback
		sub.queue.Push(func() { cb(data) })
	}
}
