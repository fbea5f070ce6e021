package events

import (
	"sync"
	"time"
)

// Event is a domain event emitted by pipeline steps and subtask operations.
// TaskID doubles as the topic for task-scoped subscriptions.
type Event struct {
	Type      string    `json:"type"`
	TaskID    string    `json:"taskId"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is a channel-based pub-sub event bus. Delivery is best-effort:
// publishing never blocks, and events are dropped for subscribers whose
// channels are full.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // task id -> subscriber channels
	allSubs []chan Event
	closed  bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe creates a subscription scoped to one task's events.
// bufSize defaults to 64 if <= 0. The returned cancel func removes the
// subscription and closes the channel; it is safe to call once.
func (b *Bus) Subscribe(taskID string, bufSize int) (<-chan Event, func()) {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[taskID] = append(b.subs[taskID], ch)

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		b.subs[taskID] = removeChan(b.subs[taskID], ch)
		if len(b.subs[taskID]) == 0 {
			delete(b.subs, taskID)
		}
		close(ch)
	}
}

// SubscribeAll creates a subscription receiving every event on the bus.
func (b *Bus) SubscribeAll(bufSize int) (<-chan Event, func()) {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.allSubs = append(b.allSubs, ch)

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		b.allSubs = removeChan(b.allSubs, ch)
		close(ch)
	}
}

// removeChan drops one channel from a subscriber list
func removeChan(channels []chan Event, target chan Event) []chan Event {
	for i, ch := range channels {
		if ch == target {
			return append(channels[:i], channels[i+1:]...)
		}
	}
	return channels
}

// Publish sends an event to the task's subscribers and all firehose
// subscribers. Non-blocking.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[event.TaskID] {
		select {
		case ch <- event:
		default:
			// subscriber is behind, drop
		}
	}
	for _, ch := range b.allSubs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes the bus and all subscriber channels. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}
