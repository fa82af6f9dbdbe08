package events

import (
	"sync"
)

// DefaultBuffer is the per-observer channel capacity used when none is set.
const DefaultBuffer = 256

// Recorder receives broadcaster gauges and counters.
type Recorder interface {
	ObserversChanged(count int)
	EventDropped()
}

// Broadcaster delivers events to every registered observer. Publish never
// blocks: an observer whose buffer is full is removed and its channel
// closed, leaving the others unaffected. Events reach each observer in
// publish order.
type Broadcaster struct {
	mu        sync.Mutex
	buffer    int
	observers map[uint64]*observer
	nextID    uint64
	closed    bool
	recorder  Recorder
}

type observer struct {
	ch          chan Event
	executionID int64
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithRecorder reports observer counts and drops to r.
func WithRecorder(r Recorder) Option {
	return func(b *Broadcaster) { b.recorder = r }
}

// NewBroadcaster creates a broadcaster with the given per-observer buffer.
func NewBroadcaster(buffer int, opts ...Option) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	b := &Broadcaster{buffer: buffer, observers: make(map[uint64]*observer)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers an observer. A non-zero executionID restricts delivery
// to that execution. The returned function unregisters the observer and is
// safe to call more than once. Subscribing to a closed broadcaster yields a
// closed channel.
func (b *Broadcaster) Subscribe(executionID int64) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.observers[id] = &observer{ch: ch, executionID: executionID}
	b.reportLocked()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeLocked(id)
	}
}

// Publish delivers evt to matching observers.
func (b *Broadcaster) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, obs := range b.observers {
		if obs.executionID != 0 && obs.executionID != evt.ExecutionID {
			continue
		}
		select {
		case obs.ch <- evt:
		default:
			b.removeLocked(id)
			if b.recorder != nil {
				b.recorder.EventDropped()
			}
		}
	}
}

// Observers returns the number of registered observers.
func (b *Broadcaster) Observers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Close disconnects every observer. Later publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id := range b.observers {
		b.removeLocked(id)
	}
}

func (b *Broadcaster) removeLocked(id uint64) {
	obs, ok := b.observers[id]
	if !ok {
		return
	}
	delete(b.observers, id)
	close(obs.ch)
	b.reportLocked()
}

func (b *Broadcaster) reportLocked() {
	if b.recorder != nil {
		b.recorder.ObserversChanged(len(b.observers))
	}
}
