package bus

import (
	"main/internal/ring"
	"main/internal/schema"
	"main/internal/wait"
)

// Bus moves events between producers and consumers. The ring-backed
// implementation gives disruptor ordering; the FIFO fallback satisfies the
// same operation contracts but orders only per producer.
type Bus interface {
	Publish(ev *schema.Event)
	TryPublish(ev *schema.Event) bool
	Consume() *schema.Event
	TryConsume() *schema.Event
	Empty() bool
	Size() int
	Capacity() int
	SignalAll()
}

// Config selects the backend and its tuning.
type Config struct {
	UseRing       bool
	Capacity      int
	WaitStrategy  wait.Kind
	MultiProducer bool
	MultiConsumer bool
}

// New builds a bus from the config.
func New(cfg Config) Bus {
	if !cfg.UseRing {
		return NewQueue(cfg.Capacity)
	}
	return NewRingBus(ring.Config{
		Capacity:      cfg.Capacity,
		Strategy:      wait.New(cfg.WaitStrategy),
		MultiProducer: cfg.MultiProducer,
		MultiConsumer: cfg.MultiConsumer,
	})
}

// RingBus wraps the disruptor ring buffer behind the Bus interface.
type RingBus struct {
	ring *ring.RingBuffer
}

// NewRingBus creates a ring-backed bus.
func NewRingBus(cfg ring.Config) *RingBus {
	return &RingBus{ring: ring.New(cfg)}
}

// Publish blocks until the event is accepted.
func (b *RingBus) Publish(ev *schema.Event) { b.ring.Publish(ev) }

// TryPublish enqueues without blocking, returning false when full.
func (b *RingBus) TryPublish(ev *schema.Event) bool { return b.ring.TryPublish(ev) }

// Consume blocks until an event is available.
func (b *RingBus) Consume() *schema.Event { return b.ring.Consume() }

// TryConsume returns nil when no event is available.
func (b *RingBus) TryConsume() *schema.Event { return b.ring.TryConsume() }

// Empty reports whether the bus has no pending events.
func (b *RingBus) Empty() bool { return b.ring.Empty() }

// Size returns the approximate pending event count.
func (b *RingBus) Size() int { return b.ring.Size() }

// Capacity returns the fixed backing capacity.
func (b *RingBus) Capacity() int { return b.ring.Capacity() }

// SignalAll wakes blocked consumers.
func (b *RingBus) SignalAll() { b.ring.SignalAll() }

// Ring exposes the backing ring for sequence inspection in tests and tools.
func (b *RingBus) Ring() *ring.RingBuffer { return b.ring }

// Queue is the bounded FIFO fallback. A buffered channel carries the
// mutex-and-condvar contract the facade requires.
type Queue struct {
	ch chan *schema.Event
}

// NewQueue allocates a fallback queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan *schema.Event, capacity)}
}

// Publish blocks until the event is accepted.
func (q *Queue) Publish(ev *schema.Event) { q.ch <- ev }

// TryPublish enqueues without blocking.
func (q *Queue) TryPublish(ev *schema.Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Consume blocks until an event is available.
func (q *Queue) Consume() *schema.Event { return <-q.ch }

// TryConsume returns nil when the queue is empty.
func (q *Queue) TryConsume() *schema.Event {
	select {
	case ev := <-q.ch:
		return ev
	default:
		return nil
	}
}

// Empty reports whether the queue has no pending events.
func (q *Queue) Empty() bool { return len(q.ch) == 0 }

// Size returns the pending event count.
func (q *Queue) Size() int { return len(q.ch) }

// Capacity returns the buffer capacity.
func (q *Queue) Capacity() int { return cap(q.ch) }

// SignalAll is a no-op: channel receives wake themselves.
func (q *Queue) SignalAll() {}
