package ring

import (
	"runtime"
	"sync/atomic"

	"main/internal/schema"
	"main/internal/seq"
	"main/internal/wait"
)

// DefaultCapacity is used when the configured capacity is zero.
const DefaultCapacity = 1 << 20

// Config controls ring buffer construction. Capacity is rounded up to the
// next power of two and floored at 2, following the original queue contract.
type Config struct {
	Capacity      int
	Strategy      wait.Strategy
	MultiProducer bool
	MultiConsumer bool
}

func (c *Config) validate() {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.Capacity < 2 {
		c.Capacity = 2
	}
	if c.Capacity&(c.Capacity-1) != 0 {
		next := 1
		for next < c.Capacity {
			next <<= 1
		}
		c.Capacity = next
	}
	if c.Strategy == nil {
		c.Strategy = wait.New(wait.KindYield)
	}
}

// RingBuffer is a fixed-capacity lock-free event queue with claim/publish/
// consume sequencing.
//
// Single-producer mode publishes by advancing the cursor itself: the cursor
// is both the claim counter and the published marker. Multi-producer mode
// claims slots by CAS on the cursor and publishes through a per-slot
// availability table, because a claimed sequence is not readable until its
// slot write has completed.
type RingBuffer struct {
	mask     int64
	capacity int64

	slots     []atomic.Pointer[schema.Event]
	available []atomic.Int64

	cursor   *seq.Sequence
	readNext *seq.Sequence
	consumer *seq.Sequence
	barrier  *seq.Barrier

	strategy      wait.Strategy
	multiProducer bool
	multiConsumer bool
}

// New creates a ring buffer from the config.
func New(cfg Config) *RingBuffer {
	cfg.validate()
	r := &RingBuffer{
		mask:          int64(cfg.Capacity - 1),
		capacity:      int64(cfg.Capacity),
		slots:         make([]atomic.Pointer[schema.Event], cfg.Capacity),
		cursor:        seq.NewSequence(),
		readNext:      seq.NewSequence(),
		consumer:      seq.NewSequence(),
		strategy:      cfg.Strategy,
		multiProducer: cfg.MultiProducer,
		multiConsumer: cfg.MultiConsumer,
	}
	if cfg.MultiProducer {
		r.available = make([]atomic.Int64, cfg.Capacity)
		for i := range r.available {
			r.available[i].Store(seq.InitialValue)
		}
	}
	r.barrier = seq.NewBarrier(r.cursor)
	return r
}

// TryPublish claims the next sequence, writes the event into its slot and
// publishes it. It returns false when the buffer is full, i.e. publishing
// would lap the slowest consumer.
func (r *RingBuffer) TryPublish(ev *schema.Event) bool {
	if r.multiProducer {
		return r.tryPublishMulti(ev)
	}
	next := r.cursor.Load() + 1
	if next-r.capacity > r.consumer.Load() {
		return false
	}
	r.slots[next&r.mask].Store(ev)
	r.cursor.Store(next)
	return true
}

func (r *RingBuffer) tryPublishMulti(ev *schema.Event) bool {
	for {
		current := r.cursor.Load()
		next := current + 1
		if next-r.capacity > r.consumer.Load() {
			return false
		}
		if r.cursor.CompareAndSwap(current, next) {
			r.slots[next&r.mask].Store(ev)
			r.available[next&r.mask].Store(next)
			return true
		}
	}
}

// Publish blocks until the event is accepted, then signals blocked
// consumers.
func (r *RingBuffer) Publish(ev *schema.Event) {
	for !r.TryPublish(ev) {
		runtime.Gosched()
	}
	r.strategy.SignalAll()
}

// TryConsume returns the next event, or nil when none is available.
func (r *RingBuffer) TryConsume() *schema.Event {
	for {
		current := r.claimBase()
		target := current + 1
		if r.barrier.TryWaitFor(target) < target {
			return nil
		}
		if r.multiProducer && r.available[target&r.mask].Load() != target {
			return nil
		}
		if r.multiConsumer && !r.readNext.CompareAndSwap(current, target) {
			continue
		}
		return r.finishRead(target)
	}
}

// Consume blocks with the configured wait strategy until an event is
// available and returns it.
func (r *RingBuffer) Consume() *schema.Event {
	for {
		current := r.claimBase()
		target := current + 1
		if r.multiConsumer {
			if !r.readNext.CompareAndSwap(current, target) {
				continue
			}
		}
		r.strategy.WaitFor(target, r.barrier)
		if r.multiProducer {
			for r.available[target&r.mask].Load() != target {
				runtime.Gosched()
			}
		}
		return r.finishRead(target)
	}
}

func (r *RingBuffer) claimBase() int64 {
	if r.multiConsumer {
		return r.readNext.Load()
	}
	return r.consumer.Load()
}

// finishRead takes the event out of the slot and advances the gating
// consumer sequence. In multi-consumer mode completions are applied in
// sequence order so a slot is never recycled before its reader is done.
func (r *RingBuffer) finishRead(target int64) *schema.Event {
	ev := r.slots[target&r.mask].Swap(nil)
	if r.multiConsumer {
		for !r.consumer.CompareAndSwap(target-1, target) {
			runtime.Gosched()
		}
	} else {
		r.consumer.Store(target)
	}
	return ev
}

// Empty reports whether no events are available for consumption.
func (r *RingBuffer) Empty() bool {
	return r.consumer.Load() >= r.cursor.Load()
}

// Size returns the approximate number of events awaiting consumption.
func (r *RingBuffer) Size() int {
	diff := r.cursor.Load() - r.consumer.Load()
	if diff < 0 {
		return 0
	}
	return int(diff)
}

// Capacity returns the fixed slot count.
func (r *RingBuffer) Capacity() int {
	return int(r.capacity)
}

// Cursor returns the highest published (single-producer) or claimed
// (multi-producer) sequence.
func (r *RingBuffer) Cursor() int64 {
	return r.cursor.Load()
}

// ConsumerSequence returns the highest fully processed sequence.
func (r *RingBuffer) ConsumerSequence() int64 {
	return r.consumer.Load()
}

// SignalAll wakes consumers blocked on the wait strategy.
func (r *RingBuffer) SignalAll() {
	r.strategy.SignalAll()
}

// Stats is a point-in-time view of the ring state.
type Stats struct {
	Size        int
	Capacity    int
	Cursor      int64
	Consumer    int64
	Utilization float64
}

// Statistics captures the current ring state.
func (r *RingBuffer) Statistics() Stats {
	size := r.Size()
	return Stats{
		Size:        size,
		Capacity:    int(r.capacity),
		Cursor:      r.cursor.Load(),
		Consumer:    r.consumer.Load(),
		Utilization: float64(size) / float64(r.capacity) * 100,
	}
}
