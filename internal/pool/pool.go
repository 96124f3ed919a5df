package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"main/internal/clock"
	"main/internal/schema"
)

// Config bounds one typed arena. Each growth step multiplies the arena size
// by GrowthFactor, capped at MaxCells, after which Acquire fails and the
// caller must treat the run as over-committed.
type Config struct {
	InitialCells int
	GrowthFactor int
	MaxCells     int
}

func (c *Config) validate() {
	if c.InitialCells <= 0 {
		c.InitialCells = 1024
	}
	if c.GrowthFactor < 2 {
		c.GrowthFactor = 2
	}
	if c.MaxCells < c.InitialCells {
		c.MaxCells = c.InitialCells * 64
	}
}

// cell wraps an event with an intrusive free-list link. The event MUST stay
// the first field: Release recovers the cell from the event address.
type cell struct {
	ev   schema.Event
	next unsafe.Pointer
	_    [24]byte
}

func cellOf(ev *schema.Event) *cell {
	return (*cell)(unsafe.Pointer(ev))
}

// arena is a growing chain of cell chunks with a lock-free LIFO free list.
// Chunks are never released while the engine lives, so a live cell address
// never moves and ABA on the free-list head cannot resurrect freed memory.
type arena struct {
	cfg    Config
	head   unsafe.Pointer
	mu     sync.Mutex
	chunks [][]cell
	total  int
}

func newArena(cfg Config) *arena {
	cfg.validate()
	a := &arena{cfg: cfg}
	a.grow(cfg.InitialCells)
	return a
}

func (a *arena) grow(count int) bool {
	if a.total >= a.cfg.MaxCells {
		return false
	}
	if a.total+count > a.cfg.MaxCells {
		count = a.cfg.MaxCells - a.total
	}
	chunk := make([]cell, count)
	a.chunks = append(a.chunks, chunk)
	a.total += count
	for i := range chunk {
		a.push(&chunk[i])
	}
	return true
}

func (a *arena) push(c *cell) {
	for {
		head := atomic.LoadPointer(&a.head)
		atomic.StorePointer(&c.next, head)
		if atomic.CompareAndSwapPointer(&a.head, head, unsafe.Pointer(c)) {
			return
		}
		runtime.Gosched()
	}
}

func (a *arena) pop() *cell {
	backoff := 1
	for {
		head := atomic.LoadPointer(&a.head)
		if head == nil {
			return nil
		}
		c := (*cell)(head)
		next := atomic.LoadPointer(&c.next)
		if atomic.CompareAndSwapPointer(&a.head, head, next) {
			return c
		}
		for i := 0; i < backoff; i++ {
		}
		if backoff < 1024 {
			backoff <<= 1
		} else {
			runtime.Gosched()
		}
	}
}

// acquire pops a free cell, growing the arena when the free list drains.
// Returns nil once the growth cap is reached and every cell is live.
func (a *arena) acquire() *cell {
	if c := a.pop(); c != nil {
		return c
	}
	a.mu.Lock()
	grown := a.grow(a.total * (a.cfg.GrowthFactor - 1))
	a.mu.Unlock()
	if !grown {
		return a.pop()
	}
	return a.pop()
}

// Pool owns one typed arena per event variant and stamps headers from its
// clock. Callers hold the returned pointer only until Release.
type Pool struct {
	clk     *clock.Clock
	bars    *arena
	signals *arena
	fills   *arena

	acquired atomic.Uint64
	released atomic.Uint64
	failures atomic.Uint64
}

// New creates a pool with the same config applied to each variant arena.
func New(clk *clock.Clock, cfg Config) *Pool {
	if clk == nil {
		clk = clock.New()
	}
	return &Pool{
		clk:     clk,
		bars:    newArena(cfg),
		signals: newArena(cfg),
		fills:   newArena(cfg),
	}
}

func (p *Pool) stamp(ev *schema.Event, t schema.EventType) {
	ev.Reset()
	ev.Header.Type = t
	ev.Header.WallNanos = p.clk.WallNanos()
	ev.Header.MonoNanos = p.clk.MonoNanos()
	ev.Header.CreatedNanos = p.clk.NextCreation()
}

// AcquireBar constructs a bar event in place. Returns nil on exhaustion.
func (p *Pool) AcquireBar(bar schema.Bar) *schema.Event {
	c := p.bars.acquire()
	if c == nil {
		p.failures.Add(1)
		return nil
	}
	p.acquired.Add(1)
	p.stamp(&c.ev, schema.EventBar)
	c.ev.Bar = bar
	return &c.ev
}

// AcquireSignal constructs a signal event in place. Returns nil on
// exhaustion.
func (p *Pool) AcquireSignal(sig schema.Signal) *schema.Event {
	c := p.signals.acquire()
	if c == nil {
		p.failures.Add(1)
		return nil
	}
	p.acquired.Add(1)
	p.stamp(&c.ev, schema.EventSignal)
	c.ev.Signal = sig
	return &c.ev
}

// AcquireFill constructs a fill event in place. Returns nil on exhaustion.
func (p *Pool) AcquireFill(fill schema.Fill) *schema.Event {
	c := p.fills.acquire()
	if c == nil {
		p.failures.Add(1)
		return nil
	}
	p.acquired.Add(1)
	p.stamp(&c.ev, schema.EventFill)
	c.ev.Fill = fill
	return &c.ev
}

// Release returns the event to the arena owning its variant. The variant
// tag drives the dispatch; there is no downcasting and a released pointer
// must not be used again.
func (p *Pool) Release(ev *schema.Event) {
	if ev == nil {
		return
	}
	t := ev.Header.Type
	ev.Reset()
	p.released.Add(1)
	switch t {
	case schema.EventBar:
		p.bars.push(cellOf(ev))
	case schema.EventSignal:
		p.signals.push(cellOf(ev))
	case schema.EventFill:
		p.fills.push(cellOf(ev))
	default:
		p.released.Add(^uint64(0))
	}
}

// Stats is a point-in-time view of pool traffic.
type Stats struct {
	Acquired uint64
	Released uint64
	Failures uint64
	Live     uint64
}

// Statistics captures current pool counters.
func (p *Pool) Statistics() Stats {
	acquired := p.acquired.Load()
	released := p.released.Load()
	live := uint64(0)
	if acquired > released {
		live = acquired - released
	}
	return Stats{
		Acquired: acquired,
		Released: released,
		Failures: p.failures.Load(),
		Live:     live,
	}
}
