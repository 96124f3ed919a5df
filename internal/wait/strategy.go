package wait

import (
	"runtime"
	"sync"
	"time"

	"main/internal/seq"
)

// Kind selects a wait strategy at configuration time.
type Kind uint16

const (
	KindYield Kind = iota
	KindBusy
	KindSleep
	KindBlock
)

// ParseKind maps a config string onto a Kind, defaulting to yield.
func ParseKind(name string) Kind {
	switch name {
	case "busy":
		return KindBusy
	case "sleep":
		return KindSleep
	case "block":
		return KindBlock
	default:
		return KindYield
	}
}

// Strategy is the policy by which a consumer waits for an unpublished
// sequence. WaitFor returns the greatest available sequence >= target.
// SignalAll wakes blocked consumers and is a no-op for non-blocking
// strategies.
type Strategy interface {
	WaitFor(target int64, barrier *seq.Barrier) int64
	SignalAll()
}

// New creates the strategy for the given kind with its default tuning.
func New(kind Kind) Strategy {
	switch kind {
	case KindBusy:
		return &BusySpin{}
	case KindSleep:
		return NewSleeping(200, 100, time.Microsecond, time.Millisecond)
	case KindBlock:
		return NewBlocking()
	default:
		return NewYielding(100)
	}
}

// BusySpin polls the barrier in a tight loop. Lowest latency, a full core
// per waiting consumer.
type BusySpin struct{}

// WaitFor spins until the target is available.
func (BusySpin) WaitFor(target int64, barrier *seq.Barrier) int64 {
	for {
		if available := barrier.TryWaitFor(target); available >= target {
			return available
		}
	}
}

// SignalAll is a no-op: spinning consumers never sleep.
func (BusySpin) SignalAll() {}

// Yielding spins for a bounded number of iterations, then yields the
// processor between polls.
type Yielding struct {
	spinTries int
}

// NewYielding creates a yielding strategy that spins spinTries times before
// each yield.
func NewYielding(spinTries int) *Yielding {
	if spinTries <= 0 {
		spinTries = 100
	}
	return &Yielding{spinTries: spinTries}
}

// WaitFor spins then yields until the target is available.
func (y *Yielding) WaitFor(target int64, barrier *seq.Barrier) int64 {
	counter := y.spinTries
	for {
		if available := barrier.TryWaitFor(target); available >= target {
			return available
		}
		if counter > 0 {
			counter--
			continue
		}
		runtime.Gosched()
	}
}

// SignalAll is a no-op.
func (y *Yielding) SignalAll() {}

// Sleeping escalates spin -> yield -> sleep, doubling the sleep interval up
// to a cap. Lowest CPU cost, highest latency of the non-blocking strategies.
type Sleeping struct {
	spinTries  int
	yieldTries int
	minSleep   time.Duration
	maxSleep   time.Duration
}

// NewSleeping creates a sleeping strategy with explicit phase bounds.
func NewSleeping(spinTries, yieldTries int, minSleep, maxSleep time.Duration) *Sleeping {
	if spinTries <= 0 {
		spinTries = 200
	}
	if yieldTries <= 0 {
		yieldTries = 100
	}
	if minSleep <= 0 {
		minSleep = time.Microsecond
	}
	if maxSleep < minSleep {
		maxSleep = minSleep
	}
	return &Sleeping{
		spinTries:  spinTries,
		yieldTries: yieldTries,
		minSleep:   minSleep,
		maxSleep:   maxSleep,
	}
}

// WaitFor escalates through spin, yield and backoff-sleep phases until the
// target is available.
func (s *Sleeping) WaitFor(target int64, barrier *seq.Barrier) int64 {
	spin := s.spinTries
	yield := s.yieldTries
	sleep := s.minSleep
	for {
		if available := barrier.TryWaitFor(target); available >= target {
			return available
		}
		switch {
		case spin > 0:
			spin--
		case yield > 0:
			yield--
			runtime.Gosched()
		default:
			time.Sleep(sleep)
			if sleep *= 2; sleep > s.maxSleep {
				sleep = s.maxSleep
			}
		}
	}
}

// SignalAll is a no-op.
func (s *Sleeping) SignalAll() {}

// Blocking parks consumers on a condition variable. Producers must call
// SignalAll after publishing.
type Blocking struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewBlocking creates a condition-variable strategy.
func NewBlocking() *Blocking {
	b := &Blocking{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// WaitFor blocks on the condition variable until the target is available.
func (b *Blocking) WaitFor(target int64, barrier *seq.Barrier) int64 {
	if available := barrier.TryWaitFor(target); available >= target {
		return available
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if available := barrier.TryWaitFor(target); available >= target {
			return available
		}
		b.cond.Wait()
	}
}

// SignalAll wakes every blocked consumer.
func (b *Blocking) SignalAll() {
	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}
