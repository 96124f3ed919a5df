package seq

import "runtime"

// Barrier observes the producer cursor and zero or more dependency
// sequences. A consumer behind the barrier never advances past the slowest
// dependency.
type Barrier struct {
	cursor *Sequence
	deps   []*Sequence
}

// NewBarrier creates a barrier over the producer cursor and optional
// dependency sequences.
func NewBarrier(cursor *Sequence, deps ...*Sequence) *Barrier {
	return &Barrier{cursor: cursor, deps: deps}
}

// Cursor returns the current producer cursor value.
func (b *Barrier) Cursor() int64 {
	return b.cursor.Load()
}

// TryWaitFor returns the greatest available sequence >= target, or -1 when
// the target has not been published or a dependency lags behind it.
func (b *Barrier) TryWaitFor(target int64) int64 {
	available := b.cursor.Load()
	if available < target {
		return -1
	}
	available = b.minDependency(available)
	if available < target {
		return -1
	}
	return available
}

// WaitFor spins until the target sequence is available and returns the
// greatest available sequence bounded by the dependencies.
func (b *Barrier) WaitFor(target int64) int64 {
	const spinTries = 100
	for {
		available := b.cursor.Load()
		if available >= target {
			if available = b.minDependency(available); available >= target {
				return available
			}
		}
		for i := 0; i < spinTries; i++ {
			available = b.cursor.Load()
			if available >= target {
				break
			}
		}
		if available < target {
			runtime.Gosched()
		}
	}
}

func (b *Barrier) minDependency(available int64) int64 {
	min := available
	for _, dep := range b.deps {
		if v := dep.Load(); v < min {
			min = v
		}
	}
	return min
}
