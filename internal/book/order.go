package book

import (
	"sync/atomic"

	"main/internal/atomicf"
	"main/internal/schema"
)

// OrderStatus tracks the lifecycle of a resting order.
type OrderStatus uint32

const (
	OrderActive OrderStatus = iota
	OrderPartial
	OrderFilled
	OrderCancelled
)

// String returns the status name for logging.
func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "ACTIVE"
	case OrderPartial:
		return "PARTIAL"
	case OrderFilled:
		return "FILLED"
	case OrderCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Order is a resting order in the book. Remaining and status are mutated by
// concurrent matchers through CAS; the rest is immutable after creation.
type Order struct {
	ID       uint64
	Symbol   string
	Side     schema.Side
	Price    float64
	Original float64
	Priority int64

	remaining atomicf.Float64
	status    atomic.Uint32
	next      atomic.Pointer[Order]
}

// NewOrder creates an active order with the given creation-time priority.
func NewOrder(id uint64, symbol string, side schema.Side, price, qty float64, priority int64) *Order {
	o := &Order{
		ID:       id,
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Original: qty,
		Priority: priority,
	}
	o.remaining.Store(qty)
	return o
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.remaining.Load()
}

// Status returns the current lifecycle state.
func (o *Order) Status() OrderStatus {
	return OrderStatus(o.status.Load())
}

// Matchable reports whether the order can still take fills.
func (o *Order) Matchable() bool {
	s := o.Status()
	return (s == OrderActive || s == OrderPartial) && o.remaining.Load() > 0
}

// TryFill consumes up to requested quantity and returns the amount filled.
// Remaining is decremented by CAS; on contention the read/compute/swap cycle
// retries. Status follows the new remaining: zero means filled.
func (o *Order) TryFill(requested float64) float64 {
	for {
		current := o.remaining.Load()
		if current <= 0 || requested <= 0 {
			return 0
		}
		fill := requested
		if current < fill {
			fill = current
		}
		next := current - fill
		if !o.remaining.CompareAndSwap(current, next) {
			continue
		}
		status := OrderPartial
		if next < epsilon {
			status = OrderFilled
		}
		for {
			s := o.status.Load()
			if OrderStatus(s) == OrderCancelled || OrderStatus(s) == OrderFilled {
				break
			}
			if o.status.CompareAndSwap(s, uint32(status)) {
				break
			}
		}
		return fill
	}
}

// cancel flips the status to CANCELLED from any non-terminal state and
// claims the quantity still resting. The claim goes through the same CAS
// field fills use, so an in-flight match and the cancel split the quantity
// between them without double counting.
func (o *Order) cancel() (float64, bool) {
	for {
		s := o.status.Load()
		switch OrderStatus(s) {
		case OrderFilled, OrderCancelled:
			return 0, false
		}
		if o.status.CompareAndSwap(s, uint32(OrderCancelled)) {
			for {
				rem := o.remaining.Load()
				if rem <= 0 {
					return 0, true
				}
				if o.remaining.CompareAndSwap(rem, 0) {
					return rem, true
				}
			}
		}
	}
}
