package book

import (
	"math"
	"sync/atomic"

	"main/internal/atomicf"
	"main/internal/schema"
)

const epsilon = 1e-8

// PriceLevel holds every resting order at one price on one side. Orders are
// inserted at the head of a lock-free chain; matching walks the chain into a
// slice and consumes it oldest-first so price-time priority holds even
// though insertion is LIFO. Filled and cancelled orders stay linked until a
// compaction pass.
type PriceLevel struct {
	price float64

	head     atomic.Pointer[Order]
	totalQty atomicf.Float64
	count    atomic.Int64
}

// NewPriceLevel creates an empty level at the given price.
func NewPriceLevel(price float64) *PriceLevel {
	return &PriceLevel{price: price}
}

// Price returns the level price.
func (l *PriceLevel) Price() float64 { return l.price }

// TotalQty returns the aggregate resting quantity. It may briefly
// over-approximate during concurrent match/cancel but converges.
func (l *PriceLevel) TotalQty() float64 { return l.totalQty.Load() }

// OrderCount returns the number of orders added to the level, less those
// cancelled and the filled orders that Compact has removed.
func (l *PriceLevel) OrderCount() int { return int(l.count.Load()) }

// HasOrders reports whether the level still carries resting quantity.
func (l *PriceLevel) HasOrders() bool {
	return l.count.Load() > 0 && l.totalQty.Load() > epsilon
}

// Add links an order into the level. The order price must equal the level
// price within tolerance.
func (l *PriceLevel) Add(o *Order) bool {
	if o == nil || math.Abs(o.Price-l.price) > epsilon {
		return false
	}
	for {
		head := l.head.Load()
		o.next.Store(head)
		if l.head.CompareAndSwap(head, o) {
			break
		}
	}
	l.totalQty.Add(o.Remaining())
	l.count.Add(1)
	return true
}

// Match consumes up to qty from orders opposite the incoming side, honoring
// the price bounds (maxPrice for incoming buys, minPrice for incoming
// sells; zero disables the bound). It returns the matched quantity and the
// orders it touched, oldest first.
func (l *PriceLevel) Match(incoming schema.Side, qty, maxPrice, minPrice float64) (float64, []*Order) {
	if incoming == schema.SideBuy && maxPrice > 0 && l.price > maxPrice+epsilon {
		return 0, nil
	}
	if incoming == schema.SideSell && minPrice > 0 && l.price < minPrice-epsilon {
		return 0, nil
	}

	// Head insertion makes the chain newest-first. Collect candidates and
	// consume them in reverse so the oldest order matches first.
	var candidates []*Order
	for o := l.head.Load(); o != nil; o = o.next.Load() {
		if o.Side != incoming && o.Matchable() {
			candidates = append(candidates, o)
		}
	}

	matched := 0.0
	remaining := qty
	var touched []*Order
	for i := len(candidates) - 1; i >= 0 && remaining > epsilon; i-- {
		o := candidates[i]
		fill := o.TryFill(remaining)
		if fill <= 0 {
			continue
		}
		matched += fill
		remaining -= fill
		l.totalQty.Add(-fill)
		touched = append(touched, o)
	}
	return matched, touched
}

// Cancel marks the order with the given id cancelled and removes its
// remaining quantity from the aggregate. Linear scan is acceptable: cancels
// are rare relative to matches and bounded by level depth.
func (l *PriceLevel) Cancel(id uint64) bool {
	for o := l.head.Load(); o != nil; o = o.next.Load() {
		if o.ID != id {
			continue
		}
		remaining, ok := o.cancel()
		if !ok {
			return false
		}
		l.totalQty.Add(-remaining)
		l.count.Add(-1)
		return true
	}
	return false
}

// Compact unlinks filled and cancelled orders from the chain and returns
// the number removed. Callers must hold the side's writer lock: compaction
// rewrites chain links and must not race other mutators.
func (l *PriceLevel) Compact() int {
	removed := 0
	filled := 0
	var keep []*Order
	for o := l.head.Load(); o != nil; o = o.next.Load() {
		switch o.Status() {
		case OrderFilled:
			removed++
			filled++
		case OrderCancelled:
			removed++
		default:
			keep = append(keep, o)
		}
	}
	if removed == 0 {
		return 0
	}
	// Cancelled orders already left the count; filled ones leave it here.
	l.count.Add(-int64(filled))
	var head *Order
	for i := len(keep) - 1; i >= 0; i-- {
		keep[i].next.Store(head)
		head = keep[i]
	}
	l.head.Store(head)
	return removed
}

// OldestPriority returns the creation stamp of the oldest resting order, or
// zero when the level is empty.
func (l *PriceLevel) OldestPriority() int64 {
	oldest := int64(0)
	for o := l.head.Load(); o != nil; o = o.next.Load() {
		if !o.Matchable() {
			continue
		}
		if oldest == 0 || o.Priority < oldest {
			oldest = o.Priority
		}
	}
	return oldest
}
