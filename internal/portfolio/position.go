package portfolio

import (
	"math"
	"time"

	"main/internal/atomicf"
)

const flatTolerance = 1e-8

// Position tracks one symbol's holdings. Monetary fields are atomic
// float64s so markers and fill appliers can run concurrently; the symbol
// and open time are immutable after creation.
type Position struct {
	Symbol   string
	OpenTime time.Time

	qty        atomicf.Float64
	entryPrice atomicf.Float64
	markPrice  atomicf.Float64
	unrealized atomicf.Float64
	realized   atomicf.Float64
}

func newPosition(symbol string, now time.Time) *Position {
	return &Position{Symbol: symbol, OpenTime: now}
}

// Qty returns the signed quantity: positive long, negative short, zero
// flat.
func (p *Position) Qty() float64 { return p.qty.Load() }

// EntryPrice returns the average entry price.
func (p *Position) EntryPrice() float64 { return p.entryPrice.Load() }

// MarkPrice returns the latest mark price.
func (p *Position) MarkPrice() float64 { return p.markPrice.Load() }

// UnrealizedPnL returns the floating profit or loss at the current mark.
func (p *Position) UnrealizedPnL() float64 { return p.unrealized.Load() }

// RealizedPnL returns the cumulative locked-in profit or loss.
func (p *Position) RealizedPnL() float64 { return p.realized.Load() }

// Flat reports whether the position is closed within tolerance.
func (p *Position) Flat() bool { return math.Abs(p.qty.Load()) < flatTolerance }

// MarketValue returns |qty * mark|.
func (p *Position) MarketValue() float64 {
	return math.Abs(p.qty.Load() * p.markPrice.Load())
}

// UpdateMark stores the latest mark price and recomputes unrealized PnL as
// (mark - entry) * qty. A flat position always carries zero unrealized PnL.
func (p *Position) UpdateMark(price float64) {
	p.markPrice.Store(price)
	qty := p.qty.Load()
	if math.Abs(qty) < flatTolerance {
		p.unrealized.Store(0)
		return
	}
	entry := p.entryPrice.Load()
	p.unrealized.Store((price - entry) * qty)
}

// Adjust applies a signed quantity delta at a trade price and returns the
// realized PnL of any closed portion.
//
// Direction-reducing deltas realize (price - entry) * closedQty * sign(old).
// Same-direction increases re-weight the entry price by signed notional.
// A direction flip resets the entry price to the trade price for the
// surviving quantity. Quantity itself advances by CAS and retries from a
// fresh read on contention.
func (p *Position) Adjust(delta, price float64) float64 {
	for {
		oldQty := p.qty.Load()
		entry := p.entryPrice.Load()
		newQty := oldQty + delta

		realized := 0.0
		newEntry := entry
		switch {
		case math.Abs(oldQty) < flatTolerance:
			newEntry = price
		case oldQty*delta >= 0:
			// Same direction: notional-weighted average entry.
			newEntry = (oldQty*entry + delta*price) / newQty
		default:
			closed := math.Min(math.Abs(delta), math.Abs(oldQty))
			sign := 1.0
			if oldQty < 0 {
				sign = -1.0
			}
			realized = (price - entry) * closed * sign
			if oldQty*newQty < 0 {
				// Flip: the residual opens at the trade price.
				newEntry = price
			}
		}

		if math.Abs(newQty) < flatTolerance {
			newQty = 0
		}
		if !p.qty.CompareAndSwap(oldQty, newQty) {
			continue
		}
		p.entryPrice.Store(newEntry)
		if realized != 0 {
			p.realized.Add(realized)
		}
		if newQty == 0 {
			p.unrealized.Store(0)
		} else {
			mark := p.markPrice.Load()
			if mark == 0 {
				mark = price
				p.markPrice.Store(mark)
			}
			p.unrealized.Store((mark - newEntry) * newQty)
		}
		return realized
	}
}

// View is an eventually-consistent copy of a position, safe to share
// across threads.
type View struct {
	Symbol        string
	Qty           float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	RealizedPnL   float64
	MarketValue   float64
	OpenTime      time.Time
}

// Snapshot copies the position's atomic fields. Fields are individually
// atomic; cross-field consistency is eventual.
func (p *Position) Snapshot() View {
	return View{
		Symbol:        p.Symbol,
		Qty:           p.qty.Load(),
		EntryPrice:    p.entryPrice.Load(),
		MarkPrice:     p.markPrice.Load(),
		UnrealizedPnL: p.unrealized.Load(),
		RealizedPnL:   p.realized.Load(),
		MarketValue:   p.MarketValue(),
		OpenTime:      p.OpenTime,
	}
}
