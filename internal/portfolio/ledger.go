package portfolio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/atomicf"
	"main/internal/schema"
	"main/pkg/exception"
)

// TradeRecord is one entry in the trade history.
type TradeRecord struct {
	Symbol     string
	Side       schema.Side
	Qty        float64
	Price      float64
	Commission float64
	WallNanos  int64
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	WallNanos int64
	Equity    float64
}

// Ledger maintains per-symbol positions, available cash and portfolio
// aggregates. The position map is RW-locked; individual positions are
// lock-free. Aggregates are eventually consistent with positions; readers
// needing coherence take SnapshotAll.
type Ledger struct {
	initialCapital float64

	mu             sync.RWMutex
	positions      map[string]*Position
	closedRealized float64

	cash         atomicf.Float64
	cachedEquity atomicf.Float64
	cacheValid   atomic.Bool

	histMu sync.Mutex
	equity []EquityPoint
	trades []TradeRecord
}

// NewLedger creates a ledger seeded with initial capital. The equity curve
// starts with the initial capital as its first point.
func NewLedger(initialCapital float64) *Ledger {
	l := &Ledger{
		initialCapital: initialCapital,
		positions:      make(map[string]*Position),
	}
	l.cash.Store(initialCapital)
	l.equity = append(l.equity, EquityPoint{WallNanos: time.Now().UnixNano(), Equity: initialCapital})
	return l
}

// InitialCapital returns the starting capital.
func (l *Ledger) InitialCapital() float64 { return l.initialCapital }

// AvailableCash returns the current cash balance.
func (l *Ledger) AvailableCash() float64 { return l.cash.Load() }

// OnBar marks any open position for the bar's symbol to its close and
// appends the resulting equity to the curve.
func (l *Ledger) OnBar(bar schema.Bar, wallNanos int64) {
	l.mu.RLock()
	pos, ok := l.positions[bar.Symbol]
	l.mu.RUnlock()
	if !ok {
		return
	}
	pos.UpdateMark(bar.Close)
	l.cacheValid.Store(false)

	equity := l.TotalEquity()
	l.histMu.Lock()
	l.equity = append(l.equity, EquityPoint{WallNanos: wallNanos, Equity: equity})
	l.histMu.Unlock()
}

// ApplyFill settles one fill: cash moves by the signed notional minus
// commission, the trade is recorded, and the position adjusts by the signed
// quantity. A position driven flat is dropped from the map.
func (l *Ledger) ApplyFill(fill schema.Fill, wallNanos int64) {
	direction := 1.0
	if fill.Side == schema.SideSell {
		direction = -1.0
	}
	l.cash.Add(-direction*fill.Qty*fill.Price - fill.Commission)

	l.histMu.Lock()
	l.trades = append(l.trades, TradeRecord{
		Symbol:     fill.Symbol,
		Side:       fill.Side,
		Qty:        fill.Qty,
		Price:      fill.Price,
		Commission: fill.Commission,
		WallNanos:  wallNanos,
	})
	l.histMu.Unlock()

	pos := l.getOrCreate(fill.Symbol)
	realized := pos.Adjust(direction*fill.Qty, fill.Price)
	if pos.Flat() {
		l.retireFlat(fill.Symbol, pos, realized)
	}
	l.cacheValid.Store(false)
}

func (l *Ledger) getOrCreate(symbol string) *Position {
	l.mu.RLock()
	pos, ok := l.positions[symbol]
	l.mu.RUnlock()
	if ok {
		return pos
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok = l.positions[symbol]; ok {
		return pos
	}
	pos = newPosition(symbol, time.Now())
	l.positions[symbol] = pos
	return pos
}

// retireFlat removes a closed position, folding its realized PnL history
// into the ledger-level counter so closing a position does not erase it.
func (l *Ledger) retireFlat(symbol string, pos *Position, _ float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.positions[symbol]; ok && current == pos && pos.Flat() {
		l.closedRealized += pos.RealizedPnL()
		delete(l.positions, symbol)
	}
}

// Snapshot returns a copy of the position for a symbol, or
// exception.ErrPositionUnknown when none is open.
func (l *Ledger) Snapshot(symbol string) (View, error) {
	l.mu.RLock()
	pos, ok := l.positions[symbol]
	l.mu.RUnlock()
	if !ok {
		return View{}, exception.ErrPositionUnknown
	}
	return pos.Snapshot(), nil
}

// SnapshotAll returns copies of every open position.
func (l *Ledger) SnapshotAll() []View {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]View, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos.Snapshot())
	}
	return out
}

// PositionCount returns open, long and short position counts.
func (l *Ledger) PositionCount() (total, long, short int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, pos := range l.positions {
		qty := pos.Qty()
		if math.Abs(qty) < flatTolerance {
			continue
		}
		total++
		if qty > 0 {
			long++
		} else {
			short++
		}
	}
	return total, long, short
}

// TotalMarketValue sums |qty * mark| over open positions.
func (l *Ledger) TotalMarketValue() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, pos := range l.positions {
		total += pos.MarketValue()
	}
	return total
}

// TotalEquity returns cash plus total market value. The derived value is
// cached behind a validity flag invalidated by every mutation.
func (l *Ledger) TotalEquity() float64 {
	if l.cacheValid.Load() {
		return l.cachedEquity.Load()
	}
	equity := l.cash.Load() + l.TotalMarketValue()
	l.cachedEquity.Store(equity)
	l.cacheValid.Store(true)
	return equity
}

// TotalUnrealizedPnL sums unrealized PnL over open positions.
func (l *Ledger) TotalUnrealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := 0.0
	for _, pos := range l.positions {
		total += pos.UnrealizedPnL()
	}
	return total
}

// TotalRealizedPnL sums realized PnL over open and retired positions.
func (l *Ledger) TotalRealizedPnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := l.closedRealized
	for _, pos := range l.positions {
		total += pos.RealizedPnL()
	}
	return total
}

// EquityCurve returns a copy of the equity samples.
func (l *Ledger) EquityCurve() []EquityPoint {
	l.histMu.Lock()
	defer l.histMu.Unlock()
	out := make([]EquityPoint, len(l.equity))
	copy(out, l.equity)
	return out
}

// TradeHistory returns a copy of the recorded trades.
func (l *Ledger) TradeHistory() []TradeRecord {
	l.histMu.Lock()
	defer l.histMu.Unlock()
	out := make([]TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}
