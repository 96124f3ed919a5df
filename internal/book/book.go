package book

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"main/internal/atomicf"
	"main/internal/clock"
	"main/internal/schema"
)

// Config fixes an order book's parameters at construction.
type Config struct {
	Symbol      string
	TickSize    float64
	DepthLevels int
	EnableStats bool
	Clock       *clock.Clock
}

func (c *Config) validate() {
	if c.TickSize <= 0 {
		c.TickSize = 0.01
	}
	if c.DepthLevels < 1 {
		c.DepthLevels = 5
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// MatchResult reports the outcome of one matching operation.
type MatchResult struct {
	Matched       float64
	AvgPrice      float64
	OrdersMatched int
	FullyFilled   bool
	RestedQty     float64
	RestedID      uint64
}

// ladder is one side of the book: a price-keyed level map plus a sorted
// price index, guarded by a writer lock. Levels themselves are lock-free.
type ladder struct {
	mu     sync.RWMutex
	levels map[float64]*PriceLevel
	prices []float64
	desc   bool
}

func newLadder(desc bool) *ladder {
	return &ladder{levels: make(map[float64]*PriceLevel), desc: desc}
}

func (ld *ladder) getOrCreate(price float64) *PriceLevel {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	if lvl, ok := ld.levels[price]; ok {
		return lvl
	}
	lvl := NewPriceLevel(price)
	ld.levels[price] = lvl
	idx := sort.SearchFloat64s(ld.prices, price)
	ld.prices = append(ld.prices, 0)
	copy(ld.prices[idx+1:], ld.prices[idx:])
	ld.prices[idx] = price
	return lvl
}

func (ld *ladder) get(price float64) (*PriceLevel, bool) {
	ld.mu.RLock()
	lvl, ok := ld.levels[price]
	ld.mu.RUnlock()
	return lvl, ok
}

// inPriority returns the level prices in matching priority order: ascending
// for asks, descending for bids.
func (ld *ladder) inPriority() []float64 {
	ld.mu.RLock()
	out := make([]float64, len(ld.prices))
	copy(out, ld.prices)
	ld.mu.RUnlock()
	if ld.desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// best returns the highest-priority level with resting quantity.
func (ld *ladder) best() (*PriceLevel, bool) {
	for _, price := range ld.inPriority() {
		if lvl, ok := ld.get(price); ok && lvl.HasOrders() {
			return lvl, true
		}
	}
	return nil, false
}

func (ld *ladder) compact() int {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	removed := 0
	kept := ld.prices[:0]
	for _, price := range ld.prices {
		lvl := ld.levels[price]
		removed += lvl.Compact()
		if lvl.HasOrders() {
			kept = append(kept, price)
		} else {
			delete(ld.levels, price)
		}
	}
	ld.prices = kept
	return removed
}

// Stats counts book operations when enabled in the config.
type Stats struct {
	OrdersAdded     atomic.Uint64
	OrdersCancelled atomic.Uint64
	Matches         atomic.Uint64
	VolumeMatched   atomicf.Float64
	ValueMatched    atomicf.Float64
}

type orderRef struct {
	side  schema.Side
	price float64
}

// OrderBook is a price-time-priority limit order book for one symbol.
// Ladder maps are writer-locked; individual price levels are lock-free.
type OrderBook struct {
	cfg  Config
	bids *ladder
	asks *ladder

	lookupMu sync.RWMutex
	lookup   map[uint64]orderRef

	cachedBid  atomicf.Float64
	cachedAsk  atomicf.Float64
	cacheValid atomic.Bool

	nextInternalID atomic.Uint64
	stats          Stats
}

// New creates an order book from the config.
func New(cfg Config) *OrderBook {
	cfg.validate()
	b := &OrderBook{
		cfg:    cfg,
		bids:   newLadder(true),
		asks:   newLadder(false),
		lookup: make(map[uint64]orderRef),
	}
	b.nextInternalID.Store(1 << 62)
	return b
}

// Config returns the construction-time configuration.
func (b *OrderBook) Config() Config { return b.cfg }

// RoundToTick rounds a price to the nearest tick.
func (b *OrderBook) RoundToTick(price float64) float64 {
	return math.Round(price/b.cfg.TickSize) * b.cfg.TickSize
}

func (b *OrderBook) sideLadder(side schema.Side) *ladder {
	if side == schema.SideBuy {
		return b.bids
	}
	return b.asks
}

// AddOrder rests a new order. Invalid price or quantity is rejected without
// mutation; duplicate ids are rejected.
func (b *OrderBook) AddOrder(id uint64, side schema.Side, price, qty float64) bool {
	if price <= 0 || qty <= 0 || (side != schema.SideBuy && side != schema.SideSell) {
		return false
	}
	price = b.RoundToTick(price)
	if price <= 0 {
		return false
	}

	b.lookupMu.Lock()
	if _, exists := b.lookup[id]; exists {
		b.lookupMu.Unlock()
		return false
	}
	b.lookup[id] = orderRef{side: side, price: price}
	b.lookupMu.Unlock()

	o := NewOrder(id, b.cfg.Symbol, side, price, qty, b.cfg.Clock.NextCreation())
	lvl := b.sideLadder(side).getOrCreate(price)
	if !lvl.Add(o) {
		b.lookupMu.Lock()
		delete(b.lookup, id)
		b.lookupMu.Unlock()
		return false
	}
	if b.cfg.EnableStats {
		b.stats.OrdersAdded.Add(1)
	}
	b.cacheValid.Store(false)
	return true
}

// MatchMarketOrder sweeps the opposite ladder in priority order. maxPrice
// bounds incoming buys and minPrice bounds incoming sells; zero disables
// the bound.
func (b *OrderBook) MatchMarketOrder(side schema.Side, qty, maxPrice, minPrice float64) MatchResult {
	var result MatchResult
	if qty <= 0 || (side != schema.SideBuy && side != schema.SideSell) {
		return result
	}
	opposite := b.asks
	if side == schema.SideSell {
		opposite = b.bids
	}

	remaining := qty
	notional := 0.0
	for _, price := range opposite.inPriority() {
		if remaining <= epsilon {
			break
		}
		if side == schema.SideBuy && maxPrice > 0 && price > maxPrice+epsilon {
			break
		}
		if side == schema.SideSell && minPrice > 0 && price < minPrice-epsilon {
			break
		}
		lvl, ok := opposite.get(price)
		if !ok || !lvl.HasOrders() {
			continue
		}
		matched, touched := lvl.Match(side, remaining, maxPrice, minPrice)
		if matched <= 0 {
			continue
		}
		remaining -= matched
		notional += matched * price
		result.Matched += matched
		result.OrdersMatched += len(touched)
	}

	if result.Matched > 0 {
		result.AvgPrice = notional / result.Matched
		if b.cfg.EnableStats {
			b.stats.Matches.Add(1)
			b.stats.VolumeMatched.Add(result.Matched)
			b.stats.ValueMatched.Add(notional)
		}
		b.cacheValid.Store(false)
	}
	result.FullyFilled = math.Abs(qty-result.Matched) < epsilon
	return result
}

// MatchLimitOrder matches against the opposite side up to the limit price
// and rests any residual quantity at that price under the given id.
func (b *OrderBook) MatchLimitOrder(id uint64, side schema.Side, price, qty float64) MatchResult {
	var result MatchResult
	if price <= 0 || qty <= 0 {
		return result
	}
	price = b.RoundToTick(price)
	maxPrice, minPrice := 0.0, 0.0
	if side == schema.SideBuy {
		maxPrice = price
	} else {
		minPrice = price
	}
	result = b.MatchMarketOrder(side, qty, maxPrice, minPrice)
	residual := qty - result.Matched
	if residual > epsilon {
		if b.AddOrder(id, side, price, residual) {
			result.RestedQty = residual
			result.RestedID = id
		}
	}
	return result
}

// CancelOrder cancels a resting order by id. Unknown ids return false.
func (b *OrderBook) CancelOrder(id uint64) bool {
	b.lookupMu.RLock()
	ref, ok := b.lookup[id]
	b.lookupMu.RUnlock()
	if !ok {
		return false
	}
	lvl, ok := b.sideLadder(ref.side).get(ref.price)
	if !ok {
		return false
	}
	if !lvl.Cancel(id) {
		return false
	}
	b.lookupMu.Lock()
	delete(b.lookup, id)
	b.lookupMu.Unlock()
	if b.cfg.EnableStats {
		b.stats.OrdersCancelled.Add(1)
	}
	b.cacheValid.Store(false)
	return true
}

// ModifyOrder atomically replaces an order's quantity and optionally its
// price via cancel-then-add. The caller id keeps working: a fresh internal
// id holds the new resting order and the lookup maps the caller id onto it.
func (b *OrderBook) ModifyOrder(id uint64, newQty, newPrice float64) bool {
	if newQty <= 0 {
		return false
	}
	b.lookupMu.RLock()
	ref, ok := b.lookup[id]
	b.lookupMu.RUnlock()
	if !ok {
		return false
	}
	price := ref.price
	if newPrice > 0 {
		price = b.RoundToTick(newPrice)
	}
	if !b.CancelOrder(id) {
		return false
	}
	internal := b.nextInternalID.Add(1)
	if !b.AddOrder(internal, ref.side, price, newQty) {
		return false
	}
	b.lookupMu.Lock()
	b.lookup[id] = b.lookup[internal]
	delete(b.lookup, internal)
	b.lookupMu.Unlock()
	return b.relabel(internal, id, price, ref.side)
}

// relabel rewrites the freshly rested order's id so cancels by the caller
// id find it in the level chain.
func (b *OrderBook) relabel(internal, caller uint64, price float64, side schema.Side) bool {
	lvl, ok := b.sideLadder(side).get(price)
	if !ok {
		return false
	}
	for o := lvl.head.Load(); o != nil; o = o.next.Load() {
		if o.ID == internal {
			o.ID = caller
			return true
		}
	}
	return false
}

func (b *OrderBook) refreshCache() (float64, float64) {
	bid, ask := 0.0, 0.0
	if lvl, ok := b.bids.best(); ok {
		bid = lvl.Price()
	}
	if lvl, ok := b.asks.best(); ok {
		ask = lvl.Price()
	}
	b.cachedBid.Store(bid)
	b.cachedAsk.Store(ask)
	b.cacheValid.Store(true)
	return bid, ask
}

// BestBid returns the highest bid price, or 0 when the side is empty.
func (b *OrderBook) BestBid() float64 {
	if b.cacheValid.Load() {
		return b.cachedBid.Load()
	}
	bid, _ := b.refreshCache()
	return bid
}

// BestAsk returns the lowest ask price, or 0 when the side is empty.
func (b *OrderBook) BestAsk() float64 {
	if b.cacheValid.Load() {
		return b.cachedAsk.Load()
	}
	_, ask := b.refreshCache()
	return ask
}

// Mid returns the midpoint of the best quotes, or 0 without a two-sided
// market.
func (b *OrderBook) Mid() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid > 0 && ask > 0 {
		return (bid + ask) / 2
	}
	return 0
}

// Spread returns best ask minus best bid, or 0 without a two-sided market.
func (b *OrderBook) Spread() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid > 0 && ask > 0 {
		return ask - bid
	}
	return 0
}

// DepthLevel is one aggregated price level in a snapshot.
type DepthLevel struct {
	Price      float64
	Qty        float64
	OrderCount int
}

// MarketSnapshot is a point-in-time view of the book's top levels.
type MarketSnapshot struct {
	Symbol    string
	BestBid   float64
	BestAsk   float64
	BidLevels []DepthLevel
	AskLevels []DepthLevel
	WallNanos int64
}

// Mid returns the snapshot midpoint, or 0 without a two-sided market.
func (s MarketSnapshot) Mid() float64 {
	if s.BestBid > 0 && s.BestAsk > 0 {
		return (s.BestBid + s.BestAsk) / 2
	}
	return 0
}

// Spread returns the snapshot spread, or 0 without a two-sided market.
func (s MarketSnapshot) Spread() float64 {
	if s.BestBid > 0 && s.BestAsk > 0 {
		return s.BestAsk - s.BestBid
	}
	return 0
}

// Snapshot aggregates up to depth levels per side.
func (b *OrderBook) Snapshot(depth int) MarketSnapshot {
	if depth <= 0 {
		depth = b.cfg.DepthLevels
	}
	snap := MarketSnapshot{
		Symbol:    b.cfg.Symbol,
		BestBid:   b.BestBid(),
		BestAsk:   b.BestAsk(),
		WallNanos: b.cfg.Clock.WallNanos(),
	}
	snap.BidLevels = b.depth(b.bids, depth)
	snap.AskLevels = b.depth(b.asks, depth)
	return snap
}

func (b *OrderBook) depth(ld *ladder, depth int) []DepthLevel {
	var out []DepthLevel
	for _, price := range ld.inPriority() {
		if len(out) >= depth {
			break
		}
		lvl, ok := ld.get(price)
		if !ok || !lvl.HasOrders() {
			continue
		}
		out = append(out, DepthLevel{
			Price:      lvl.Price(),
			Qty:        lvl.TotalQty(),
			OrderCount: lvl.OrderCount(),
		})
	}
	return out
}

// Empty reports whether no resting quantity remains on either side.
func (b *OrderBook) Empty() bool {
	_, hasBid := b.bids.best()
	_, hasAsk := b.asks.best()
	return !hasBid && !hasAsk
}

// Compact prunes filled and cancelled orders and empty levels from both
// sides, returning the number of orders removed.
func (b *OrderBook) Compact() int {
	removed := b.bids.compact() + b.asks.compact()
	if removed > 0 {
		b.cacheValid.Store(false)
	}
	return removed
}

// Statistics exposes the operation counters; meaningful only when stats are
// enabled in the config.
func (b *OrderBook) Statistics() *Stats { return &b.stats }

// FindOrder returns the resting order for an id, mainly for tests and
// diagnostics.
func (b *OrderBook) FindOrder(id uint64) (*Order, bool) {
	b.lookupMu.RLock()
	ref, ok := b.lookup[id]
	b.lookupMu.RUnlock()
	if !ok {
		return nil, false
	}
	lvl, ok := b.sideLadder(ref.side).get(ref.price)
	if !ok {
		return nil, false
	}
	for o := lvl.head.Load(); o != nil; o = o.next.Load() {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}
