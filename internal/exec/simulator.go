package exec

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"main/internal/book"
	"main/internal/clock"
	"main/internal/pool"
	"main/internal/schema"

	"github.com/yanun0323/logs"
)

// mmState tracks the market maker's quoting for one symbol.
type mmState struct {
	nextOrderID uint64
	lastPrice   float64
	quoted      bool
}

// Simulator converts trading signals into fills, either by a simple
// slippage model or by matching against a per-symbol limit order book with
// optional market-maker liquidity.
type Simulator struct {
	cfg Config
	clk *clock.Clock

	booksMu sync.Mutex
	books   map[string]*book.OrderBook

	mmMu sync.Mutex
	mm   map[string]*mmState

	rngMu sync.Mutex
	rng   *rand.Rand

	stats Stats
}

// New creates a simulator from the config.
func New(cfg Config, clk *clock.Clock) *Simulator {
	cfg.Validate()
	if clk == nil {
		clk = clock.New()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = clk.WallNanos()
	}
	s := &Simulator{
		cfg:   cfg,
		clk:   clk,
		books: make(map[string]*book.OrderBook),
		mm:    make(map[string]*mmState),
		rng:   rand.New(rand.NewSource(seed)),
	}
	if cfg.UseOrderBook {
		logs.Info("executor: order book simulation enabled")
	} else {
		logs.Info("executor: simple slippage execution enabled")
	}
	return s
}

// Config returns the validated configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Stats returns the statistics container.
func (s *Simulator) Stats() *Stats { return &s.stats }

func (s *Simulator) random() float64 {
	s.rngMu.Lock()
	v := s.rng.Float64()
	s.rngMu.Unlock()
	return v
}

// Execute turns a signal into at most one fill event acquired from the
// pool. HOLD signals and zero-quantity matches produce no fill.
func (s *Simulator) Execute(signal schema.Signal, refPrice float64, p *pool.Pool) *schema.Event {
	if signal.Kind == schema.SignalHold || signal.SuggestedQty <= 0 || refPrice <= 0 {
		return nil
	}
	start := s.clk.MonoNanos()

	var fill *schema.Event
	if s.cfg.UseOrderBook {
		fill = s.executeBook(signal, refPrice, p)
	} else {
		fill = s.executeSimple(signal, refPrice, p)
	}

	if fill != nil && s.cfg.SimulateLatency {
		s.sleepLatency()
	}
	if fill != nil {
		elapsed := float64(s.clk.MonoNanos() - start)
		partial := fill.Fill.Qty < signal.SuggestedQty-1e-9
		s.stats.observe(elapsed, fill.Fill.Qty, fill.Fill.Qty*fill.Fill.Price, fill.Fill.Commission, partial)
	}
	return fill
}

func sideOf(kind schema.SignalKind) schema.Side {
	if kind == schema.SignalBuy {
		return schema.SideBuy
	}
	return schema.SideSell
}

// executionPrice applies slippage and half the configured spread, signed by
// direction.
func (s *Simulator) executionPrice(quoted float64, isBuy bool) float64 {
	slip := quoted * s.cfg.SlippageFactor
	if !isBuy {
		slip = -slip
	}
	spread := 0.0
	if s.cfg.BidAskSpreadBps > 0 {
		half := quoted * s.cfg.BidAskSpreadBps / 10000 / 2
		if isBuy {
			spread = half
		} else {
			spread = -half
		}
	}
	return quoted + slip + spread
}

// commission is per-share plus a percentage of notional.
func (s *Simulator) commission(qty, price float64) float64 {
	c := qty * s.cfg.PerShareCommission
	if s.cfg.PercentCommission > 0 {
		c += qty * price * s.cfg.PercentCommission / 100
	}
	return c
}

func (s *Simulator) executeSimple(signal schema.Signal, refPrice float64, p *pool.Pool) *schema.Event {
	isBuy := signal.Kind == schema.SignalBuy
	price := s.executionPrice(refPrice, isBuy)

	qty := signal.SuggestedQty
	if s.cfg.SimulatePartialFills && s.random() < s.cfg.PartialFillProbability {
		ratio := s.cfg.MinFillRatio + (1-s.cfg.MinFillRatio)*s.random()
		qty = signal.SuggestedQty * ratio
	}

	return p.AcquireFill(schema.Fill{
		Symbol:     signal.Symbol,
		Side:       sideOf(signal.Kind),
		Qty:        qty,
		Price:      price,
		Commission: s.commission(qty, price),
	})
}

func (s *Simulator) executeBook(signal schema.Signal, refPrice float64, p *pool.Pool) *schema.Event {
	ob := s.bookFor(signal.Symbol)
	side := sideOf(signal.Kind)

	result := ob.MatchMarketOrder(side, signal.SuggestedQty, 0, 0)
	s.stats.BookOperations.Add(1)
	if result.Matched <= 0 {
		return nil
	}
	s.stats.MarketMakerFills.Add(uint64(result.OrdersMatched))

	return p.AcquireFill(schema.Fill{
		Symbol:     signal.Symbol,
		Side:       side,
		Qty:        result.Matched,
		Price:      result.AvgPrice,
		Commission: s.commission(result.Matched, result.AvgPrice),
	})
}

func (s *Simulator) bookFor(symbol string) *book.OrderBook {
	s.booksMu.Lock()
	defer s.booksMu.Unlock()
	if ob, ok := s.books[symbol]; ok {
		return ob
	}
	ob := book.New(book.Config{
		Symbol:      symbol,
		TickSize:    s.cfg.TickSize,
		DepthLevels: s.cfg.DepthLevels,
		EnableStats: s.cfg.EnableStats,
		Clock:       s.clk,
	})
	s.books[symbol] = ob
	return ob
}

// UpdateMarketData refreshes the order book state for a symbol, seeding
// market-maker liquidity around the new price when enabled.
func (s *Simulator) UpdateMarketData(symbol string, price float64) {
	if !s.cfg.UseOrderBook || price <= 0 {
		return
	}
	if s.cfg.EnableMarketMaking {
		s.seedLiquidity(symbol, price)
	}
	s.mmMu.Lock()
	state := s.mmStateFor(symbol)
	state.lastPrice = price
	s.mmMu.Unlock()
}

// mmStateFor must be called with mmMu held.
func (s *Simulator) mmStateFor(symbol string) *mmState {
	state, ok := s.mm[symbol]
	if !ok {
		state = &mmState{nextOrderID: 1}
		s.mm[symbol] = state
	}
	return state
}

func (s *Simulator) seedLiquidity(symbol string, price float64) {
	ob := s.bookFor(symbol)

	s.mmMu.Lock()
	defer s.mmMu.Unlock()
	state := s.mmStateFor(symbol)

	refresh := !state.quoted || s.random() < s.cfg.MarketMakerRefresh
	if !refresh {
		return
	}

	halfSpread := price * s.cfg.MarketMakerSpreadBps / 10000 / 2
	tick := s.cfg.TickSize
	bid := math.Floor((price-halfSpread)/tick) * tick
	ask := math.Ceil((price+halfSpread)/tick) * tick

	for i := 0; i < s.cfg.MarketMakerOrders; i++ {
		offset := float64(i) * tick
		if ob.AddOrder(state.nextOrderID, schema.SideBuy, bid-offset, s.cfg.MarketMakerSize) {
			s.stats.MarketMakerQuotes.Add(1)
		}
		state.nextOrderID++
		if ob.AddOrder(state.nextOrderID, schema.SideSell, ask+offset, s.cfg.MarketMakerSize) {
			s.stats.MarketMakerQuotes.Add(1)
		}
		state.nextOrderID++
	}
	state.quoted = true
	state.lastPrice = price
}

// MarketData returns the current book snapshot for a symbol. In simple
// mode or for an unseen symbol the snapshot is empty.
func (s *Simulator) MarketData(symbol string) book.MarketSnapshot {
	if !s.cfg.UseOrderBook {
		return book.MarketSnapshot{Symbol: symbol, WallNanos: s.clk.WallNanos()}
	}
	s.booksMu.Lock()
	ob, ok := s.books[symbol]
	s.booksMu.Unlock()
	if !ok {
		return book.MarketSnapshot{Symbol: symbol, WallNanos: s.clk.WallNanos()}
	}
	return ob.Snapshot(0)
}

// Book exposes the per-symbol order book for tests and tools.
func (s *Simulator) Book(symbol string) (*book.OrderBook, bool) {
	s.booksMu.Lock()
	ob, ok := s.books[symbol]
	s.booksMu.Unlock()
	return ob, ok
}

// CompactBooks prunes inactive orders from every book and returns the
// number removed.
func (s *Simulator) CompactBooks() int {
	s.booksMu.Lock()
	defer s.booksMu.Unlock()
	removed := 0
	for _, ob := range s.books {
		removed += ob.Compact()
	}
	return removed
}

func (s *Simulator) sleepLatency() {
	min, max := s.cfg.MinExecutionLatency, s.cfg.MaxExecutionLatency
	if max <= min {
		if min > 0 {
			time.Sleep(min)
		}
		return
	}
	span := float64(max - min)
	time.Sleep(min + time.Duration(s.random()*span))
}
