package exec

import (
	"testing"

	"main/internal/clock"
	"main/internal/pool"
	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool() *pool.Pool {
	return pool.New(clock.New(), pool.Config{InitialCells: 64})
}

func buySignal(qty float64) schema.Signal {
	return schema.Signal{
		StrategyID:   "test",
		Symbol:       "A",
		Kind:         schema.SignalBuy,
		Confidence:   1,
		SuggestedQty: qty,
	}
}

func TestSimpleModeProducesOneFill(t *testing.T) {
	s := New(Config{Seed: 1}, nil)
	p := newTestPool()

	fill := s.Execute(buySignal(100), 150, p)
	require.NotNil(t, fill)
	assert.Equal(t, schema.EventFill, fill.Header.Type)
	assert.Equal(t, "A", fill.Fill.Symbol)
	assert.Equal(t, schema.SideBuy, fill.Fill.Side)
	assert.InDelta(t, 100, fill.Fill.Qty, 1e-9)
	assert.InDelta(t, 150, fill.Fill.Price, 1e-9, "no slippage configured")
	assert.InDelta(t, 0, fill.Fill.Commission, 1e-9)
}

func TestHoldProducesNoFill(t *testing.T) {
	s := New(Config{Seed: 1}, nil)
	p := newTestPool()

	sig := buySignal(100)
	sig.Kind = schema.SignalHold
	assert.Nil(t, s.Execute(sig, 150, p))
	assert.Nil(t, s.Execute(buySignal(0), 150, p), "zero quantity")
	assert.Nil(t, s.Execute(buySignal(100), 0, p), "no reference price")
}

func TestSlippageAndSpread(t *testing.T) {
	s := New(Config{SlippageFactor: 0.001, BidAskSpreadBps: 10, Seed: 1}, nil)
	p := newTestPool()

	fill := s.Execute(buySignal(100), 100, p)
	require.NotNil(t, fill)
	// exec = 100*(1+0.001) + 100*10/10000/2 = 100.1 + 0.05
	assert.InDelta(t, 100.15, fill.Fill.Price, 1e-9)

	sig := buySignal(100)
	sig.Kind = schema.SignalSell
	fill = s.Execute(sig, 100, p)
	require.NotNil(t, fill)
	assert.InDelta(t, 99.85, fill.Fill.Price, 1e-9)
}

func TestCommission(t *testing.T) {
	s := New(Config{PerShareCommission: 0.01, PercentCommission: 0.1, Seed: 1}, nil)
	p := newTestPool()

	fill := s.Execute(buySignal(100), 50, p)
	require.NotNil(t, fill)
	// 100*0.01 + 100*50*0.1/100 = 1 + 5
	assert.InDelta(t, 6, fill.Fill.Commission, 1e-9)
}

func TestPartialFills(t *testing.T) {
	s := New(Config{
		SimulatePartialFills:   true,
		PartialFillProbability: 1,
		MinFillRatio:           0.5,
		Seed:                   7,
	}, nil)
	p := newTestPool()

	fill := s.Execute(buySignal(100), 100, p)
	require.NotNil(t, fill)
	assert.Less(t, fill.Fill.Qty, 100.0)
	assert.GreaterOrEqual(t, fill.Fill.Qty, 50.0)

	stats := s.Stats().Snapshot()
	assert.Equal(t, uint64(1), stats.PartialFills)
	assert.Equal(t, uint64(0), stats.FullFills)
}

func TestBookModeNoLiquidityNoFill(t *testing.T) {
	s := New(Config{UseOrderBook: true, Seed: 1}, nil)
	p := newTestPool()

	assert.Nil(t, s.Execute(buySignal(100), 100, p))
	assert.Equal(t, uint64(1), s.Stats().Snapshot().BookOperations)
}

func TestBookModeMatchesSeededLiquidity(t *testing.T) {
	s := New(Config{
		UseOrderBook:         true,
		EnableMarketMaking:   true,
		MarketMakerSpreadBps: 10,
		MarketMakerOrders:    3,
		MarketMakerSize:      1000,
		MarketMakerRefresh:   1,
		TickSize:             0.01,
		Seed:                 1,
	}, nil)
	p := newTestPool()

	s.UpdateMarketData("A", 100)
	stats := s.Stats().Snapshot()
	assert.Equal(t, uint64(6), stats.MarketMakerQuotes)

	fill := s.Execute(buySignal(500), 100, p)
	require.NotNil(t, fill)
	assert.InDelta(t, 500, fill.Fill.Qty, 1e-9)
	assert.Greater(t, fill.Fill.Price, 100.0, "buy lifts the ask side")

	snap := s.MarketData("A")
	assert.Greater(t, snap.BestBid, 0.0)
	assert.Greater(t, snap.BestAsk, snap.BestBid)
}

func TestStatsAccumulate(t *testing.T) {
	s := New(Config{Seed: 1}, nil)
	p := newTestPool()

	for i := 0; i < 3; i++ {
		require.NotNil(t, s.Execute(buySignal(10), 100, p))
	}
	stats := s.Stats().Snapshot()
	assert.Equal(t, uint64(3), stats.TotalExecutions)
	assert.Equal(t, uint64(3), stats.FullFills)
	assert.InDelta(t, 30, stats.TotalVolume, 1e-9)
	assert.InDelta(t, 3000, stats.TotalValue, 1e-9)
}

func TestMarketDataSimpleModeEmpty(t *testing.T) {
	s := New(Config{Seed: 1}, nil)
	snap := s.MarketData("A")
	assert.Equal(t, "A", snap.Symbol)
	assert.Equal(t, 0.0, snap.BestBid)
	assert.Equal(t, 0.0, snap.BestAsk)
}
