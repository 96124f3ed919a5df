package engine

import (
	"context"
	"testing"
	"time"

	"main/internal/bus"
	"main/internal/clock"
	"main/internal/exec"
	"main/internal/obs"
	"main/internal/pool"
	"main/internal/portfolio"
	"main/internal/schema"
	"main/internal/strategy"
	"main/internal/wait"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clk      *clock.Clock
	pool     *pool.Pool
	bus      bus.Bus
	ledger   *portfolio.Ledger
	executor *exec.Simulator
	engine   *Engine
}

func newFixture(t *testing.T, busCapacity int, poolCfg pool.Config) *fixture {
	t.Helper()
	clk := clock.New()
	p := pool.New(clk, poolCfg)
	b := bus.New(bus.Config{UseRing: true, Capacity: busCapacity, WaitStrategy: wait.KindYield})
	ledger := portfolio.NewLedger(100_000)
	executor := exec.New(exec.Config{Seed: 1}, clk)
	eng := New(Config{}, b, p, ledger, executor, clk, obs.NewMetrics())
	return &fixture{clk: clk, pool: p, bus: b, ledger: ledger, executor: executor, engine: eng}
}

func (f *fixture) publishBar(t *testing.T, symbol string, close float64) {
	t.Helper()
	ev := f.pool.AcquireBar(schema.Bar{Symbol: symbol, Open: close, High: close, Low: close, Close: close, Volume: 1000})
	require.NotNil(t, ev)
	f.bus.Publish(ev)
}

func (f *fixture) runUntilDrained(t *testing.T) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(context.Background()) }()
	f.engine.StopWhenDrained()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not drain")
	}
}

func TestBarWithoutStrategy(t *testing.T) {
	f := newFixture(t, 8, pool.Config{InitialCells: 16})
	f.publishBar(t, "A", 100)
	f.runUntilDrained(t)

	assert.Equal(t, uint64(1), f.engine.Processed())
	assert.Len(t, f.ledger.TradeHistory(), 0)
	assert.Equal(t, uint64(0), f.pool.Statistics().Live, "event released back to pool")
}

// A 2/3 SMA crossover over rising closes emits one BUY through the bus and
// the dispatcher turns it into exactly one fill.
func TestCrossoverSignalThroughBus(t *testing.T) {
	f := newFixture(t, 8, pool.Config{InitialCells: 32})
	f.engine.Register("A", strategy.NewSMACrossover(2, 3))

	for _, close := range []float64{100, 101, 102, 103, 104} {
		f.publishBar(t, "A", close)
	}
	f.runUntilDrained(t)

	trades := f.ledger.TradeHistory()
	require.Len(t, trades, 1, "exactly one fill")
	assert.Equal(t, schema.SideBuy, trades[0].Side)
	assert.InDelta(t, 100, trades[0].Qty, 1e-9)

	view, err := f.ledger.Snapshot("A")
	require.NoError(t, err)
	assert.InDelta(t, 100, view.Qty, 1e-9)

	// bars + one signal + one fill, all released
	assert.Equal(t, uint64(7), f.engine.Processed())
	assert.Equal(t, uint64(0), f.pool.Statistics().Live)
}

func TestFillsUpdateLedger(t *testing.T) {
	f := newFixture(t, 16, pool.Config{InitialCells: 16})
	ev := f.pool.AcquireFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 10, Price: 100, Commission: 1})
	require.NotNil(t, ev)
	f.bus.Publish(ev)
	f.runUntilDrained(t)

	assert.InDelta(t, 100_000-1001, f.ledger.AvailableCash(), 1e-9)
	require.Len(t, f.ledger.TradeHistory(), 1)
}

func TestPoolExhaustionHalts(t *testing.T) {
	// One cell per arena; holding the signal cell starves MaybeEmit.
	clk := clock.New()
	p := pool.New(clk, pool.Config{InitialCells: 1, MaxCells: 1})
	b := bus.New(bus.Config{UseRing: true, Capacity: 8})
	ledger := portfolio.NewLedger(100_000)
	executor := exec.New(exec.Config{Seed: 1}, clk)
	eng := New(Config{}, b, p, ledger, executor, clk, nil)
	eng.Register("A", strategy.NewSMACrossover(1, 2))

	held := p.AcquireSignal(schema.Signal{})
	require.NotNil(t, held)

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()

	// Feed rising closes; the 1/2 crossover wants to emit on the second
	// bar and finds the signal arena empty. Bar cells recycle through the
	// single-cell arena as the engine releases them.
	for _, close := range []float64{100, 101, 102} {
		for {
			ev := p.AcquireBar(schema.Bar{Symbol: "A", Open: close, High: close, Low: close, Close: close})
			if ev != nil {
				b.Publish(ev)
				break
			}
			select {
			case err := <-done:
				assert.ErrorIs(t, err, exception.ErrPoolExhausted)
				return
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, exception.ErrPoolExhausted)
	case <-time.After(10 * time.Second):
		eng.Stop()
		t.Fatal("engine did not halt on pool exhaustion")
	}
}

func TestStopHaltsLoop(t *testing.T) {
	f := newFixture(t, 8, pool.Config{InitialCells: 8})
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	f.engine.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestLatencyMonitoring(t *testing.T) {
	clk := clock.New()
	p := pool.New(clk, pool.Config{InitialCells: 16})
	b := bus.New(bus.Config{UseRing: true, Capacity: 8})
	ledger := portfolio.NewLedger(100_000)
	executor := exec.New(exec.Config{Seed: 1}, clk)
	eng := New(Config{EnableLatencyMonitoring: true, LatencySpikeThreshold: time.Hour}, b, p, ledger, executor, clk, nil)

	ev := p.AcquireBar(schema.Bar{Symbol: "A", Close: 100})
	require.NotNil(t, ev)
	b.Publish(ev)

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()
	eng.StopWhenDrained()
	require.NoError(t, <-done)

	tracker := eng.Latency()
	require.NotNil(t, tracker)
	assert.Equal(t, uint64(1), tracker.Count())
	assert.Equal(t, uint64(0), tracker.Spikes())
}
