package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"main/internal/atomicf"
	"main/internal/bus"
	"main/internal/clock"
	"main/internal/exec"
	"main/internal/latency"
	"main/internal/obs"
	"main/internal/pool"
	"main/internal/portfolio"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/strategy"
	"main/pkg/exception"

	"github.com/yanun0323/logs"
)

// Config tunes the dispatch loop.
type Config struct {
	MaxEventsPerBatch       int
	MaxBatchDuration        time.Duration
	EnableLatencyMonitoring bool
	LatencySpikeThreshold   time.Duration
}

func (c *Config) validate() {
	if c.MaxEventsPerBatch < 1 {
		c.MaxEventsPerBatch = 1000
	}
	if c.MaxBatchDuration < time.Microsecond {
		c.MaxBatchDuration = time.Millisecond
	}
	if c.LatencySpikeThreshold <= 0 {
		c.LatencySpikeThreshold = 10 * time.Millisecond
	}
}

// Engine pulls events off the bus in bounded batches and routes them
// between the portfolio, the strategies and the executor. Every event is
// released back to the pool after dispatch.
type Engine struct {
	cfg      Config
	bus      bus.Bus
	pool     *pool.Pool
	ledger   *portfolio.Ledger
	executor *exec.Simulator
	clk      *clock.Clock

	stratMu    sync.RWMutex
	strategies map[string]strategy.Strategy

	priceMu    sync.RWMutex
	lastPrices map[string]float64

	metrics *obs.Metrics
	tracker *latency.Tracker

	riskEngine *risk.Engine
	peakEquity atomicf.Float64
	denied     atomic.Uint64

	running     atomic.Bool
	stopped     atomic.Bool
	drainOnStop atomic.Bool
	processed   atomic.Uint64
	runErr      error
}

// New wires an engine. Nil metrics disables counting; the latency tracker
// is created only when monitoring is enabled.
func New(cfg Config, b bus.Bus, p *pool.Pool, ledger *portfolio.Ledger, executor *exec.Simulator, clk *clock.Clock, metrics *obs.Metrics) *Engine {
	cfg.validate()
	if clk == nil {
		clk = clock.New()
	}
	e := &Engine{
		cfg:        cfg,
		bus:        b,
		pool:       p,
		ledger:     ledger,
		executor:   executor,
		clk:        clk,
		strategies: make(map[string]strategy.Strategy),
		lastPrices: make(map[string]float64),
		metrics:    metrics,
	}
	if cfg.EnableLatencyMonitoring {
		e.tracker = latency.NewTracker(0, cfg.LatencySpikeThreshold)
	}
	return e
}

// SetRiskEngine installs pre-trade checks applied to every signal before
// execution. Nil disables checking.
func (e *Engine) SetRiskEngine(r *risk.Engine) { e.riskEngine = r }

// DeniedSignals returns the number of signals rejected by the risk engine.
func (e *Engine) DeniedSignals() uint64 { return e.denied.Load() }

// Register binds a strategy to a symbol. One strategy per symbol; a second
// registration replaces the first.
func (e *Engine) Register(symbol string, s strategy.Strategy) {
	e.stratMu.Lock()
	e.strategies[symbol] = s
	e.stratMu.Unlock()
}

// Processed returns the number of dispatched events.
func (e *Engine) Processed() uint64 { return e.processed.Load() }

// Latency returns the tracker, nil when monitoring is disabled.
func (e *Engine) Latency() *latency.Tracker { return e.tracker }

// Stop requests a halt at the next batch boundary; in-flight events
// complete.
func (e *Engine) Stop() { e.stopped.Store(true) }

// StopWhenDrained lets the loop exit once the bus is empty, instead of
// idling for more input.
func (e *Engine) StopWhenDrained() { e.drainOnStop.Store(true) }

// Run dispatches until the context is cancelled, Stop is called, or a
// drain is requested and completes. It returns exception.ErrInternal when
// the loop is already running; otherwise the only error return is fatal
// backpressure from an exhausted event pool.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return exception.ErrInternal
	}
	defer e.running.Store(false)
	logs.Info("engine: dispatch loop started")

	for {
		if e.stopped.Load() || ctx.Err() != nil {
			break
		}
		n := e.runBatch()
		if e.runErr != nil {
			logs.Error("engine: halting: ", e.runErr)
			return e.runErr
		}
		if n == 0 {
			if e.drainOnStop.Load() && e.bus.Empty() {
				break
			}
			runtime.Gosched()
			continue
		}
		runtime.Gosched()
	}
	logs.Info("engine: dispatch loop stopped, events=", e.processed.Load())
	return nil
}

// runBatch pulls up to MaxEventsPerBatch events or runs for
// MaxBatchDuration, whichever comes first, and returns the number
// dispatched.
func (e *Engine) runBatch() int {
	deadline := time.Now().Add(e.cfg.MaxBatchDuration)
	count := 0
	for count < e.cfg.MaxEventsPerBatch {
		ev := e.bus.TryConsume()
		if ev == nil {
			break
		}
		e.dispatch(ev)
		count++
		if e.runErr != nil {
			break
		}
		if count%64 == 0 && time.Now().After(deadline) {
			break
		}
	}
	return count
}

func (e *Engine) dispatch(ev *schema.Event) {
	start := int64(0)
	if e.tracker != nil {
		start = e.clk.MonoNanos()
	}

	switch ev.Header.Type {
	case schema.EventBar:
		e.onBar(ev)
	case schema.EventSignal:
		e.onSignal(ev)
	case schema.EventFill:
		e.ledger.ApplyFill(ev.Fill, ev.Header.WallNanos)
	}
	if e.metrics != nil {
		e.metrics.ObserveEvent(ev.Header.Type)
	}
	e.pool.Release(ev)
	e.processed.Add(1)

	if e.tracker != nil {
		elapsed := time.Duration(e.clk.MonoNanos() - start)
		e.tracker.Observe(elapsed)
		if e.tracker.Spike(elapsed) {
			logs.Warn("engine: dispatch latency spike: ", elapsed)
		}
		if e.metrics != nil {
			e.metrics.ObserveDispatch(elapsed)
		}
	}
}

func (e *Engine) onBar(ev *schema.Event) {
	bar := ev.Bar
	e.priceMu.Lock()
	e.lastPrices[bar.Symbol] = bar.Close
	e.priceMu.Unlock()

	e.ledger.OnBar(bar, ev.Header.WallNanos)
	e.executor.UpdateMarketData(bar.Symbol, bar.Close)
	if equity := e.ledger.TotalEquity(); equity > e.peakEquity.Load() {
		e.peakEquity.Store(equity)
	}

	e.stratMu.RLock()
	s, ok := e.strategies[bar.Symbol]
	e.stratMu.RUnlock()
	if !ok {
		return
	}
	s.OnBar(bar)

	before := e.pool.Statistics().Failures
	signal := s.MaybeEmit(e.pool)
	if signal == nil {
		if e.pool.Statistics().Failures > before {
			e.fatal()
		}
		return
	}
	e.publish(signal)
}

func (e *Engine) onSignal(ev *schema.Event) {
	sig := ev.Signal
	e.priceMu.RLock()
	refPrice := e.lastPrices[sig.Symbol]
	e.priceMu.RUnlock()

	if e.riskEngine != nil {
		positionQty := 0.0
		if view, err := e.ledger.Snapshot(sig.Symbol); err == nil {
			positionQty = view.Qty
		}
		decision := e.riskEngine.Evaluate(sig, risk.StateView{
			PositionQty:    positionQty,
			ReferencePrice: refPrice,
			Equity:         e.ledger.TotalEquity(),
			PeakEquity:     e.peakEquity.Load(),
		})
		if decision.Action == risk.ActionDeny {
			e.denied.Add(1)
			logs.Warn("engine: signal denied by risk: ", decision.Reason.String(),
				" strategy=", sig.StrategyID, " symbol=", sig.Symbol)
			return
		}
	}

	var execStart int64
	if e.metrics != nil {
		execStart = e.clk.MonoNanos()
	}
	before := e.pool.Statistics().Failures
	fill := e.executor.Execute(sig, refPrice, e.pool)
	if e.metrics != nil {
		e.metrics.ObserveExecute(time.Duration(e.clk.MonoNanos() - execStart))
	}
	if fill == nil {
		if e.pool.Statistics().Failures > before {
			e.fatal()
		}
		return
	}
	e.publish(fill)
}

// publish re-enqueues an engine-produced event, blocking under pressure.
func (e *Engine) publish(ev *schema.Event) {
	if !e.bus.TryPublish(ev) {
		if e.metrics != nil {
			e.metrics.IncQueueDrop()
		}
		e.bus.Publish(ev)
	}
}

// fatal records pool exhaustion; the run loop surfaces it and halts.
func (e *Engine) fatal() {
	if e.metrics != nil {
		e.metrics.IncPoolFailure()
	}
	e.runErr = exception.ErrPoolExhausted
}
