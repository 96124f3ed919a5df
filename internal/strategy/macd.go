package strategy

import (
	"main/internal/pool"
	"main/internal/schema"
)

// MACDStrategy signals on MACD/signal-line crosses built from incremental
// EMAs.
type MACDStrategy struct {
	base
	fastPeriod   int
	slowPeriod   int
	signalPeriod int

	fast      *incrementalEMA
	slow      *incrementalEMA
	signalEMA *incrementalEMA
	bars      int
}

// NewMACD creates the strategy, defaulting to 12/26/9 when the periods are
// inconsistent.
func NewMACD(fast, slow, signal int) *MACDStrategy {
	if fast <= 0 || slow <= fast || signal <= 0 {
		fast, slow, signal = 12, 26, 9
	}
	s := &MACDStrategy{
		base:         newBase("macd"),
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
		fast:         newIncrementalEMA(fast),
		slow:         newIncrementalEMA(slow),
		signalEMA:    newIncrementalEMA(signal),
	}
	s.params["fast_period"] = float64(fast)
	s.params["slow_period"] = float64(slow)
	s.params["signal_period"] = float64(signal)
	return s
}

// OnBar feeds the close into the EMAs.
func (s *MACDStrategy) OnBar(bar schema.Bar) {
	s.bind(bar.Symbol)
	fast := s.fast.update(bar.Close)
	slow := s.slow.update(bar.Close)
	s.signalEMA.update(fast - slow)
	s.bars++
}

// MaybeEmit signals a fresh cross of the MACD line over its signal line
// once the slow EMA has seen a full period of bars.
func (s *MACDStrategy) MaybeEmit(p *pool.Pool) *schema.Event {
	if s.bars < s.slowPeriod {
		return nil
	}
	macd := s.fast.value - s.slow.value
	signal := s.signalEMA.value
	switch {
	case macd > signal && s.lastSignal != schema.SignalBuy:
		return s.emit(p, schema.SignalBuy, 1.0, defaultSignalQty)
	case macd < signal && s.lastSignal != schema.SignalSell:
		return s.emit(p, schema.SignalSell, 1.0, defaultSignalQty)
	}
	return nil
}

// SetParameter updates a period and resets the affected EMA chain.
func (s *MACDStrategy) SetParameter(key string, value float64) {
	s.base.SetParameter(key, value)
	n := int(value)
	if n <= 0 {
		return
	}
	switch key {
	case "fast_period":
		s.fastPeriod = n
		s.fast = newIncrementalEMA(n)
	case "slow_period":
		s.slowPeriod = n
		s.slow = newIncrementalEMA(n)
	case "signal_period":
		s.signalPeriod = n
		s.signalEMA = newIncrementalEMA(n)
	}
}

// Clone returns an independent copy with fresh indicator state.
func (s *MACDStrategy) Clone() Strategy {
	return &MACDStrategy{
		base:         s.cloneBase(),
		fastPeriod:   s.fastPeriod,
		slowPeriod:   s.slowPeriod,
		signalPeriod: s.signalPeriod,
		fast:         newIncrementalEMA(s.fastPeriod),
		slow:         newIncrementalEMA(s.slowPeriod),
		signalEMA:    newIncrementalEMA(s.signalPeriod),
	}
}
