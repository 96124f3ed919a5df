package strategy

import (
	"main/internal/pool"
	"main/internal/schema"
)

// SMACrossover emits BUY when the short average crosses above the long
// average and SELL on the opposite cross. Repeated signals in the same
// direction are suppressed.
type SMACrossover struct {
	base
	shortWindow int
	longWindow  int
	shortSMA    *incrementalSMA
	longSMA     *incrementalSMA
}

// NewSMACrossover creates the strategy; long must exceed short and short
// must be positive, otherwise the windows fall back to 10/30.
func NewSMACrossover(short, long int) *SMACrossover {
	if short <= 0 || long <= short {
		short, long = 10, 30
	}
	s := &SMACrossover{
		base:        newBase("sma_crossover"),
		shortWindow: short,
		longWindow:  long,
		shortSMA:    newIncrementalSMA(short),
		longSMA:     newIncrementalSMA(long),
	}
	s.params["short_window"] = float64(short)
	s.params["long_window"] = float64(long)
	return s
}

// OnBar feeds the bar close into both averages.
func (s *SMACrossover) OnBar(bar schema.Bar) {
	s.bind(bar.Symbol)
	s.shortSMA.update(bar.Close)
	s.longSMA.update(bar.Close)
}

// MaybeEmit returns a signal on a fresh cross, nil during warm-up or when
// the direction has not changed.
func (s *SMACrossover) MaybeEmit(p *pool.Pool) *schema.Event {
	long := s.longSMA.value()
	if long == 0 {
		return nil
	}
	short := s.shortSMA.value()
	switch {
	case short > long && s.lastSignal != schema.SignalBuy:
		return s.emit(p, schema.SignalBuy, 1.0, defaultSignalQty)
	case short < long && s.lastSignal != schema.SignalSell:
		return s.emit(p, schema.SignalSell, 1.0, defaultSignalQty)
	}
	return nil
}

// SetParameter updates a window parameter and resets the affected average.
func (s *SMACrossover) SetParameter(key string, value float64) {
	s.base.SetParameter(key, value)
	switch key {
	case "short_window":
		if n := int(value); n > 0 {
			s.shortWindow = n
			s.shortSMA = newIncrementalSMA(n)
		}
	case "long_window":
		if n := int(value); n > 0 {
			s.longWindow = n
			s.longSMA = newIncrementalSMA(n)
		}
	}
}

// Clone returns an independent copy with fresh indicator state.
func (s *SMACrossover) Clone() Strategy {
	c := &SMACrossover{
		base:        s.cloneBase(),
		shortWindow: s.shortWindow,
		longWindow:  s.longWindow,
		shortSMA:    newIncrementalSMA(s.shortWindow),
		longSMA:     newIncrementalSMA(s.longWindow),
	}
	return c
}
