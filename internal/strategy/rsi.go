package strategy

import (
	"main/internal/pool"
	"main/internal/schema"
)

// RSIStrategy buys oversold conditions and sells overbought ones using a
// Wilder-smoothed RSI.
type RSIStrategy struct {
	base
	period     int
	overbought float64
	oversold   float64
	rsi        *wilderRSI
}

// NewRSI creates the strategy with the usual 70/30 bands when thresholds
// are out of order.
func NewRSI(period int, overbought, oversold float64) *RSIStrategy {
	if period <= 1 {
		period = 14
	}
	if oversold <= 0 || overbought <= oversold || overbought >= 100 {
		overbought, oversold = 70, 30
	}
	s := &RSIStrategy{
		base:       newBase("rsi"),
		period:     period,
		overbought: overbought,
		oversold:   oversold,
		rsi:        newWilderRSI(period),
	}
	s.params["period"] = float64(period)
	s.params["overbought"] = overbought
	s.params["oversold"] = oversold
	return s
}

// OnBar feeds the close into the RSI.
func (s *RSIStrategy) OnBar(bar schema.Bar) {
	s.bind(bar.Symbol)
	s.rsi.update(bar.Close)
}

// MaybeEmit signals when the RSI leaves the neutral band, deduped by
// direction. Confidence scales with the distance past the threshold.
func (s *RSIStrategy) MaybeEmit(p *pool.Pool) *schema.Event {
	v := s.rsi.value()
	if v < 0 {
		return nil
	}
	switch {
	case v <= s.oversold && s.lastSignal != schema.SignalBuy:
		confidence := 1.0 - v/s.oversold
		return s.emit(p, schema.SignalBuy, 0.5+confidence/2, defaultSignalQty)
	case v >= s.overbought && s.lastSignal != schema.SignalSell:
		confidence := (v - s.overbought) / (100 - s.overbought)
		return s.emit(p, schema.SignalSell, 0.5+confidence/2, defaultSignalQty)
	}
	return nil
}

// SetParameter updates a threshold or period; a period change resets the
// RSI state.
func (s *RSIStrategy) SetParameter(key string, value float64) {
	s.base.SetParameter(key, value)
	switch key {
	case "period":
		if n := int(value); n > 1 {
			s.period = n
			s.rsi = newWilderRSI(n)
		}
	case "overbought":
		s.overbought = value
	case "oversold":
		s.oversold = value
	}
}

// Clone returns an independent copy with fresh indicator state.
func (s *RSIStrategy) Clone() Strategy {
	return &RSIStrategy{
		base:       s.cloneBase(),
		period:     s.period,
		overbought: s.overbought,
		oversold:   s.oversold,
		rsi:        newWilderRSI(s.period),
	}
}
