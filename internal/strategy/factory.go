package strategy

import (
	"fmt"
)

// New builds a strategy by name and applies the parameter map. Unknown
// names fail; unknown parameter keys are stored but ignored by the
// strategy.
func New(name string, params map[string]float64) (Strategy, error) {
	var s Strategy
	switch name {
	case "sma_crossover":
		s = NewSMACrossover(intParam(params, "short_window", 10), intParam(params, "long_window", 30))
	case "rsi":
		s = NewRSI(
			intParam(params, "period", 14),
			floatParam(params, "overbought", 70),
			floatParam(params, "oversold", 30),
		)
	case "macd":
		s = NewMACD(
			intParam(params, "fast_period", 12),
			intParam(params, "slow_period", 26),
			intParam(params, "signal_period", 9),
		)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
	for key, value := range params {
		s.SetParameter(key, value)
	}
	return s, nil
}

func intParam(params map[string]float64, key string, fallback int) int {
	if v, ok := params[key]; ok && int(v) > 0 {
		return int(v)
	}
	return fallback
}

func floatParam(params map[string]float64, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}
