package strategy

import (
	"main/internal/pool"
	"main/internal/schema"
)

// Strategy is the capability every trading strategy implements. OnBar must
// not block; MaybeEmit acquires its signal event from the pool and returns
// nil when the strategy has nothing to say. Clone returns an independent
// instance for optimizer re-use.
type Strategy interface {
	Name() string
	OnBar(bar schema.Bar)
	MaybeEmit(p *pool.Pool) *schema.Event
	Clone() Strategy
	SetParameter(key string, value float64)
	Parameter(key string) (float64, bool)
}

// base carries the name, symbol binding, parameter map and last-signal
// dedup state shared by the concrete strategies.
type base struct {
	name       string
	symbol     string
	lastSignal schema.SignalKind
	params     map[string]float64
}

func newBase(name string) base {
	return base{name: name, lastSignal: schema.SignalHold, params: make(map[string]float64)}
}

func (b *base) Name() string { return b.name }

func (b *base) SetParameter(key string, value float64) {
	b.params[key] = value
}

func (b *base) Parameter(key string) (float64, bool) {
	v, ok := b.params[key]
	return v, ok
}

func (b *base) bind(symbol string) {
	if b.symbol == "" {
		b.symbol = symbol
	}
}

func (b *base) cloneBase() base {
	c := base{
		name:       b.name,
		symbol:     b.symbol,
		lastSignal: b.lastSignal,
		params:     make(map[string]float64, len(b.params)),
	}
	for k, v := range b.params {
		c.params[k] = v
	}
	return c
}

// emit builds a signal event, recording the kind for dedup.
func (b *base) emit(p *pool.Pool, kind schema.SignalKind, confidence, qty float64) *schema.Event {
	b.lastSignal = kind
	return p.AcquireSignal(schema.Signal{
		StrategyID:   b.name,
		Symbol:       b.symbol,
		Kind:         kind,
		Confidence:   confidence,
		SuggestedQty: qty,
	})
}

const defaultSignalQty = 100
