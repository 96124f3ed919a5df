package risk

import (
	"testing"

	"main/internal/schema"

	"github.com/stretchr/testify/assert"
)

func sig(kind schema.SignalKind, qty float64) schema.Signal {
	return schema.Signal{StrategyID: "t", Symbol: "A", Kind: kind, SuggestedQty: qty}
}

func TestAllowByDefault(t *testing.T) {
	e := NewEngine(Config{})
	d := e.Evaluate(sig(schema.SignalBuy, 1_000_000), StateView{ReferencePrice: 100})
	assert.Equal(t, ActionAllow, d.Action)
}

func TestKillSwitch(t *testing.T) {
	e := NewEngine(Config{KillSwitch: true})
	d := e.Evaluate(sig(schema.SignalBuy, 1), StateView{})
	assert.Equal(t, ActionDeny, d.Action)
	assert.Equal(t, ReasonKillSwitch, d.Reason)
}

func TestMaxOrderQty(t *testing.T) {
	e := NewEngine(Config{MaxOrderQty: 100})
	assert.Equal(t, ActionAllow, e.Evaluate(sig(schema.SignalBuy, 100), StateView{}).Action)

	d := e.Evaluate(sig(schema.SignalBuy, 101), StateView{})
	assert.Equal(t, ActionDeny, d.Action)
	assert.Equal(t, ReasonMaxQty, d.Reason)
}

func TestMaxNotional(t *testing.T) {
	e := NewEngine(Config{MaxOrderNotional: 10_000})
	state := StateView{ReferencePrice: 100}
	assert.Equal(t, ActionAllow, e.Evaluate(sig(schema.SignalBuy, 100), state).Action)

	d := e.Evaluate(sig(schema.SignalBuy, 101), state)
	assert.Equal(t, ReasonMaxNotional, d.Reason)
}

func TestPositionLimit(t *testing.T) {
	e := NewEngine(Config{MaxPosition: 200})
	state := StateView{PositionQty: 150}
	assert.Equal(t, ActionAllow, e.Evaluate(sig(schema.SignalBuy, 50), state).Action)

	d := e.Evaluate(sig(schema.SignalBuy, 51), state)
	assert.Equal(t, ReasonPositionLimit, d.Reason)

	// Selling away from the limit stays allowed.
	assert.Equal(t, ActionAllow, e.Evaluate(sig(schema.SignalSell, 300), state).Action)
}

func TestDrawdownLimit(t *testing.T) {
	e := NewEngine(Config{MaxDrawdown: 0.2})
	ok := StateView{Equity: 90_000, PeakEquity: 100_000}
	assert.Equal(t, ActionAllow, e.Evaluate(sig(schema.SignalBuy, 1), ok).Action)

	bad := StateView{Equity: 70_000, PeakEquity: 100_000}
	d := e.Evaluate(sig(schema.SignalBuy, 1), bad)
	assert.Equal(t, ReasonDrawdownLimit, d.Reason)
}
