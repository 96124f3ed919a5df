package risk

import (
	"math"

	"main/internal/schema"
)

// Action is the outcome of a risk evaluation.
type Action uint16

const (
	ActionAllow Action = iota
	ActionDeny
)

// Reason is a coarse reason code for denied signals.
type Reason uint16

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonMaxQty
	ReasonMaxNotional
	ReasonPositionLimit
	ReasonDrawdownLimit
)

// String returns the reason name for logging.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonKillSwitch:
		return "kill_switch"
	case ReasonMaxQty:
		return "max_qty"
	case ReasonMaxNotional:
		return "max_notional"
	case ReasonPositionLimit:
		return "position_limit"
	case ReasonDrawdownLimit:
		return "drawdown_limit"
	default:
		return "unknown"
	}
}

// Config defines simple pre-trade limits. Zero values disable a check.
type Config struct {
	KillSwitch       bool    `json:"killSwitch"`
	MaxOrderQty      float64 `json:"maxOrderQty"`
	MaxOrderNotional float64 `json:"maxOrderNotional"`
	MaxPosition      float64 `json:"maxPosition"`
	MaxDrawdown      float64 `json:"maxDrawdown"`
}

// StateView is the portfolio state a decision is made against.
type StateView struct {
	PositionQty    float64
	ReferencePrice float64
	Equity         float64
	PeakEquity     float64
}

// Decision reports the outcome of one evaluation.
type Decision struct {
	Action Action
	Reason Reason
}

// Engine evaluates signals against static limits before execution.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate applies the configured checks to a signal.
func (e *Engine) Evaluate(sig schema.Signal, state StateView) Decision {
	if e.cfg.KillSwitch {
		return Decision{Action: ActionDeny, Reason: ReasonKillSwitch}
	}

	if e.cfg.MaxDrawdown > 0 && state.PeakEquity > 0 {
		drawdown := (state.PeakEquity - state.Equity) / state.PeakEquity
		if drawdown > e.cfg.MaxDrawdown {
			return Decision{Action: ActionDeny, Reason: ReasonDrawdownLimit}
		}
	}

	if e.cfg.MaxOrderQty > 0 && sig.SuggestedQty > e.cfg.MaxOrderQty {
		return Decision{Action: ActionDeny, Reason: ReasonMaxQty}
	}

	if e.cfg.MaxOrderNotional > 0 && state.ReferencePrice > 0 {
		if sig.SuggestedQty*state.ReferencePrice > e.cfg.MaxOrderNotional {
			return Decision{Action: ActionDeny, Reason: ReasonMaxNotional}
		}
	}

	if e.cfg.MaxPosition > 0 {
		next := state.PositionQty + signedQty(sig)
		if math.Abs(next) > e.cfg.MaxPosition {
			return Decision{Action: ActionDeny, Reason: ReasonPositionLimit}
		}
	}

	return Decision{Action: ActionAllow, Reason: ReasonNone}
}

func signedQty(sig schema.Signal) float64 {
	switch sig.Kind {
	case schema.SignalBuy:
		return sig.SuggestedQty
	case schema.SignalSell, schema.SignalExit:
		return -sig.SuggestedQty
	default:
		return 0
	}
}
