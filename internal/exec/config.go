package exec

import "time"

// Config selects the execution mode and its parameters. Validation
// substitutes documented defaults instead of failing construction.
type Config struct {
	// Commission model.
	PerShareCommission float64
	PercentCommission  float64

	// Simple-slippage mode.
	BidAskSpreadBps float64
	SlippageFactor  float64

	// Order-book mode.
	UseOrderBook bool
	TickSize     float64
	DepthLevels  int
	EnableStats  bool

	// Market-maker liquidity seeding (order-book mode only).
	EnableMarketMaking   bool
	MarketMakerSpreadBps float64
	MarketMakerOrders    int
	MarketMakerSize      float64
	MarketMakerRefresh   float64

	// Latency simulation.
	SimulateLatency     bool
	MinExecutionLatency time.Duration
	MaxExecutionLatency time.Duration

	// Partial fills (simple mode only).
	SimulatePartialFills   bool
	PartialFillProbability float64
	MinFillRatio           float64

	// Seed for the simulator's random source; zero seeds from the clock.
	Seed int64
}

// Validate clamps out-of-range values to their documented defaults.
func (c *Config) Validate() {
	if c.PerShareCommission < 0 {
		c.PerShareCommission = 0
	}
	if c.PercentCommission < 0 {
		c.PercentCommission = 0
	}
	if c.BidAskSpreadBps < 0 {
		c.BidAskSpreadBps = 0
	}
	if c.SlippageFactor < 0 {
		c.SlippageFactor = 0
	}
	if c.TickSize <= 0 {
		c.TickSize = 0.01
	}
	if c.DepthLevels < 1 {
		c.DepthLevels = 5
	}
	if c.MarketMakerSpreadBps <= 0 {
		c.MarketMakerSpreadBps = 10
	}
	if c.MarketMakerOrders <= 0 {
		c.MarketMakerOrders = 3
	}
	if c.MarketMakerSize <= 0 {
		c.MarketMakerSize = 1000
	}
	if c.MarketMakerRefresh < 0 || c.MarketMakerRefresh > 1 {
		c.MarketMakerRefresh = 0.3
	}
	if c.MinExecutionLatency < 0 {
		c.MinExecutionLatency = 0
	}
	if c.MaxExecutionLatency < c.MinExecutionLatency {
		c.MaxExecutionLatency = c.MinExecutionLatency
	}
	if c.PartialFillProbability < 0 || c.PartialFillProbability > 1 {
		c.PartialFillProbability = 0.1
	}
	if c.MinFillRatio <= 0 || c.MinFillRatio > 1 {
		c.MinFillRatio = 0.5
	}
}
