package mdg

import (
	"math"
	"math/rand"
	"time"
)

// Bar is one generated OHLCV row.
type Bar struct {
	Timestamp time.Time
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Generator produces a deterministic random-walk bar series per symbol,
// used by the genbars tool to write synthetic market data files.
type Generator struct {
	symbols    []string
	rng        *rand.Rand
	prices     map[string]float64
	start      time.Time
	interval   time.Duration
	drift      float64
	volatility float64
	index      int
}

// Config tunes the generator.
type Config struct {
	Symbols    []string
	Seed       int64
	BasePrice  float64
	Drift      float64
	Volatility float64
	Start      time.Time
	Interval   time.Duration
}

// New creates a generator. Zero values fall back to one symbol at 100.0
// with one-minute bars.
func New(cfg Config) *Generator {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"TEST"}
	}
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 100
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.01
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC().Truncate(time.Minute)
	}
	prices := make(map[string]float64, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		prices[s] = cfg.BasePrice
	}
	return &Generator{
		symbols:    cfg.Symbols,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		prices:     prices,
		start:      cfg.Start,
		interval:   cfg.Interval,
		drift:      cfg.Drift,
		volatility: cfg.Volatility,
	}
}

// Next creates the next bar, rotating through the symbols.
func (g *Generator) Next() Bar {
	symbol := g.symbols[g.index%len(g.symbols)]
	step := g.index / len(g.symbols)
	g.index++

	open := g.prices[symbol]
	ret := g.drift + g.volatility*g.rng.NormFloat64()
	close := open * math.Exp(ret)
	high := math.Max(open, close) * (1 + g.volatility*math.Abs(g.rng.NormFloat64())/2)
	low := math.Min(open, close) * (1 - g.volatility*math.Abs(g.rng.NormFloat64())/2)
	volume := 1000 + g.rng.Float64()*9000
	g.prices[symbol] = close

	return Bar{
		Timestamp: g.start.Add(time.Duration(step) * g.interval),
		Symbol:    symbol,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}
