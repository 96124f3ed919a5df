package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/bus"
	"main/internal/engine"
	"main/internal/exec"
	"main/internal/pool"
	"main/internal/risk"
	"main/internal/wait"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Bus       BusConfig       `json:"bus"`
	Engine    EngineConfig    `json:"engine"`
	Executor  ExecutorConfig  `json:"executor"`
	Portfolio PortfolioConfig `json:"portfolio"`
	Pool      PoolConfig      `json:"pool"`
	Feed      FeedConfig      `json:"feed"`
	Store     StoreConfig     `json:"store"`
	Strategy  StrategyConfig  `json:"strategy"`
	Risk      risk.Config     `json:"risk"`
}

// BusConfig describes the event bus.
type BusConfig struct {
	UseRing       *bool  `json:"useRing"`
	Capacity      int    `json:"capacity"`
	WaitStrategy  string `json:"waitStrategy"`
	MultiProducer bool   `json:"multiProducer"`
	MultiConsumer bool   `json:"multiConsumer"`
}

// EngineConfig describes the dispatch loop.
type EngineConfig struct {
	MaxEventsPerBatch       int    `json:"maxEventsPerBatch"`
	MaxBatchDuration        string `json:"maxBatchDuration"`
	EnableLatencyMonitoring bool   `json:"enableLatencyMonitoring"`
	LatencySpikeThreshold   string `json:"latencySpikeThreshold"`
}

// ExecutorConfig describes the execution simulator.
type ExecutorConfig struct {
	PerShareCommission float64 `json:"perShareCommission"`
	PercentCommission  float64 `json:"percentCommission"`
	BidAskSpreadBps    float64 `json:"bidAskSpreadBps"`
	SlippageFactor     float64 `json:"slippageFactor"`

	UseOrderBook bool    `json:"useOrderBook"`
	TickSize     float64 `json:"tickSize"`
	DepthLevels  int     `json:"depthLevels"`
	EnableStats  bool    `json:"enableStats"`

	EnableMarketMaking   bool    `json:"enableMarketMaking"`
	MarketMakerSpreadBps float64 `json:"marketMakerSpreadBps"`
	MarketMakerOrders    int     `json:"marketMakerOrders"`
	MarketMakerSize      float64 `json:"marketMakerSize"`
	MarketMakerRefresh   float64 `json:"marketMakerRefresh"`

	SimulateLatency     bool   `json:"simulateLatency"`
	MinExecutionLatency string `json:"minExecutionLatency"`
	MaxExecutionLatency string `json:"maxExecutionLatency"`

	SimulatePartialFills   bool    `json:"simulatePartialFills"`
	PartialFillProbability float64 `json:"partialFillProbability"`
	MinFillRatio           float64 `json:"minFillRatio"`

	Seed int64 `json:"seed"`
}

// PortfolioConfig describes the ledger.
type PortfolioConfig struct {
	InitialCapital float64 `json:"initialCapital"`
}

// PoolConfig describes the event pool arenas.
type PoolConfig struct {
	InitialCells int `json:"initialCells"`
	GrowthFactor int `json:"growthFactor"`
	MaxCells     int `json:"maxCells"`
}

// FeedConfig describes the market data input.
type FeedConfig struct {
	Path   string `json:"path"`
	Format string `json:"format"`
}

// StoreConfig describes the results database.
type StoreConfig struct {
	Enabled  bool   `json:"enabled"`
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// StrategyConfig selects and parameterizes the strategy per symbol.
type StrategyConfig struct {
	Name       string             `json:"name"`
	Symbols    []string           `json:"symbols"`
	Parameters map[string]float64 `json:"parameters"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Bus       bus.Config
	Engine    engine.Config
	Executor  exec.Config
	Pool      pool.Config
	Portfolio PortfolioConfig
	Feed      FeedConfig
	Store     StoreConfig
	Strategy  StrategyConfig
	Risk      risk.Config
}

// Load reads a JSON config file and resolves defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

// Default returns the configuration used when no file is given.
func Default() Loaded {
	loaded, _ := resolve(FileConfig{})
	return loaded
}

func resolve(cfg FileConfig) (Loaded, error) {
	useRing := true
	if cfg.Bus.UseRing != nil {
		useRing = *cfg.Bus.UseRing
	}
	capacity := cfg.Bus.Capacity
	if capacity <= 0 {
		capacity = 1 << 20
	}

	maxBatch, err := parseDuration(cfg.Engine.MaxBatchDuration, time.Millisecond)
	if err != nil {
		return Loaded{}, fmt.Errorf("engine.maxBatchDuration: %w", err)
	}
	spike, err := parseDuration(cfg.Engine.LatencySpikeThreshold, 10*time.Millisecond)
	if err != nil {
		return Loaded{}, fmt.Errorf("engine.latencySpikeThreshold: %w", err)
	}
	minLatency, err := parseDuration(cfg.Executor.MinExecutionLatency, 0)
	if err != nil {
		return Loaded{}, fmt.Errorf("executor.minExecutionLatency: %w", err)
	}
	maxLatency, err := parseDuration(cfg.Executor.MaxExecutionLatency, 0)
	if err != nil {
		return Loaded{}, fmt.Errorf("executor.maxExecutionLatency: %w", err)
	}

	initialCapital := cfg.Portfolio.InitialCapital
	if initialCapital <= 0 {
		initialCapital = 100_000
	}

	strategyName := cfg.Strategy.Name
	if strategyName == "" {
		strategyName = "sma_crossover"
	}

	executor := exec.Config{
		PerShareCommission:     cfg.Executor.PerShareCommission,
		PercentCommission:      cfg.Executor.PercentCommission,
		BidAskSpreadBps:        cfg.Executor.BidAskSpreadBps,
		SlippageFactor:         cfg.Executor.SlippageFactor,
		UseOrderBook:           cfg.Executor.UseOrderBook,
		TickSize:               cfg.Executor.TickSize,
		DepthLevels:            cfg.Executor.DepthLevels,
		EnableStats:            cfg.Executor.EnableStats,
		EnableMarketMaking:     cfg.Executor.EnableMarketMaking,
		MarketMakerSpreadBps:   cfg.Executor.MarketMakerSpreadBps,
		MarketMakerOrders:      cfg.Executor.MarketMakerOrders,
		MarketMakerSize:        cfg.Executor.MarketMakerSize,
		MarketMakerRefresh:     cfg.Executor.MarketMakerRefresh,
		SimulateLatency:        cfg.Executor.SimulateLatency,
		MinExecutionLatency:    minLatency,
		MaxExecutionLatency:    maxLatency,
		SimulatePartialFills:   cfg.Executor.SimulatePartialFills,
		PartialFillProbability: cfg.Executor.PartialFillProbability,
		MinFillRatio:           cfg.Executor.MinFillRatio,
		Seed:                   cfg.Executor.Seed,
	}
	executor.Validate()

	loaded := Loaded{
		Bus: bus.Config{
			UseRing:       useRing,
			Capacity:      capacity,
			WaitStrategy:  wait.ParseKind(cfg.Bus.WaitStrategy),
			MultiProducer: cfg.Bus.MultiProducer,
			MultiConsumer: cfg.Bus.MultiConsumer,
		},
		Engine: engine.Config{
			MaxEventsPerBatch:       cfg.Engine.MaxEventsPerBatch,
			MaxBatchDuration:        maxBatch,
			EnableLatencyMonitoring: cfg.Engine.EnableLatencyMonitoring,
			LatencySpikeThreshold:   spike,
		},
		Executor: executor,
		Pool: pool.Config{
			InitialCells: cfg.Pool.InitialCells,
			GrowthFactor: cfg.Pool.GrowthFactor,
			MaxCells:     cfg.Pool.MaxCells,
		},
		Portfolio: PortfolioConfig{InitialCapital: initialCapital},
		Feed:      cfg.Feed,
		Store:     cfg.Store,
		Strategy: StrategyConfig{
			Name:       strategyName,
			Symbols:    cfg.Strategy.Symbols,
			Parameters: cfg.Strategy.Parameters,
		},
		Risk: cfg.Risk,
	}
	return loaded, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return fallback, nil
	}
	return d, nil
}
