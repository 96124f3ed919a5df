package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"main/internal/analytics"
	"main/internal/bus"
	"main/internal/clock"
	"main/internal/engine"
	"main/internal/exec"
	"main/internal/export"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/pool"
	"main/internal/portfolio"
	"main/internal/risk"
	"main/internal/store"
	"main/internal/strategy"
	"main/pkg/conn"

	pyroscope "github.com/grafana/pyroscope-go"
)

func main() {
	if err := run(); err != nil {
		log.Printf("backtest: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	dataPath := flag.String("data", "", "Market data file (overrides config)")
	dataFormat := flag.String("format", "", "Feed format: csv or json (overrides config)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols (overrides config)")
	strategyFlag := flag.String("strategy", "", "Strategy name (overrides config)")
	outDir := flag.String("out-dir", "results", "Directory for CSV/JSON exports")
	profileAddr := flag.String("profile", "", "Pyroscope server address (empty=disabled)")
	memReport := flag.Duration("mem-report", 0, "Runtime memory report interval (0=disabled)")
	flag.Parse()

	if *profileAddr != "" {
		_, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "backtest-engine",
			ServerAddress:   *profileAddr,
		})
		if err != nil {
			return fmt.Errorf("start profiler: %w", err)
		}
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *dataPath != "" {
		loaded.Feed.Path = *dataPath
	}
	if *dataFormat != "" {
		loaded.Feed.Format = *dataFormat
	}
	if *symbolsFlag != "" {
		loaded.Strategy.Symbols = strings.Split(*symbolsFlag, ",")
	}
	if *strategyFlag != "" {
		loaded.Strategy.Name = *strategyFlag
	}
	if loaded.Feed.Path == "" {
		return fmt.Errorf("no market data file; use -data or config feed.path")
	}
	if len(loaded.Strategy.Symbols) == 0 {
		return fmt.Errorf("no symbols; use -symbols or config strategy.symbols")
	}

	clk := clock.New()
	eventPool := pool.New(clk, loaded.Pool)
	eventBus := bus.New(loaded.Bus)
	ledger := portfolio.NewLedger(loaded.Portfolio.InitialCapital)
	executor := exec.New(loaded.Executor, clk)
	metrics := obs.NewMetrics()
	eng := engine.New(loaded.Engine, eventBus, eventPool, ledger, executor, clk, metrics)
	if loaded.Risk != (risk.Config{}) {
		eng.SetRiskEngine(risk.NewEngine(loaded.Risk))
	}

	prototype, err := strategy.New(loaded.Strategy.Name, loaded.Strategy.Parameters)
	if err != nil {
		return err
	}
	for _, symbol := range loaded.Strategy.Symbols {
		eng.Register(symbol, prototype.Clone())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *memReport > 0 {
		var reporter obs.MemoryReporter
		go reporter.RunReportSchedule(ctx, *memReport)
	}
	startedAt := time.Now()

	engineErr := make(chan error, 1)
	go func() { engineErr <- eng.Run(ctx) }()

	if err := runFeed(ctx, loaded.Feed, eventBus, eventPool); err != nil {
		eng.Stop()
		<-engineErr
		return err
	}
	eng.StopWhenDrained()
	if err := <-engineErr; err != nil {
		return err
	}
	finishedAt := time.Now()

	curve := ledger.EquityCurve()
	trades := ledger.TradeHistory()
	report := analytics.Analyze(curve, trades)
	finalEquity := ledger.TotalEquity()

	log.Printf("run complete: events=%d fills=%d equity=%.2f return=%.4f sharpe=%.2f maxdd=%.4f",
		eng.Processed(), len(trades), finalEquity, report.TotalReturn, report.SharpeRatio, report.MaxDrawdown)
	if tracker := eng.Latency(); tracker != nil {
		summary := tracker.Summary()
		log.Printf("dispatch latency: p50=%v p95=%v p99=%v max=%v spikes=%d",
			summary.P50, summary.P95, summary.P99, summary.Max, summary.Spikes)
	}

	runID := ""
	if loaded.Store.Enabled {
		runID, err = persist(loaded, startedAt, finishedAt, finalEquity, eng.Processed(), curve, trades, report)
		if err != nil {
			return err
		}
	}

	return exportResults(*outDir, runID, loaded, finalEquity, curve, trades, report)
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Default(), nil
	}
	return ops.Load(path)
}

func runFeed(ctx context.Context, cfg ops.FeedConfig, b bus.Bus, p *pool.Pool) error {
	switch cfg.Format {
	case "", "csv":
		return feed.NewCSV(cfg.Path).Run(ctx, b, p)
	case "json":
		return feed.NewJSON(cfg.Path).Run(ctx, b, p)
	default:
		return fmt.Errorf("unknown feed format: %s", cfg.Format)
	}
}

func persist(loaded ops.Loaded, startedAt, finishedAt time.Time, finalEquity float64, events uint64,
	curve []portfolio.EquityPoint, trades []portfolio.TradeRecord, report analytics.Report) (string, error) {
	s, err := store.Open(conn.Option{
		Driver:   loaded.Store.Driver,
		Path:     loaded.Store.Path,
		Host:     loaded.Store.Host,
		Port:     loaded.Store.Port,
		User:     loaded.Store.User,
		Password: loaded.Store.Password,
		Database: loaded.Store.Database,
	})
	if err != nil {
		return "", err
	}
	defer s.Close()
	return s.Save(store.RunResult{
		Symbols:        loaded.Strategy.Symbols,
		Strategy:       loaded.Strategy.Name,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		InitialCapital: loaded.Portfolio.InitialCapital,
		FinalEquity:    finalEquity,
		EventsHandled:  events,
		EquityCurve:    curve,
		Trades:         trades,
		Report:         report,
	})
}

func exportResults(dir, runID string, loaded ops.Loaded, finalEquity float64,
	curve []portfolio.EquityPoint, trades []portfolio.TradeRecord, report analytics.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := export.EquityCurveCSV(filepath.Join(dir, "equity_curve.csv"), curve); err != nil {
		return err
	}
	if err := export.TradesCSV(filepath.Join(dir, "trades.csv"), trades); err != nil {
		return err
	}
	return export.SummaryJSON(filepath.Join(dir, "summary.json"), runID,
		loaded.Strategy.Name, loaded.Strategy.Symbols,
		loaded.Portfolio.InitialCapital, finalEquity, report)
}
