package store

import (
	"strings"
	"time"

	"main/internal/analytics"
	"main/internal/portfolio"
	"main/pkg/conn"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Store persists completed runs into the results database.
type Store struct {
	client *conn.Client
}

// Open connects and migrates the results schema.
func Open(option conn.Option) (*Store, error) {
	client, err := conn.New(option)
	if err != nil {
		return nil, errors.Wrap(err, "open results database")
	}
	if err := client.DB().AutoMigrate(&Run{}, &Trade{}, &EquityPoint{}, &Summary{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate results schema")
	}
	return &Store{client: client}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

// RunResult bundles everything worth keeping from one run.
type RunResult struct {
	Symbols        []string
	Strategy       string
	StartedAt      time.Time
	FinishedAt     time.Time
	InitialCapital float64
	FinalEquity    float64
	EventsHandled  uint64
	EquityCurve    []portfolio.EquityPoint
	Trades         []portfolio.TradeRecord
	Report         analytics.Report
}

// Save writes one run and returns its generated id.
func (s *Store) Save(result RunResult) (string, error) {
	runID := uuid.NewString()
	run := Run{
		ID:             runID,
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
		Symbols:        strings.Join(result.Symbols, ","),
		Strategy:       result.Strategy,
		InitialCapital: result.InitialCapital,
		FinalEquity:    result.FinalEquity,
		EventsHandled:  result.EventsHandled,
	}
	for _, t := range result.Trades {
		run.Trades = append(run.Trades, Trade{
			RunID:      runID,
			Symbol:     t.Symbol,
			Side:       t.Side.String(),
			Qty:        t.Qty,
			Price:      t.Price,
			Commission: t.Commission,
			WallNanos:  t.WallNanos,
		})
	}
	for _, pt := range result.EquityCurve {
		run.EquityPoints = append(run.EquityPoints, EquityPoint{
			RunID:     runID,
			WallNanos: pt.WallNanos,
			Equity:    pt.Equity,
		})
	}
	run.Summary = Summary{
		RunID:            runID,
		TotalReturn:      result.Report.TotalReturn,
		AnnualizedReturn: result.Report.AnnualizedReturn,
		Volatility:       result.Report.Volatility,
		SharpeRatio:      result.Report.SharpeRatio,
		SortinoRatio:     result.Report.SortinoRatio,
		MaxDrawdown:      result.Report.MaxDrawdown,
		WinRate:          result.Report.WinRate,
		ProfitFactor:     result.Report.ProfitFactor,
		TradeCount:       result.Report.TradeCount,
	}

	if err := s.client.DB().Create(&run).Error; err != nil {
		return "", errors.Wrap(err, "persist run")
	}
	logs.Info("store: saved run ", runID, " trades=", len(run.Trades), " equity_points=", len(run.EquityPoints))
	return runID, nil
}
