package store

import "time"

// Run is one persisted backtest run.
type Run struct {
	ID             string `gorm:"primaryKey;size:36"`
	StartedAt      time.Time
	FinishedAt     time.Time
	Symbols        string
	Strategy       string
	InitialCapital float64
	FinalEquity    float64
	EventsHandled  uint64

	Trades       []Trade       `gorm:"foreignKey:RunID"`
	EquityPoints []EquityPoint `gorm:"foreignKey:RunID"`
	Summary      Summary       `gorm:"foreignKey:RunID"`
}

// Trade is one persisted fill.
type Trade struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"index;size:36"`
	Symbol     string
	Side       string
	Qty        float64
	Price      float64
	Commission float64
	WallNanos  int64
}

// EquityPoint is one persisted equity curve sample.
type EquityPoint struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"index;size:36"`
	WallNanos int64
	Equity    float64
}

// Summary is the persisted analytics report for a run.
type Summary struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	RunID            string `gorm:"uniqueIndex;size:36"`
	TotalReturn      float64
	AnnualizedReturn float64
	Volatility       float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	WinRate          float64
	ProfitFactor     float64
	TradeCount       int
}
