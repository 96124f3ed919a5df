package export

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"main/internal/analytics"
	"main/internal/portfolio"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// EquityCurveCSV writes the equity samples to a CSV file.
func EquityCurveCSV(path string, curve []portfolio.EquityPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create equity csv")
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "equity"}); err != nil {
		return errors.Wrap(err, "write equity header")
	}
	for _, pt := range curve {
		row := []string{
			time.Unix(0, pt.WallNanos).UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(pt.Equity, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write equity row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush equity csv")
}

// TradesCSV writes the trade history to a CSV file.
func TradesCSV(path string, trades []portfolio.TradeRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create trades csv")
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "symbol", "side", "qty", "price", "commission"}); err != nil {
		return errors.Wrap(err, "write trades header")
	}
	for _, t := range trades {
		row := []string{
			time.Unix(0, t.WallNanos).UTC().Format(time.RFC3339Nano),
			t.Symbol,
			t.Side.String(),
			strconv.FormatFloat(t.Qty, 'f', -1, 64),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Commission, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write trades row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush trades csv")
}

// summaryDoc is the JSON layout for a run summary.
type summaryDoc struct {
	RunID          string           `json:"runId,omitempty"`
	Strategy       string           `json:"strategy"`
	Symbols        []string         `json:"symbols"`
	InitialCapital float64          `json:"initialCapital"`
	FinalEquity    float64          `json:"finalEquity"`
	Report         analytics.Report `json:"report"`
}

// SummaryJSON writes the run summary as JSON.
func SummaryJSON(path, runID, strategy string, symbols []string, initialCapital, finalEquity float64, report analytics.Report) error {
	doc := summaryDoc{
		RunID:          runID,
		Strategy:       strategy,
		Symbols:        symbols,
		InitialCapital: initialCapital,
		FinalEquity:    finalEquity,
		Report:         report,
	}
	payload, err := sonic.ConfigFastest.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal summary")
	}
	return errors.Wrap(os.WriteFile(path, payload, 0o644), "write summary json")
}
