package feed

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"main/internal/bus"
	"main/internal/pool"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Columns expected in the input file, in order.
var header = []string{"timestamp", "symbol", "open", "high", "low", "close", "volume"}

// Stats counts feed progress.
type Stats struct {
	Rows      int
	Published int
	Skipped   int
}

// CSVFeed streams OHLCV bars from a CSV file onto the bus in file order.
// The file must be sorted by non-decreasing timestamp; rows that fail
// validation are skipped and counted.
type CSVFeed struct {
	path  string
	stats Stats
}

// NewCSV creates a feed over the given file path.
func NewCSV(path string) *CSVFeed {
	return &CSVFeed{path: path}
}

// Stats returns feed progress counters.
func (f *CSVFeed) Stats() Stats { return f.stats }

// Run reads the whole file and publishes each valid bar. It blocks when
// the bus is full and returns on the first I/O error, a malformed header,
// or pool exhaustion.
func (f *CSVFeed) Run(ctx context.Context, b bus.Bus, p *pool.Pool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return errors.Wrap(err, "open feed file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)

	first, err := reader.Read()
	if err != nil {
		return errors.Wrap(err, "read feed header")
	}
	for i, name := range header {
		if first[i] != name {
			return errors.Errorf("feed header mismatch: got %q want %q", first[i], name)
		}
	}

	lastTs := int64(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read feed row")
		}
		f.stats.Rows++

		bar, ts, ok := parseRow(row)
		if !ok || ts < lastTs {
			f.stats.Skipped++
			continue
		}
		lastTs = ts

		ev := p.AcquireBar(bar)
		if ev == nil {
			return errors.Wrap(exception.ErrPoolExhausted, "feed acquire bar")
		}
		ev.Header.WallNanos = ts
		b.Publish(ev)
		f.stats.Published++
	}

	logs.Info("feed: done, rows=", f.stats.Rows, " published=", f.stats.Published, " skipped=", f.stats.Skipped)
	return nil
}

// parseRow validates one CSV row.
func parseRow(row []string) (schema.Bar, int64, bool) {
	ts, ok := parseTimestamp(row[0])
	if !ok {
		return schema.Bar{}, 0, false
	}
	symbol := row[1]
	if symbol == "" {
		return schema.Bar{}, 0, false
	}

	prices := make([]float64, 5)
	for i, raw := range row[2:7] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return schema.Bar{}, 0, false
		}
		prices[i] = v
	}
	open, high, low, close, volume := prices[0], prices[1], prices[2], prices[3], prices[4]

	bar := schema.Bar{
		Symbol: symbol,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
	if !Valid(bar) {
		return schema.Bar{}, 0, false
	}
	return bar, ts, true
}

// Valid checks the OHLCV consistency rules shared by every feed format.
func Valid(bar schema.Bar) bool {
	if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 || bar.Volume < 0 {
		return false
	}
	if bar.High < bar.Low || bar.High < bar.Open || bar.High < bar.Close {
		return false
	}
	if bar.Low > bar.Open || bar.Low > bar.Close {
		return false
	}
	return true
}

// parseTimestamp accepts RFC3339 or integer Unix seconds.
func parseTimestamp(raw string) (int64, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UnixNano(), true
	}
	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil && sec > 0 {
		return sec * int64(time.Second), true
	}
	return 0, false
}
