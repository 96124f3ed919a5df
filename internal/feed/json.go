package feed

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"main/internal/bus"
	"main/internal/pool"
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// jsonBar mirrors one line of a line-delimited JSON bar file. Prices come
// in as decimals so exchange dumps with string-quoted numbers parse
// losslessly.
type jsonBar struct {
	Timestamp string          `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

func toFloat(d decimal.Decimal) (float64, bool) {
	v, err := strconv.ParseFloat(fmt.Sprint(d), 64)
	return v, err == nil
}

// JSONFeed streams bars from a line-delimited JSON file onto the bus.
type JSONFeed struct {
	path  string
	stats Stats
}

// NewJSON creates a feed over the given file path.
func NewJSON(path string) *JSONFeed {
	return &JSONFeed{path: path}
}

// Stats returns feed progress counters.
func (f *JSONFeed) Stats() Stats { return f.stats }

// Run reads the whole file and publishes each valid bar in file order.
func (f *JSONFeed) Run(ctx context.Context, b bus.Bus, p *pool.Pool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return errors.Wrap(err, "open feed file")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lastTs := int64(0)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		f.stats.Rows++

		var row jsonBar
		if err := sonic.ConfigFastest.Unmarshal(line, &row); err != nil {
			f.stats.Skipped++
			continue
		}
		bar, ts, ok := row.toBar()
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
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan feed file")
	}

	logs.Info("feed: done, rows=", f.stats.Rows, " published=", f.stats.Published, " skipped=", f.stats.Skipped)
	return nil
}

func (r jsonBar) toBar() (schema.Bar, int64, bool) {
	ts, ok := parseTimestamp(r.Timestamp)
	if !ok || r.Symbol == "" {
		return schema.Bar{}, 0, false
	}
	open, ok1 := toFloat(r.Open)
	high, ok2 := toFloat(r.High)
	low, ok3 := toFloat(r.Low)
	close, ok4 := toFloat(r.Close)
	volume, ok5 := toFloat(r.Volume)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return schema.Bar{}, 0, false
	}
	bar := schema.Bar{
		Symbol: r.Symbol,
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
