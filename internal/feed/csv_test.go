package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"main/internal/bus"
	"main/internal/clock"
	"main/internal/pool"
	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(b bus.Bus) []schema.Bar {
	var bars []schema.Bar
	for {
		ev := b.TryConsume()
		if ev == nil {
			return bars
		}
		bars = append(bars, ev.Bar)
	}
}

func TestCSVFeedPublishesBars(t *testing.T) {
	path := writeFile(t, "bars.csv",
		"timestamp,symbol,open,high,low,close,volume\n"+
			"2024-01-02T09:30:00Z,AAPL,100,101,99,100.5,5000\n"+
			"2024-01-02T09:31:00Z,AAPL,100.5,102,100,101.5,6000\n")

	b := bus.New(bus.Config{UseRing: false, Capacity: 16})
	p := pool.New(clock.New(), pool.Config{InitialCells: 16})

	f := NewCSV(path)
	require.NoError(t, f.Run(context.Background(), b, p))

	bars := drain(b)
	require.Len(t, bars, 2)
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.InDelta(t, 100.5, bars[0].Close, 1e-9)
	assert.Equal(t, 2, f.Stats().Published)
	assert.Equal(t, 0, f.Stats().Skipped)
}

func TestCSVFeedSkipsInvalidRows(t *testing.T) {
	path := writeFile(t, "bars.csv",
		"timestamp,symbol,open,high,low,close,volume\n"+
			"2024-01-02T09:30:00Z,AAPL,100,99,99,100,5000\n"+ // high < open
			"2024-01-02T09:31:00Z,AAPL,100,101,99,x,5000\n"+ // bad close
			"2024-01-02T09:29:00Z,AAPL,100,101,99,100,5000\n"+ // time runs backwards later
			"2024-01-02T09:32:00Z,AAPL,100,101,99,100,5000\n")

	b := bus.New(bus.Config{UseRing: false, Capacity: 16})
	p := pool.New(clock.New(), pool.Config{InitialCells: 16})

	f := NewCSV(path)
	require.NoError(t, f.Run(context.Background(), b, p))
	assert.Equal(t, 4, f.Stats().Rows)
	assert.Equal(t, 2, f.Stats().Published)
	assert.Equal(t, 2, f.Stats().Skipped)
}

func TestCSVFeedRejectsBadHeader(t *testing.T) {
	path := writeFile(t, "bars.csv", "time,sym,o,h,l,c,v\n")
	b := bus.New(bus.Config{UseRing: false, Capacity: 4})
	p := pool.New(clock.New(), pool.Config{InitialCells: 4})
	assert.Error(t, NewCSV(path).Run(context.Background(), b, p))
}

func TestCSVFeedUnixTimestamps(t *testing.T) {
	path := writeFile(t, "bars.csv",
		"timestamp,symbol,open,high,low,close,volume\n"+
			"1704189000,AAPL,100,101,99,100.5,5000\n")
	b := bus.New(bus.Config{UseRing: false, Capacity: 4})
	p := pool.New(clock.New(), pool.Config{InitialCells: 4})
	require.NoError(t, NewCSV(path).Run(context.Background(), b, p))
	assert.Len(t, drain(b), 1)
}

func TestJSONFeedPublishesBars(t *testing.T) {
	path := writeFile(t, "bars.jsonl",
		`{"timestamp":"2024-01-02T09:30:00Z","symbol":"AAPL","open":"100","high":"101","low":"99","close":"100.5","volume":"5000"}`+"\n"+
			`{"timestamp":"2024-01-02T09:31:00Z","symbol":"AAPL","open":"100.5","high":"102","low":"100","close":"101.5","volume":"6000"}`+"\n")

	b := bus.New(bus.Config{UseRing: false, Capacity: 16})
	p := pool.New(clock.New(), pool.Config{InitialCells: 16})

	f := NewJSON(path)
	require.NoError(t, f.Run(context.Background(), b, p))

	bars := drain(b)
	require.Len(t, bars, 2)
	assert.InDelta(t, 101.5, bars[1].Close, 1e-9)
	assert.Equal(t, 2, f.Stats().Published)
}

func TestValid(t *testing.T) {
	good := schema.Bar{Symbol: "A", Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	assert.True(t, Valid(good))

	bad := good
	bad.High = 98
	assert.False(t, Valid(bad))

	bad = good
	bad.Low = 102
	assert.False(t, Valid(bad))

	bad = good
	bad.Volume = -1
	assert.False(t, Valid(bad))

	bad = good
	bad.Close = 0
	assert.False(t, Valid(bad))
}
