package portfolio

import (
	"testing"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initial = 100_000.0

func TestBarWithoutPosition(t *testing.T) {
	l := NewLedger(initial)
	l.OnBar(schema.Bar{Symbol: "A", Close: 100}, 1)

	curve := l.EquityCurve()
	require.Len(t, curve, 1, "no position: only the initial equity point")
	assert.Equal(t, initial, curve[0].Equity)

	_, err := l.Snapshot("A")
	assert.ErrorIs(t, err, exception.ErrPositionUnknown)

	total, _, _ := l.PositionCount()
	assert.Equal(t, 0, total)
}

// Buy 100 @ 150 with commission 5, then a bar closing at 155.
func TestLongOpenAndMark(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 150, Commission: 5}, 1)

	assert.InDelta(t, initial-15005, l.AvailableCash(), 1e-9)

	l.OnBar(schema.Bar{Symbol: "A", Close: 155}, 2)

	view, err := l.Snapshot("A")
	require.NoError(t, err)
	assert.InDelta(t, 100, view.Qty, 1e-9)
	assert.InDelta(t, 150, view.EntryPrice, 1e-9)
	assert.InDelta(t, 155, view.MarkPrice, 1e-9)
	assert.InDelta(t, 500, view.UnrealizedPnL, 1e-9)
	assert.InDelta(t, initial-15005+15500, l.TotalEquity(), 1e-9)

	curve := l.EquityCurve()
	require.Len(t, curve, 2)
	assert.InDelta(t, initial-15005+15500, curve[1].Equity, 1e-9)
}

// Continuing: sell 100 @ 160 with commission 5 closes the position.
func TestLongClose(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 150, Commission: 5}, 1)
	l.OnBar(schema.Bar{Symbol: "A", Close: 155}, 2)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideSell, Qty: 100, Price: 160, Commission: 5}, 3)

	assert.InDelta(t, initial-15005+16000-5, l.AvailableCash(), 1e-9)

	_, err := l.Snapshot("A")
	assert.ErrorIs(t, err, exception.ErrPositionUnknown, "flat position leaves the map")
	assert.InDelta(t, 1000, l.TotalRealizedPnL(), 1e-9)
	assert.InDelta(t, 0, l.TotalUnrealizedPnL(), 1e-9)
}

// Round trip at the same price with zero commission restores everything.
func TestFlatRoundTrip(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 50, Commission: 0}, 1)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideSell, Qty: 100, Price: 50, Commission: 0}, 2)

	assert.InDelta(t, initial, l.AvailableCash(), 1e-9)
	assert.InDelta(t, 0, l.TotalRealizedPnL(), 1e-9)
	assert.InDelta(t, 0, l.TotalUnrealizedPnL(), 1e-9)
	total, _, _ := l.PositionCount()
	assert.Equal(t, 0, total)
}

func TestEquityIdentity(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 10, Price: 100, Commission: 1}, 1)
	l.ApplyFill(schema.Fill{Symbol: "B", Side: schema.SideSell, Qty: 5, Price: 200, Commission: 1}, 2)
	l.OnBar(schema.Bar{Symbol: "A", Close: 110}, 3)
	l.OnBar(schema.Bar{Symbol: "B", Close: 190}, 4)

	assert.InDelta(t, l.AvailableCash()+l.TotalMarketValue(), l.TotalEquity(), 1e-9)
}

func TestEntryPriceWeightedOnAdd(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 100, Commission: 0}, 1)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 110, Commission: 0}, 2)

	view, err := l.Snapshot("A")
	require.NoError(t, err)
	assert.InDelta(t, 105, view.EntryPrice, 1e-9)
	assert.InDelta(t, 200, view.Qty, 1e-9)
}

func TestEntryPriceUnchangedOnReduce(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 100, Commission: 0}, 1)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideSell, Qty: 40, Price: 120, Commission: 0}, 2)

	view, err := l.Snapshot("A")
	require.NoError(t, err)
	assert.InDelta(t, 100, view.EntryPrice, 1e-9)
	assert.InDelta(t, 60, view.Qty, 1e-9)
	assert.InDelta(t, 40*(120-100), view.RealizedPnL, 1e-9)
}

func TestDirectionFlipResetsEntry(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 100, Commission: 0}, 1)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideSell, Qty: 150, Price: 110, Commission: 0}, 2)

	view, err := l.Snapshot("A")
	require.NoError(t, err)
	assert.InDelta(t, -50, view.Qty, 1e-9)
	assert.InDelta(t, 110, view.EntryPrice, 1e-9)
	assert.InDelta(t, 100*(110-100), view.RealizedPnL, 1e-9)
}

func TestShortPosition(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideSell, Qty: 100, Price: 100, Commission: 0}, 1)

	assert.InDelta(t, initial+10000, l.AvailableCash(), 1e-9)
	view, err := l.Snapshot("A")
	require.NoError(t, err)
	assert.InDelta(t, -100, view.Qty, 1e-9)

	l.OnBar(schema.Bar{Symbol: "A", Close: 90}, 2)
	view, err = l.Snapshot("A")
	require.NoError(t, err)
	assert.InDelta(t, 1000, view.UnrealizedPnL, 1e-9, "short profits when price drops")

	total, long, short := l.PositionCount()
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, long)
	assert.Equal(t, 1, short)
}

func TestRealizedLossDecreases(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 100, Price: 100, Commission: 0}, 1)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideSell, Qty: 100, Price: 95, Commission: 0}, 2)

	assert.InDelta(t, -500, l.TotalRealizedPnL(), 1e-9)
}

func TestTradeHistoryRecordsFills(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 10, Price: 100, Commission: 1}, 7)

	trades := l.TradeHistory()
	require.Len(t, trades, 1)
	assert.Equal(t, "A", trades[0].Symbol)
	assert.Equal(t, schema.SideBuy, trades[0].Side)
	assert.Equal(t, int64(7), trades[0].WallNanos)
}

func TestSnapshotAll(t *testing.T) {
	l := NewLedger(initial)
	l.ApplyFill(schema.Fill{Symbol: "A", Side: schema.SideBuy, Qty: 10, Price: 100, Commission: 0}, 1)
	l.ApplyFill(schema.Fill{Symbol: "B", Side: schema.SideBuy, Qty: 20, Price: 50, Commission: 0}, 2)

	views := l.SnapshotAll()
	assert.Len(t, views, 2)
}
