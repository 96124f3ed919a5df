package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"main/internal/wait"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	loaded := Default()
	assert.True(t, loaded.Bus.UseRing)
	assert.Equal(t, 1<<20, loaded.Bus.Capacity)
	assert.Equal(t, wait.KindYield, loaded.Bus.WaitStrategy)
	assert.Equal(t, time.Millisecond, loaded.Engine.MaxBatchDuration)
	assert.Equal(t, 100_000.0, loaded.Portfolio.InitialCapital)
	assert.Equal(t, "sma_crossover", loaded.Strategy.Name)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"bus": {"useRing": false, "capacity": 4096, "waitStrategy": "busy"},
		"engine": {"maxEventsPerBatch": 50, "maxBatchDuration": "2ms"},
		"executor": {"perShareCommission": 0.01, "useOrderBook": true, "tickSize": 0.05},
		"portfolio": {"initialCapital": 250000},
		"feed": {"path": "bars.csv", "format": "csv"},
		"strategy": {"name": "rsi", "symbols": ["AAPL", "MSFT"], "parameters": {"period": 10}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, loaded.Bus.UseRing)
	assert.Equal(t, 4096, loaded.Bus.Capacity)
	assert.Equal(t, wait.KindBusy, loaded.Bus.WaitStrategy)
	assert.Equal(t, 50, loaded.Engine.MaxEventsPerBatch)
	assert.Equal(t, 2*time.Millisecond, loaded.Engine.MaxBatchDuration)
	assert.Equal(t, 0.01, loaded.Executor.PerShareCommission)
	assert.True(t, loaded.Executor.UseOrderBook)
	assert.Equal(t, 0.05, loaded.Executor.TickSize)
	assert.Equal(t, 250_000.0, loaded.Portfolio.InitialCapital)
	assert.Equal(t, "rsi", loaded.Strategy.Name)
	assert.Equal(t, []string{"AAPL", "MSFT"}, loaded.Strategy.Symbols)
	assert.Equal(t, 10.0, loaded.Strategy.Parameters["period"])
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine":{"maxBatchDuration":"oops"}}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.json")
	assert.Error(t, err)
}
