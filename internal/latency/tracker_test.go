package latency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAggregates(t *testing.T) {
	tr := NewTracker(16, 0)
	tr.Observe(10 * time.Microsecond)
	tr.Observe(20 * time.Microsecond)
	tr.Observe(30 * time.Microsecond)

	assert.Equal(t, uint64(3), tr.Count())
	assert.Equal(t, 30*time.Microsecond, tr.Max())
	assert.Equal(t, 20*time.Microsecond, tr.Avg())
}

func TestPercentiles(t *testing.T) {
	tr := NewTracker(128, 0)
	for i := 1; i <= 100; i++ {
		tr.Observe(time.Duration(i) * time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, tr.Percentile(50))
	assert.Equal(t, 95*time.Millisecond, tr.Percentile(95))
	assert.Equal(t, 99*time.Millisecond, tr.Percentile(99))
	assert.Equal(t, time.Duration(0), tr.Percentile(0))
}

func TestSpikes(t *testing.T) {
	tr := NewTracker(16, time.Millisecond)
	tr.Observe(100 * time.Microsecond)
	tr.Observe(2 * time.Millisecond)
	tr.Observe(3 * time.Millisecond)

	assert.Equal(t, uint64(2), tr.Spikes())
	assert.True(t, tr.Spike(5*time.Millisecond))
	assert.False(t, tr.Spike(time.Microsecond))
}

func TestWindowWrap(t *testing.T) {
	tr := NewTracker(4, 0)
	for i := 0; i < 100; i++ {
		tr.Observe(time.Duration(i))
	}
	assert.Equal(t, uint64(100), tr.Count())
	// The window holds only the last 4 samples.
	assert.GreaterOrEqual(t, tr.Percentile(50), time.Duration(96))
}

func TestSummary(t *testing.T) {
	tr := NewTracker(16, time.Second)
	require.Equal(t, uint64(0), tr.Summary().Count)
	tr.Observe(time.Millisecond)
	s := tr.Summary()
	assert.Equal(t, uint64(1), s.Count)
	assert.Equal(t, time.Millisecond, s.Max)
}
