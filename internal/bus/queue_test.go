package bus

import (
	"testing"

	"main/internal/schema"
	"main/internal/wait"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(i int) *schema.Event {
	return &schema.Event{
		Header: schema.EventHeader{Type: schema.EventBar},
		Bar:    schema.Bar{Close: float64(i)},
	}
}

func backends(t *testing.T) map[string]Bus {
	t.Helper()
	return map[string]Bus{
		"ring":  New(Config{UseRing: true, Capacity: 8, WaitStrategy: wait.KindYield}),
		"queue": New(Config{UseRing: false, Capacity: 8}),
	}
}

func TestPublishConsumeContract(t *testing.T) {
	for name, b := range backends(t) {
		ev := testEvent(1)
		require.True(t, b.TryPublish(ev), name)
		assert.Equal(t, 1, b.Size(), name)
		assert.False(t, b.Empty(), name)

		got := b.TryConsume()
		require.Same(t, ev, got, name)
		assert.True(t, b.Empty(), name)
		assert.Nil(t, b.TryConsume(), name)
	}
}

func TestTryPublishFull(t *testing.T) {
	for name, b := range backends(t) {
		for i := 0; i < b.Capacity(); i++ {
			require.True(t, b.TryPublish(testEvent(i)), name)
		}
		assert.False(t, b.TryPublish(testEvent(99)), name)

		require.NotNil(t, b.TryConsume(), name)
		assert.True(t, b.TryPublish(testEvent(100)), name)
	}
}

func TestFIFOOrder(t *testing.T) {
	for name, b := range backends(t) {
		for i := 0; i < 5; i++ {
			require.True(t, b.TryPublish(testEvent(i)), name)
		}
		for i := 0; i < 5; i++ {
			ev := b.TryConsume()
			require.NotNil(t, ev, name)
			assert.Equal(t, float64(i), ev.Bar.Close, name)
		}
	}
}

func TestBlockingConsume(t *testing.T) {
	for name, b := range backends(t) {
		ev := testEvent(7)
		go b.Publish(ev)
		got := b.Consume()
		require.Same(t, ev, got, name)
	}
}
