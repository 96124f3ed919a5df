package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const maxEventType = int(schema.EventFill)

// Metrics collects lightweight counters and latency stats for one run.
type Metrics struct {
	eventCounts [maxEventType + 1]uint64
	queueDrops  uint64
	poolFails   uint64

	dispatchLatency LatencyStats
	executeLatency  LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts     map[schema.EventType]uint64
	QueueDrops      uint64
	PoolFailures    uint64
	DispatchLatency LatencySnapshot
	ExecuteLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent increments the counter for the event's variant.
func (m *Metrics) ObserveEvent(t schema.EventType) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncQueueDrop records a rejected publish.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncPoolFailure records a failed pool acquire.
func (m *Metrics) IncPoolFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.poolFails, 1)
}

// ObserveDispatch measures one event's dispatch latency.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// ObserveExecute measures one signal execution latency.
func (m *Metrics) ObserveExecute(d time.Duration) {
	if m == nil {
		return
	}
	m.executeLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	return Snapshot{
		EventCounts:     eventCounts,
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		PoolFailures:    atomic.LoadUint64(&m.poolFails),
		DispatchLatency: m.dispatchLatency.Snapshot(),
		ExecuteLatency:  m.executeLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
