package exec

import (
	"sync/atomic"

	"main/internal/atomicf"
)

const latencyEMAAlpha = 0.1

// Stats aggregates execution activity with atomic fields.
type Stats struct {
	TotalExecutions atomic.Uint64
	PartialFills    atomic.Uint64
	FullFills       atomic.Uint64

	TotalVolume     atomicf.Float64
	TotalValue      atomicf.Float64
	TotalCommission atomicf.Float64

	AvgLatencyNanos atomicf.Float64
	MaxLatencyNanos atomicf.Float64

	BookOperations    atomic.Uint64
	MarketMakerQuotes atomic.Uint64
	MarketMakerFills  atomic.Uint64
}

// observe folds one execution into the counters. Latency updates keep an
// exponential moving average plus a CAS max.
func (s *Stats) observe(latencyNanos, volume, value, commission float64, partial bool) {
	s.TotalExecutions.Add(1)
	if partial {
		s.PartialFills.Add(1)
	} else {
		s.FullFills.Add(1)
	}
	s.TotalVolume.Add(volume)
	s.TotalValue.Add(value)
	s.TotalCommission.Add(commission)

	for {
		avg := s.AvgLatencyNanos.Load()
		next := latencyNanos
		if avg != 0 {
			next = latencyEMAAlpha*latencyNanos + (1-latencyEMAAlpha)*avg
		}
		if s.AvgLatencyNanos.CompareAndSwap(avg, next) {
			break
		}
	}
	for {
		max := s.MaxLatencyNanos.Load()
		if latencyNanos <= max {
			break
		}
		if s.MaxLatencyNanos.CompareAndSwap(max, latencyNanos) {
			break
		}
	}
}

// Snapshot is a plain-value copy of the statistics.
type Snapshot struct {
	TotalExecutions   uint64
	PartialFills      uint64
	FullFills         uint64
	TotalVolume       float64
	TotalValue        float64
	TotalCommission   float64
	AvgLatencyNanos   float64
	MaxLatencyNanos   float64
	BookOperations    uint64
	MarketMakerQuotes uint64
	MarketMakerFills  uint64
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		TotalExecutions:   s.TotalExecutions.Load(),
		PartialFills:      s.PartialFills.Load(),
		FullFills:         s.FullFills.Load(),
		TotalVolume:       s.TotalVolume.Load(),
		TotalValue:        s.TotalValue.Load(),
		TotalCommission:   s.TotalCommission.Load(),
		AvgLatencyNanos:   s.AvgLatencyNanos.Load(),
		MaxLatencyNanos:   s.MaxLatencyNanos.Load(),
		BookOperations:    s.BookOperations.Load(),
		MarketMakerQuotes: s.MarketMakerQuotes.Load(),
		MarketMakerFills:  s.MarketMakerFills.Load(),
	}
}
