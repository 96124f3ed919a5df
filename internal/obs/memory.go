package obs

import (
	"context"
	"log"
	"runtime"
	"strconv"
	"time"
)

// MemoryReporter samples runtime memory stats on a schedule and prints a
// compact one-line report. The steady-state dispatch path is supposed to
// allocate nothing; a growing alloc rate between bars is the first sign a
// hot path regressed.
type MemoryReporter struct {
	buf        [512]byte
	prev, curr runtime.MemStats
	prevAt     time.Time
	currAt     time.Time
}

// RunReportSchedule samples and prints every interval until the context is
// done.
func (m *MemoryReporter) RunReportSchedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Snapshot()
			m.Print()
		}
	}
}

// Snapshot reads current memory stats, keeping the previous reading for
// rate computation.
func (m *MemoryReporter) Snapshot() {
	m.prev, m.curr = m.curr, m.prev
	m.prevAt = m.currAt
	m.currAt = time.Now()

	runtime.ReadMemStats(&m.curr)

	if m.prevAt.IsZero() {
		m.prevAt = m.currAt
	}
}

// Print builds the current report line in a reused buffer and logs it. The
// final log call copies the line into a new string, so Print allocates once
// per call.
func (m *MemoryReporter) Print() {
	line := m.buf[:0]

	dt := m.currAt.Sub(m.prevAt).Seconds()
	if dt <= 0 {
		dt = 1
	}

	line = append(line, "[HEAP] alloc="...)
	b, unit := bytesCarry(m.curr.HeapAlloc)
	line = strconv.AppendUint(line, b, 10)
	line = append(line, unit...)

	line = append(line, " grow="...)
	b, unit = bytesCarry(m.curr.TotalAlloc - m.prev.TotalAlloc)
	line = strconv.AppendUint(line, b, 10)
	line = append(line, unit...)

	line = append(line, " objects="...)
	line = strconv.AppendUint(line, m.curr.HeapObjects, 10)

	line = append(line, " mallocs="...)
	line = strconv.AppendUint(line, m.curr.Mallocs-m.prev.Mallocs, 10)

	line = append(line, " [GC] times="...)
	line = strconv.AppendUint(line, uint64(m.curr.NumGC-m.prev.NumGC), 10)

	line = append(line, " stw_ms="...)
	stwMs := float64(m.curr.PauseTotalNs-m.prev.PauseTotalNs) / 1_000_000.0
	line = strconv.AppendFloat(line, stwMs, 'f', 4, 64)

	log.Print(string(line))
}

func bytesCarry(v uint64) (uint64, string) {
	switch {
	case v >= 1<<30:
		return v >> 30, "gb"
	case v >= 1<<20:
		return v >> 20, "mb"
	case v >= 1<<10:
		return v >> 10, "kb"
	default:
		return v, "b"
	}
}
