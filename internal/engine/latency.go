package engine

import (
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
)

// Search latencies are recorded in microseconds, up to one minute.
const maxLatencyMicros = int64(time.Minute / time.Microsecond)

// LatencyStats summarizes recorded search latencies, in microseconds.
type LatencyStats struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean_us"`
	P50   int64   `json:"p50_us"`
	P95   int64   `json:"p95_us"`
	P99   int64   `json:"p99_us"`
	Max   int64   `json:"max_us"`
}

type latencyRecorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{hist: hdrhistogram.New(1, maxLatencyMicros, 3)}
}

func (l *latencyRecorder) record(d time.Duration) {
	us := int64(d / time.Microsecond)
	if us < 1 {
		us = 1
	}
	if us > maxLatencyMicros {
		us = maxLatencyMicros
	}
	l.mu.Lock()
	l.hist.RecordValue(us)
	l.mu.Unlock()
}

func (l *latencyRecorder) stats() LatencyStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hist.TotalCount() == 0 {
		return LatencyStats{}
	}
	return LatencyStats{
		Count: l.hist.TotalCount(),
		Mean:  l.hist.Mean(),
		P50:   l.hist.ValueAtQuantile(50),
		P95:   l.hist.ValueAtQuantile(95),
		P99:   l.hist.ValueAtQuantile(99),
		Max:   l.hist.Max(),
	}
}
