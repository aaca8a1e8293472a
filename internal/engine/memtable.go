package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fastjson"
)

// ErrNotObject is returned when a row is not a JSON object.
var ErrNotObject = errors.New("row is not a JSON object")

// Table stores rows as raw JSON objects, in insertion order.
type Table struct {
	mu   sync.RWMutex
	rows [][]byte

	parsers fastjson.ParserPool

	// Metadata
	sizeBytes int64 // Raw row bytes held

	// Stats
	writeCounter int64   // Atomic counter for appends
	currentRate  float64 // Rows per second
	latency      *latencyRecorder
}

// NewTable initializes a Table with pre-allocated capacity.
func NewTable() *Table {
	return &Table{
		rows:    make([][]byte, 0, 4096),
		latency: newLatencyRecorder(),
	}
}

// Append validates data as a JSON object and adds a copy of it.
func (t *Table) Append(data []byte) error {
	p := t.parsers.Get()
	_, err := ParseRow(p, data)
	t.parsers.Put(p)
	if err != nil {
		return err
	}

	row := make([]byte, len(data))
	copy(row, data)

	t.mu.Lock()
	t.rows = append(t.rows, row)
	t.mu.Unlock()

	atomic.AddInt64(&t.sizeBytes, int64(len(row)))
	atomic.AddInt64(&t.writeCounter, 1)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// SizeBytes returns the raw size of all rows.
func (t *Table) SizeBytes() int64 {
	return atomic.LoadInt64(&t.sizeBytes)
}

// Rows returns a snapshot of the stored rows. The row slices must not be
// modified.
func (t *Table) Rows() [][]byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([][]byte, len(t.rows))
	copy(out, t.rows)
	return out
}

// discard drops the n oldest rows.
func (t *Table) discard(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > len(t.rows) {
		n = len(t.rows)
	}
	var size int64
	for _, row := range t.rows[:n] {
		size += int64(len(row))
	}
	t.rows = append(t.rows[:0:0], t.rows[n:]...)
	atomic.AddInt64(&t.sizeBytes, -size)
}

// Search returns rows matching f, newest first, up to limit rows. A limit
// of zero or less returns every match.
func (t *Table) Search(f *Filter, limit int) ([][]byte, SearchStats) {
	start := time.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	p := t.parsers.Get()
	defer t.parsers.Put(p)

	var (
		result [][]byte
		stats  SearchStats
	)
	// Scan backwards (newest first)
	for i := len(t.rows) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		stats.Scanned++

		row, err := ParseRow(p, t.rows[i])
		if err != nil {
			continue // rows are validated on Append
		}
		if !f.Match(row) {
			continue
		}
		stats.Matched++
		result = append(result, t.rows[i])
	}

	stats.Elapsed = time.Since(start)
	t.latency.record(stats.Elapsed)
	return result, stats
}

// StartStatsTicker starts a background ticker to calculate the append rate.
// It stops when done is closed.
func (t *Table) StartStatsTicker(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				count := atomic.SwapInt64(&t.writeCounter, 0)
				rate := float64(count) / interval.Seconds()
				t.mu.Lock()
				t.currentRate = rate
				t.mu.Unlock()
			}
		}
	}()
}

// SearchLatency summarizes the durations of past searches.
func (t *Table) SearchLatency() LatencyStats {
	return t.latency.stats()
}

// GetIngestionRate returns the current append rate (rows/sec).
func (t *Table) GetIngestionRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentRate
}
