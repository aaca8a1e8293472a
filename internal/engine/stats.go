package engine

import "time"

// SearchStats describes one table scan.
type SearchStats struct {
	Scanned int           `json:"scanned"`
	Matched int           `json:"matched"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// TableStats contains high-level table metrics for API responses.
type TableStats struct {
	Rows          int     `json:"rows"`
	SizeBytes     int64   `json:"size_bytes"`
	IngestionRate float64 `json:"ingestion_rate"` // rows/sec
	CachedFilters int     `json:"cached_filters"`

	SearchLatency LatencyStats `json:"search_latency"`
}

// Stats summarizes t and the filters cached by c.
func Stats(t *Table, c *Compiler) TableStats {
	return TableStats{
		Rows:          t.Len(),
		SizeBytes:     t.SizeBytes(),
		IngestionRate: t.GetIngestionRate(),
		CachedFilters: c.Len(),
		SearchLatency: t.SearchLatency(),
	}
}
