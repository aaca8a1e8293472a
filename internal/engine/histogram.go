package engine

import (
	"sort"
	"strconv"
)

// HistogramPoint counts the matching rows holding one value of a column.
type HistogramPoint struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Histogram aggregates the rows matching f by the value of field, most
// frequent first. Rows without the field are counted under "null", and
// objects and arrays are counted under their JSON text.
func (t *Table) Histogram(f *Filter, field string) []HistogramPoint {
	// Map to store bucket counts: value -> count
	buckets := make(map[string]int)

	t.mu.RLock()
	p := t.parsers.Get()
	for _, data := range t.rows {
		row, err := ParseRow(p, data)
		if err != nil || !f.Match(row) {
			continue
		}
		buckets[bucketKey(row, field)]++
	}
	t.parsers.Put(p)
	t.mu.RUnlock()

	// Convert Map to Sorted Slice
	points := make([]HistogramPoint, 0, len(buckets))
	for v, c := range buckets {
		points = append(points, HistogramPoint{Value: v, Count: c})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Count != points[j].Count {
			return points[i].Count > points[j].Count
		}
		return points[i].Value < points[j].Value
	})

	return points
}

func bucketKey(row JSONRow, field string) string {
	v := row.lookup(field)
	if v == nil {
		return "null"
	}
	switch x := toInterface(v).(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return string(v.MarshalTo(nil))
}
