package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/valyala/fastjson"
)

func newTestTable(t *testing.T, rows ...string) *Table {
	t.Helper()
	tbl := NewTable()
	for _, r := range rows {
		if err := tbl.Append([]byte(r)); err != nil {
			t.Fatalf("Append(%s): %v", r, err)
		}
	}
	return tbl
}

func TestTableAppendRejectsNonObjects(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Append([]byte(`[1,2]`)); !errors.Is(err, ErrNotObject) {
		t.Errorf("Append(array) error = %v, want ErrNotObject", err)
	}
	if err := tbl.Append([]byte(`{"a":`)); err == nil {
		t.Error("Append(invalid JSON) should fail")
	}
	if tbl.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tbl.Len())
	}
}

func TestTableSearch(t *testing.T) {
	tbl := newTestTable(t,
		`{"id":1,"name":"alpha","created":"2020-05-01"}`,
		`{"id":2,"name":"beta","created":"2021-06-02"}`,
		`{"id":3,"name":"gamma","created":"2021-07-03","meta":{"tier":"gold"}}`,
	)
	c := NewCompiler(testLexicon, 8)

	tests := []struct {
		query string
		limit int
		ids   []float64
	}{
		{"", 0, []float64{3, 2, 1}},
		{"{id} is odd", 0, []float64{3, 1}},
		{"year({created}) = 2021", 0, []float64{3, 2}},
		{"year({created}) = 2021", 1, []float64{3}},
		{`{meta.tier} = "gold"`, 0, []float64{3}},
		{`{meta} is object`, 0, []float64{3}},
		{`{name} contains "ALPHA" or {id} >= 3`, 0, []float64{3, 1}},
		{"{missing} is nil and {id} < 2", 0, []float64{1}},
	}

	var p fastjson.Parser
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			f, err := c.Compile(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			rows, stats := tbl.Search(f, tt.limit)
			if len(rows) != len(tt.ids) || stats.Matched != len(tt.ids) {
				t.Fatalf("got %d rows (%d matched), want %d", len(rows), stats.Matched, len(tt.ids))
			}
			for i, raw := range rows {
				row, err := ParseRow(&p, raw)
				if err != nil {
					t.Fatal(err)
				}
				id, _ := row.Get("id")
				if id != tt.ids[i] {
					t.Errorf("row %d: id %v, want %v", i, id, tt.ids[i])
				}
			}
		})
	}
}

func TestFlushTable(t *testing.T) {
	tbl := newTestTable(t, `{"a":1}`, `{"a":2}`)
	dir := t.TempDir()

	var written [][]byte
	path, err := FlushTable(tbl, dir, func(filename string, rows [][]byte) error {
		written = rows
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != SnapshotFileExt {
		t.Errorf("unexpected snapshot path %q", path)
	}
	if len(written) != 2 {
		t.Errorf("flushed %d rows, want 2", len(written))
	}
	if tbl.Len() != 0 || tbl.SizeBytes() != 0 {
		t.Errorf("table not emptied: %d rows, %d bytes", tbl.Len(), tbl.SizeBytes())
	}

	path, err = FlushTable(tbl, dir, func(string, [][]byte) error {
		t.Error("writer called for an empty table")
		return nil
	})
	if err != nil || path != "" {
		t.Errorf("empty flush = %q, %v", path, err)
	}
}

func TestFlushTableKeepsRowsOnError(t *testing.T) {
	tbl := newTestTable(t, `{"a":1}`)
	boom := errors.New("disk full")
	if _, err := FlushTable(tbl, t.TempDir(), func(string, [][]byte) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("FlushTable error = %v, want %v", err, boom)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d after failed flush, want 1", tbl.Len())
	}
}

func TestTableSearchLatency(t *testing.T) {
	tbl := newTestTable(t, `{"a":1}`)
	if got := tbl.SearchLatency(); got.Count != 0 {
		t.Fatalf("fresh table latency = %+v", got)
	}
	c := NewCompiler(testLexicon, 8)
	f, err := c.Compile("{a} = 1")
	if err != nil {
		t.Fatal(err)
	}
	tbl.Search(f, 0)
	tbl.Search(f, 0)

	got := tbl.SearchLatency()
	if got.Count != 2 || got.P50 < 1 || got.Max < got.P50 {
		t.Errorf("latency = %+v", got)
	}
}
