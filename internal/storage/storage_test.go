package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/klauspost/compress/zstd"
)

func TestSnapshotRoundTrip(t *testing.T) {
	w, err := NewSnapshotWriter()
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewSnapshotReader()
	if err != nil {
		t.Fatal(err)
	}

	rows := [][]byte{
		[]byte(`{"id":1,"name":"alpha"}`),
		[]byte(`{"id":2,"name":"beta"}`),
		[]byte(`{"id":3,"note":"multi word value"}`),
	}
	path := filepath.Join(t.TempDir(), "table_1.dtbl")
	if err := w.WriteSnapshot(path, rows); err != nil {
		t.Fatal(err)
	}

	got, err := r.ReadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, rows) {
		t.Errorf("ReadSnapshot =\n%s\nwant:\n%s", spew.Sdump(got), spew.Sdump(rows))
	}
}

func TestReadSnapshotInvalidHeader(t *testing.T) {
	r, _ := NewSnapshotReader()
	path := filepath.Join(t.TempDir(), "bad.dtbl")
	if err := os.WriteFile(path, []byte("NOTATABLE-FILE-AT-ALL"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadSnapshot(path); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("ReadSnapshot error = %v, want ErrInvalidHeader", err)
	}
}

func collect(t *testing.T, it RowIterator) []string {
	t.Helper()
	defer it.Close()
	var out []string
	for it.Next() {
		out = append(out, string(it.Row()))
	}
	if err := it.Error(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRowIterator(t *testing.T) {
	input := "{\"a\":1}\n\n  {\"a\":2}  \r\n{\"a\":3}"
	it, err := NewRowIterator(io.NopCloser(bytes.NewBufferString(input)), false)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)
	want := []string{`{"a":1}`, `{"a":2}`, `{"a":3}`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}
}

func TestOpenRowsCompressed(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte("{\"a\":1}\n{\"a\":2}\n")); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "rows.ndjson.zst")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	it, err := OpenRows(path)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)
	if len(got) != 2 || got[1] != `{"a":2}` {
		t.Errorf("rows = %q", got)
	}
}
