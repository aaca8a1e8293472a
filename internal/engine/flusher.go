package engine

import (
	"time"
)

// SnapshotFileExt is the extension of table snapshot files.
const SnapshotFileExt = ".dtbl"

// FlushFunc is a function type that writes rows to a file.
// This allows the engine package to not depend on storage package directly.
type FlushFunc func(filename string, rows [][]byte) error

// SnapshotReadFunc reads the rows of one snapshot file.
type SnapshotReadFunc func(filename string) ([][]byte, error)

// FlushTable writes the table to dataDir using the provided writer function
// and drops the written rows from it. It returns the written path, or "" for an empty table.
func FlushTable(t *Table, dataDir string, writerFn FlushFunc) (string, error) {
	rows := t.Rows()
	if len(rows) == 0 {
		return "", nil
	}

	path := snapshotName(dataDir, time.Now().UnixNano())
	if err := writerFn(path, rows); err != nil {
		return "", err
	}

	t.discard(len(rows))
	return path, nil
}
