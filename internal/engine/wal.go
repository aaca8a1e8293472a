package engine

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// WALFileName is the name of the write-ahead log inside a data directory.
const WALFileName = "wal.log"

// WAL handles write-ahead logging of appended rows so that rows received
// since the last checkpoint survive a crash.
type WAL struct {
	file *os.File
	path string
	mu   sync.Mutex
}

// OpenWAL opens or creates a WAL file at the specified path.
func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &WAL{
		file: f,
		path: path,
	}, nil
}

// Write records one JSON row.
func (w *WAL) Write(row []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Format: [Len uint32][JSON Bytes]
	buf := make([]byte, 4+len(row))
	binary.LittleEndian.PutUint32(buf, uint32(len(row)))
	copy(buf[4:], row)

	_, err := w.file.Write(buf)
	return err
}

// Sync flushes the WAL file buffers to disk.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Reset truncates the WAL file.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err := w.file.Seek(0, 0)
	return err
}

// Close closes the WAL file.
func (w *WAL) Close() error {
	return w.file.Close()
}

// Replay reads the WAL and returns every complete row. A record cut short by
// a crash ends the replay; the rows before it are returned with the error.
func (w *WAL) Replay() ([][]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, err
	}

	var rows [][]byte
	lenBuf := make([]byte, 4)
	for {
		_, err := io.ReadFull(w.file, lenBuf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("WAL replay error (len): %w", err)
		}

		length := binary.LittleEndian.Uint32(lenBuf)
		data := make([]byte, length)
		if _, err := io.ReadFull(w.file, data); err != nil {
			return rows, fmt.Errorf("WAL replay error (data): %w", err)
		}
		rows = append(rows, data)
	}

	return rows, nil
}
