package storage

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/klauspost/compress/zstd"
)

// MagicHeader opens every table snapshot file.
var MagicHeader = []byte("DASHTBL1")

type SnapshotWriter struct {
	encoder *zstd.Encoder
}

func NewSnapshotWriter() (*SnapshotWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &SnapshotWriter{encoder: enc}, nil
}

// WriteSnapshot writes rows to a snapshot file.
// Layout: header, one compressed block of newline-separated rows, row count.
func (sw *SnapshotWriter) WriteSnapshot(filename string, rows [][]byte) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	// 1. Write Header
	if _, err := f.Write(MagicHeader); err != nil {
		return err
	}

	// 2. Rows, one per line
	buf := new(bytes.Buffer)
	for _, row := range rows {
		buf.Write(bytes.TrimSpace(row))
		buf.WriteByte('\n')
	}
	if err := sw.compressAndWrite(f, buf.Bytes()); err != nil {
		return err
	}

	// 3. Footer
	if err := binary.Write(f, binary.LittleEndian, uint32(len(rows))); err != nil {
		return err
	}
	return f.Sync()
}

func (sw *SnapshotWriter) compressAndWrite(f *os.File, raw []byte) error {
	compressed := sw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))

	// Write Compressed Size (uint32)
	size := uint32(len(compressed))
	if err := binary.Write(f, binary.LittleEndian, size); err != nil {
		return err
	}

	// Write Data
	_, err := f.Write(compressed)
	return err
}
