package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

var ErrInvalidHeader = errors.New("invalid table snapshot header")

// footerSize is the row count trailing a snapshot.
const footerSize = 4

// maxRowSize bounds a single NDJSON line.
const maxRowSize = 4 << 20

type SnapshotReader struct {
	decoder *zstd.Decoder
}

func NewSnapshotReader() (*SnapshotReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &SnapshotReader{decoder: dec}, nil
}

// ReadSnapshot reads all rows of a snapshot file.
func (sr *SnapshotReader) ReadSnapshot(filename string) ([][]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// 1. Validate Header
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header, MagicHeader) {
		return nil, ErrInvalidHeader
	}

	// 2. Read Footer (at end of file)
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < int64(len(MagicHeader)+4+footerSize) {
		return nil, errors.New("file too small")
	}
	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-footerSize); err != nil {
		return nil, err
	}
	rowCount := int(binary.LittleEndian.Uint32(footer))

	// 3. Rows
	data, err := sr.readAndDecompress(f)
	if err != nil {
		return nil, err
	}
	rows := splitRows(data)
	if len(rows) != rowCount {
		return nil, fmt.Errorf("row count mismatch: footer says %d, block holds %d", rowCount, len(rows))
	}
	return rows, nil
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
func (sr *SnapshotReader) readAndDecompress(r io.Reader) ([]byte, error) {
	// Read compressed size (uint32)
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}

	// Read compressed data
	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}

	return sr.decoder.DecodeAll(compressed, nil)
}

func splitRows(data []byte) [][]byte {
	var rows [][]byte
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}

// RowIterator provides a row-by-row view of a row source.
type RowIterator interface {
	Next() bool
	Row() []byte
	Error() error
	Close() error
}

// OpenRows opens a newline-delimited JSON source. Paths ending in .zst are
// decompressed while reading and "-" reads standard input.
func OpenRows(path string) (RowIterator, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if path == "-" {
		rc = io.NopCloser(os.Stdin)
	} else {
		rc, err = os.Open(path)
		if err != nil {
			return nil, err
		}
	}
	return NewRowIterator(rc, strings.HasSuffix(path, ".zst"))
}

// NewRowIterator reads NDJSON rows from rc, which is closed by Close.
func NewRowIterator(rc io.ReadCloser, compressed bool) (RowIterator, error) {
	it := &LineIterator{closer: rc}
	var r io.Reader = rc
	if compressed {
		dec, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		it.decoder = dec
		r = dec
	}
	it.scanner = bufio.NewScanner(r)
	it.scanner.Buffer(make([]byte, 64*1024), maxRowSize)
	return it, nil
}

type LineIterator struct {
	scanner *bufio.Scanner
	decoder *zstd.Decoder
	closer  io.Closer

	line int
	row  []byte
}

func (it *LineIterator) Next() bool {
	for it.scanner.Scan() {
		it.line++
		row := bytes.TrimSpace(it.scanner.Bytes())
		if len(row) == 0 {
			continue
		}
		it.row = row
		return true
	}
	return false
}

// Row returns the current row. It is overwritten by the next call to Next.
func (it *LineIterator) Row() []byte {
	return it.row
}

// Line returns the 1-based line number of the current row.
func (it *LineIterator) Line() int {
	return it.line
}

func (it *LineIterator) Error() error {
	return it.scanner.Err()
}

func (it *LineIterator) Close() error {
	if it.decoder != nil {
		it.decoder.Close()
	}
	return it.closer.Close()
}
