package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// DataDir holds snapshots and the WAL. An empty DataDir keeps the
	// store in memory only.
	DataDir string

	Compiler      *Compiler
	ReadSnapshot  SnapshotReadFunc
	WriteSnapshot FlushFunc
	Logger        btclog.Logger
}

// Store owns the table served to clients and its data lifecycle: snapshots
// loaded at startup, a WAL for rows appended since, and checkpoints that
// compact both into a single snapshot.
type Store struct {
	dataDir    string
	table      *Table
	compiler   *Compiler
	readerFunc SnapshotReadFunc
	writerFunc FlushFunc
	log        btclog.Logger

	// mu serializes appends with checkpoints
	mu    sync.Mutex
	dirty bool

	// WAL for crash recovery
	wal *WAL
}

// OpenStore loads the snapshots in cfg.DataDir, replays its WAL and returns
// the resulting store.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Compiler == nil {
		return nil, fmt.Errorf("store: no compiler")
	}
	log := cfg.Logger
	if log == nil {
		log = btclog.Disabled
	}

	s := &Store{
		dataDir:    cfg.DataDir,
		table:      NewTable(),
		compiler:   cfg.Compiler,
		readerFunc: cfg.ReadSnapshot,
		writerFunc: cfg.WriteSnapshot,
		log:        log,
	}
	if s.dataDir == "" {
		return s, nil
	}
	if s.readerFunc == nil || s.writerFunc == nil {
		return nil, fmt.Errorf("store: snapshot reader and writer are required with a data dir")
	}

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	snapshots, err := ListSnapshots(s.dataDir)
	if err != nil {
		return nil, err
	}
	for _, path := range snapshots {
		rows, err := s.readerFunc(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
		}
		s.load(rows, filepath.Base(path))
	}
	if len(snapshots) > 0 {
		s.log.Infof("Loaded %d rows from %d snapshots", s.table.Len(), len(snapshots))
	}

	s.wal, err = OpenWAL(filepath.Join(s.dataDir, WALFileName))
	if err != nil {
		return nil, fmt.Errorf("open WAL: %w", err)
	}

	// Crash Recovery: Replay WAL if it has data
	recovered, err := s.wal.Replay()
	if err != nil {
		s.log.Warnf("WAL replay warning: %v", err)
	}
	if len(recovered) > 0 {
		s.log.Infof("Crash recovery: replaying %d rows from WAL...", len(recovered))
		s.load(recovered, WALFileName)
		s.dirty = true
	}

	return s, nil
}

func (s *Store) load(rows [][]byte, source string) {
	for i, row := range rows {
		if err := s.table.Append(row); err != nil {
			s.log.Warnf("%s: skipping row %d: %v", source, i, err)
		}
	}
}

// Table returns the table holding the store's rows.
func (s *Store) Table() *Table {
	return s.table
}

// Compiler returns the compiler used by Search.
func (s *Store) Compiler() *Compiler {
	return s.compiler
}

// Ingest appends rows to the table and the WAL. Every row must be a JSON
// object; nothing is appended otherwise.
func (s *Store) Ingest(rows [][]byte) error {
	p := s.table.parsers.Get()
	for i, row := range rows {
		if _, err := ParseRow(p, row); err != nil {
			s.table.parsers.Put(p)
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	s.table.parsers.Put(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		// 1. Write to WAL first for durability
		if s.wal != nil {
			if err := s.wal.Write(row); err != nil {
				return fmt.Errorf("WAL write: %w", err)
			}
		}
		// 2. Append to table
		if err := s.table.Append(row); err != nil {
			return err
		}
	}
	s.dirty = s.dirty || len(rows) > 0
	return nil
}

// SyncWAL flushes the WAL file to disk.
func (s *Store) SyncWAL() {
	if s.wal != nil {
		if err := s.wal.Sync(); err != nil {
			s.log.Errorf("WAL sync error: %v", err)
		}
	}
}

// Search compiles query and scans the table with it.
func (s *Store) Search(query string, limit int) (*Filter, [][]byte, SearchStats, error) {
	f, err := s.compiler.Compile(query)
	if err != nil {
		return nil, nil, SearchStats{}, err
	}
	rows, stats := s.table.Search(f, limit)
	return f, rows, stats, nil
}

// Histogram compiles query and counts the matching rows by field.
func (s *Store) Histogram(query, field string) ([]HistogramPoint, error) {
	f, err := s.compiler.Compile(query)
	if err != nil {
		return nil, err
	}
	return s.table.Histogram(f, field), nil
}

// Stats summarizes the store's table and filter cache.
func (s *Store) Stats() TableStats {
	return Stats(s.table, s.compiler)
}

// Checkpoint writes every row to a new snapshot, truncates the WAL and
// removes the snapshots the new one supersedes. Rows stay in the table.
// It returns the written path, or "" when nothing changed since the last
// checkpoint.
func (s *Store) Checkpoint() (string, error) {
	if s.dataDir == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return "", nil
	}

	rows := s.table.Rows()
	path := snapshotName(s.dataDir, time.Now().UnixNano())

	// === Step 1: Write file to disk ===
	if err := s.writerFunc(path, rows); err != nil {
		return "", err
	}

	// === Step 2: Reset WAL ===
	if err := s.wal.Reset(); err != nil {
		s.log.Errorf("WAL reset error: %v", err)
	}
	s.dirty = false

	// === Step 3: Drop superseded snapshots ===
	removed := purgeSnapshots(s.dataDir, path, s.log)

	s.log.Infof("Checkpoint written: %s (%d rows, %d snapshots compacted)", filepath.Base(path), len(rows), removed)
	return path, nil
}

// RunCheckpointer periodically checkpoints the store until done is closed.
func (s *Store) RunCheckpointer(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debugf("Checkpointer started. Interval: %v", interval)

	for {
		select {
		case <-ticker.C:
			if _, err := s.Checkpoint(); err != nil {
				s.log.Errorf("Checkpoint failed: %v", err)
			}
		case <-done:
			return
		}
	}
}

// Close checkpoints pending rows and closes the WAL.
func (s *Store) Close() error {
	if s.wal == nil {
		return nil
	}
	if _, err := s.Checkpoint(); err != nil {
		s.wal.Close()
		return err
	}
	return s.wal.Close()
}
