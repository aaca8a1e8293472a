package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btclog"
)

// snapshotName returns the path of a new snapshot written at ts.
// Filename format: table_{UnixNano}.dtbl
func snapshotName(dataDir string, ts int64) string {
	return filepath.Join(dataDir, fmt.Sprintf("table_%d%s", ts, SnapshotFileExt))
}

// ListSnapshots returns the snapshots in dataDir, oldest first. Files with an
// unexpected name are skipped.
func ListSnapshots(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type snapshot struct {
		path string
		ts   int64
	}
	var found []snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SnapshotFileExt) {
			continue
		}
		ts, err := extractTimestamp(entry.Name())
		if err != nil {
			continue
		}
		found = append(found, snapshot{filepath.Join(dataDir, entry.Name()), ts})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ts < found[j].ts })

	paths := make([]string, len(found))
	for i, s := range found {
		paths[i] = s.path
	}
	return paths, nil
}

// purgeSnapshots removes the snapshots in dataDir older than keep, which
// holds all of their rows.
func purgeSnapshots(dataDir, keep string, log btclog.Logger) int {
	keepTs, err := extractTimestamp(filepath.Base(keep))
	if err != nil {
		return 0
	}
	paths, err := ListSnapshots(dataDir)
	if err != nil {
		log.Errorf("Cleaner error: failed to read data dir: %v", err)
		return 0
	}

	removed := 0
	for _, path := range paths {
		ts, _ := extractTimestamp(filepath.Base(path))
		if ts >= keepTs || path == keep {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Errorf("Cleaner error: failed to delete %s: %v", path, err)
			continue
		}
		log.Debugf("Compacted snapshot deleted: %s", filepath.Base(path))
		removed++
	}
	return removed
}

func extractTimestamp(filename string) (int64, error) {
	// table_1735230000000000000.dtbl
	base := strings.TrimSuffix(filename, SnapshotFileExt)
	parts := strings.Split(base, "_")
	if len(parts) != 2 || parts[0] != "table" {
		return 0, fmt.Errorf("invalid format")
	}
	return strconv.ParseInt(parts[1], 10, 64)
}
