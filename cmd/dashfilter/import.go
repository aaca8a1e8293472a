package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/valyala/fastjson"

	"github.com/rpmchale/dash-table/internal/engine"
	"github.com/rpmchale/dash-table/internal/storage"
)

// cmdImport loads NDJSON sources into a table and writes it as one snapshot
// that serve picks up from the data directory.
func cmdImport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data", "data", "directory to store snapshots in")
	query := fs.String("q", "", "only import rows matching this query")
	opts := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	compiler, err := opts.setup()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "usage: %s import -data <dir> [-q query] <file ...>\n", appName)
		return 2
	}

	f, err := compiler.Compile(*query)
	if err != nil {
		fmt.Fprintln(stderr, describeError(*query, err))
		return 1
	}

	table := engine.NewTable()
	var stats engine.SearchStats
	for _, path := range fs.Args() {
		it, err := storage.OpenRows(path)
		if err != nil {
			log.Errorf("%s: %v", path, err)
			return 1
		}
		n, err := importRows(table, it, f, &stats)
		it.Close()
		if err != nil {
			log.Errorf("%s: %v", path, err)
			return 1
		}
		log.Debugf("%s: %d rows", path, n)
	}

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Errorf("Failed to create data dir: %v", err)
		return 1
	}
	writer, err := storage.NewSnapshotWriter()
	if err != nil {
		log.Errorf("Failed to create writer: %v", err)
		return 1
	}
	path, err := engine.FlushTable(table, *dataDir, writer.WriteSnapshot)
	if err != nil {
		log.Errorf("Failed to write snapshot: %v", err)
		return 1
	}
	if path == "" {
		log.Warnf("No rows imported (%d scanned)", stats.Scanned)
		return 0
	}
	fmt.Fprintf(stdout, "%s: %d of %d rows\n", path, stats.Matched, stats.Scanned)
	return 0
}

func importRows(table *engine.Table, it storage.RowIterator, f *engine.Filter, stats *engine.SearchStats) (int, error) {
	n := 0
	var p fastjson.Parser
	for it.Next() {
		stats.Scanned++
		row, err := engine.ParseRow(&p, it.Row())
		if err != nil {
			log.Warnf("Skipping row %d: %v", stats.Scanned, err)
			continue
		}
		if !f.Match(row) {
			continue
		}
		if err := table.Append(it.Row()); err != nil {
			return n, err
		}
		stats.Matched++
		n++
	}
	return n, it.Error()
}
