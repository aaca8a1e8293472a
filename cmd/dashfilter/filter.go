package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"github.com/rpmchale/dash-table/internal/engine"
	"github.com/rpmchale/dash-table/internal/storage"
)

func cmdFilter(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("filter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	query := fs.String("q", "", "filter query")
	limit := fs.Int("limit", 0, "stop after this many matches (0 for all)")
	output := fs.String("o", "", "write matches to this file instead of stdout (.zst compresses)")
	opts := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	compiler, err := opts.setup()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	f, err := compiler.Compile(*query)
	if err != nil {
		fmt.Fprintln(stderr, describeError(*query, err))
		return 1
	}

	out, closeOut, err := openOutput(*output, stdout)
	if err != nil {
		log.Errorf("Failed to open output: %v", err)
		return 1
	}

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	start := time.Now()
	var stats engine.SearchStats
	for _, path := range files {
		if err := filterFile(path, stdin, f, *limit, out, &stats); err != nil {
			log.Errorf("%s: %v", path, err)
			closeOut()
			return 1
		}
		if *limit > 0 && stats.Matched >= *limit {
			break
		}
	}
	if err := closeOut(); err != nil {
		log.Errorf("Failed to write output: %v", err)
		return 1
	}
	stats.Elapsed = time.Since(start)

	log.Infof("Scanned %d rows, matched %d in %v", stats.Scanned, stats.Matched, stats.Elapsed)
	return 0
}

// filterFile writes the rows of path matching f to out, one per line.
func filterFile(path string, stdin io.Reader, f *engine.Filter, limit int, out io.Writer, stats *engine.SearchStats) error {
	var (
		it  storage.RowIterator
		err error
	)
	if path == "-" {
		it, err = storage.NewRowIterator(io.NopCloser(stdin), false)
	} else {
		it, err = storage.OpenRows(path)
	}
	if err != nil {
		return err
	}
	defer it.Close()

	var p fastjson.Parser
	for it.Next() {
		if limit > 0 && stats.Matched >= limit {
			return nil
		}
		stats.Scanned++

		row, err := engine.ParseRow(&p, it.Row())
		if err != nil {
			log.Warnf("%s: skipping row %d: %v", path, stats.Scanned, err)
			continue
		}
		if !f.Match(row) {
			continue
		}
		stats.Matched++
		if _, err := out.Write(it.Row()); err != nil {
			return err
		}
		if _, err := out.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	return it.Error()
}

// openOutput returns a buffered writer for path, stdout when path is empty.
// The returned function flushes and closes it.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		bw := bufio.NewWriter(stdout)
		return bw, bw.Flush, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	bw := bufio.NewWriter(file)
	if !strings.HasSuffix(path, ".zst") {
		return bw, func() error {
			if err := bw.Flush(); err != nil {
				file.Close()
				return err
			}
			return file.Close()
		}, nil
	}

	enc, err := zstd.NewWriter(bw)
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return enc, func() error {
		if err := enc.Close(); err != nil {
			file.Close()
			return err
		}
		if err := bw.Flush(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}, nil
}
