// Command dashfilter parses, evaluates and serves table filter queries.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rpmchale/dash-table/internal/engine"
	"github.com/rpmchale/dash-table/internal/pkg/filterql"
)

const appName = "dashfilter"

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "parse":
		os.Exit(cmdParse(args, os.Stdout, os.Stderr))
	case "filter":
		os.Exit(cmdFilter(args, os.Stdin, os.Stdout, os.Stderr))
	case "import":
		os.Exit(cmdImport(args, os.Stdout, os.Stderr))
	case "repl":
		os.Exit(cmdRepl(args))
	case "serve":
		os.Exit(cmdServe(args))
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage:
  %[1]s parse [-tokens] <query>                    Print the canonical form of a query.
  %[1]s filter -q <query> [-limit n] [-o out] [file ...]
                                                   Print the NDJSON rows matching a query.
  %[1]s import -data <dir> [-q query] [file ...]   Store NDJSON rows as a table snapshot.
  %[1]s repl [-limit n] [file ...]                 Start the interactive shell.
  %[1]s serve [-port n] [-data dir]                Serve the HTTP API.

Files may be NDJSON, zstd-compressed NDJSON (.zst) or - for stdin.
`, appName)
}

// options are the flags shared by every subcommand.
type options struct {
	cacheSize int
	maxLen    int
	logLevel  string
}

func addCommonFlags(fs *flag.FlagSet) *options {
	o := &options{}
	fs.IntVar(&o.cacheSize, "cache", engine.DefaultCacheSize, "number of compiled filters to cache")
	fs.IntVar(&o.maxLen, "maxlen", filterql.DefaultMaxInputLength, "longest accepted query, in bytes")
	fs.StringVar(&o.logLevel, "loglevel", "info", "log level: trace, debug, info, warn, error, critical, off")
	return o
}

// setup applies the logging options and builds the query compiler.
func (o *options) setup() (*engine.Compiler, error) {
	if err := setLogLevels(o.logLevel); err != nil {
		return nil, err
	}
	lex, err := filterql.NewLexicon()
	if err != nil {
		return nil, err
	}
	lex.MaxInputLength = o.maxLen
	return engine.NewCompiler(lex, o.cacheSize), nil
}

// describeError renders a query error, pointing at its column when known.
func describeError(query string, err error) string {
	pos := -1
	var (
		lexErr   *filterql.LexError
		parseErr *filterql.ParseError
	)
	switch {
	case errors.As(err, &lexErr):
		pos = lexErr.Pos
	case errors.As(err, &parseErr):
		pos = parseErr.Pos
	}
	if pos < 0 || pos > len(query) || strings.ContainsAny(query, "\n\t") {
		return err.Error()
	}
	col := utf8.RuneCountInString(query[:pos])
	return fmt.Sprintf("%s\n%s^\n%v", query, strings.Repeat(" ", col), err)
}
