package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/rpmchale/dash-table/internal/engine"
	"github.com/rpmchale/dash-table/internal/pkg/filterql"
	"github.com/rpmchale/dash-table/internal/storage"
)

const (
	historyFile = ".dashfilter_history"
	promptMain  = "filter> "
	promptCont  = "   ...> "
)

const replHelp = `Enter a filter query; incomplete queries continue on the next line.
REPL commands:
  :tokens  Toggle the token listing
  :help    Show this help
  :quit    Exit the REPL
`

// prompter reads one line of input; *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// repl evaluates queries against an optional store of rows.
type repl struct {
	compiler   *engine.Compiler
	store      *engine.Store
	limit      int
	showTokens bool
	out        io.Writer
}

func cmdRepl(args []string) int {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "rows to print per query")
	opts := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	compiler, err := opts.setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	r := &repl{compiler: compiler, limit: *limit, out: os.Stdout}
	if fs.NArg() > 0 {
		if r.store, err = loadStore(compiler, fs.Args()); err != nil {
			log.Errorf("%v", err)
			return 1
		}
		fmt.Printf("%d rows loaded.\n", r.store.Table().Len())
	}

	fmt.Println("Ctrl+C cancels input, Ctrl+D exits. Type :help for commands.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		query, ok := readQuery(ln, compiler.Lexicon())
		if !ok {
			fmt.Println()
			return 0
		}
		if strings.TrimSpace(query) == "" {
			continue
		}
		ln.AppendHistory(query)
		if !r.eval(query) {
			return 0
		}
	}
}

// loadStore reads NDJSON sources into an in-memory store.
func loadStore(compiler *engine.Compiler, paths []string) (*engine.Store, error) {
	store, err := engine.OpenStore(engine.StoreConfig{Compiler: compiler, Logger: engnLog})
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		it, err := storage.OpenRows(path)
		if err != nil {
			return nil, err
		}
		var rows [][]byte
		for it.Next() {
			rows = append(rows, append([]byte(nil), it.Row()...))
		}
		err = it.Error()
		it.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := store.Ingest(rows); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return store, nil
}

// readQuery prompts until the input forms a complete query, a command or a
// query that cannot become valid by appending more text. It returns false at
// end of input.
func readQuery(p prompter, lex *filterql.Lexicon) (string, bool) {
	var b strings.Builder

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = p.Prompt(promptMain)
		} else {
			line, err = p.Prompt(promptCont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return strings.TrimSpace(line), true
		}
		// An empty continuation line submits what was typed so far.
		if b.Len() > 0 && strings.TrimSpace(line) == "" {
			return b.String(), true
		}

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(line))

		src := b.String()
		tokens, err := filterql.Tokenize(lex, src)
		if err == nil && filterql.Unfinished(tokens) {
			continue
		}
		return src, true
	}
}

// eval runs one line of input. It returns false when the REPL should exit.
func (r *repl) eval(input string) bool {
	if strings.HasPrefix(input, ":") {
		switch strings.ToLower(input) {
		case ":quit", ":q":
			return false
		case ":tokens":
			r.showTokens = !r.showTokens
			fmt.Fprintf(r.out, "token listing %s\n", onOff(r.showTokens))
		case ":help":
			fmt.Fprint(r.out, replHelp)
		default:
			fmt.Fprintf(r.out, "unknown command %s. Type :help for commands.\n", input)
		}
		return true
	}

	if r.showTokens {
		if tokens, err := filterql.Tokenize(r.compiler.Lexicon(), input); err == nil {
			printTokens(r.out, tokens)
		}
	}

	f, err := r.compiler.Compile(input)
	if err != nil {
		fmt.Fprintln(r.out, describeError(input, err))
		return true
	}
	printFilter(r.out, f)

	if r.store == nil {
		return true
	}
	rows, stats := r.store.Table().Search(f, 0)
	for i, row := range rows {
		if i == r.limit {
			fmt.Fprintf(r.out, "... %d more\n", len(rows)-r.limit)
			break
		}
		fmt.Fprintf(r.out, "%s\n", row)
	}
	fmt.Fprintf(r.out, "%d of %d rows matched in %v\n", stats.Matched, stats.Scanned, stats.Elapsed)
	return true
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
