package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rpmchale/dash-table/internal/engine"
	"github.com/rpmchale/dash-table/internal/pkg/filterql"
)

func cmdParse(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showTokens := fs.Bool("tokens", false, "print the token list")
	opts := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "usage: %s parse [-tokens] <query>\n", appName)
		return 2
	}
	compiler, err := opts.setup()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	query := strings.Join(fs.Args(), " ")
	tokens, err := filterql.Tokenize(compiler.Lexicon(), query)
	if err != nil {
		fmt.Fprintln(stderr, describeError(query, err))
		return 1
	}
	if *showTokens {
		printTokens(stdout, tokens)
	}

	f, err := compiler.Compile(query)
	if err != nil {
		fmt.Fprintln(stderr, describeError(query, err))
		return 1
	}
	printFilter(stdout, f)
	return 0
}

func printFilter(w io.Writer, f *engine.Filter) {
	fmt.Fprintf(w, "canonical:   %s\n", f.Canonical)
	fmt.Fprintf(w, "fingerprint: %s\n", f.Fingerprint)
	if fields := f.Fields(); len(fields) > 0 {
		fmt.Fprintf(w, "fields:      %s\n", strings.Join(fields, ", "))
	}
}

func printTokens(w io.Writer, tokens []filterql.Token) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range tokens {
		name := t.Lexeme.Name()
		if t.Lexeme.Transformed {
			name += "*"
		}
		fmt.Fprintf(tw, "%d-%d\t%s\t%s\t%q\n", t.Start, t.End, t.Lexeme.Type, name, t.Text)
	}
	tw.Flush()
}
