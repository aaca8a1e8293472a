package filterql

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

var testLexicon = MustNewLexicon()

type lexedTok struct {
	name string
	text string
}

func lexed(t *testing.T, input string) []lexedTok {
	t.Helper()
	tokens, err := Tokenize(testLexicon, input)
	if err != nil {
		t.Fatalf("Tokenize(%q) error: %v", input, err)
	}
	out := make([]lexedTok, len(tokens))
	for i, tok := range tokens {
		out[i] = lexedTok{name: tok.Lexeme.Name(), text: tok.Text}
	}
	return out
}

func TestNewLexicon(t *testing.T) {
	lx, err := NewLexicon()
	if err != nil {
		t.Fatalf("NewLexicon() error: %v", err)
	}

	counts := make(map[LexemeType]int)
	transformed := 0
	for _, l := range lx.Lexemes() {
		counts[l.Type]++
		if l.Transformed {
			transformed++
			if l.Priority != blockClose.Priority+2 {
				t.Errorf("%s: transformed priority = %d, want %d", l.Name(), l.Priority, blockClose.Priority+2)
			}
		}
	}

	want := map[LexemeType]int{
		LogicalOperator:    2,
		BlockOpen:          1,
		BlockClose:         1,
		Transformation:     6,
		RelationalOperator: 16,
		UnaryOperator:      21,
		Expression:         3,
	}
	for typ, n := range want {
		if counts[typ] != n {
			t.Errorf("%s lexemes = %d, want %d", typ, counts[typ], n)
		}
	}
	if transformed != 18 {
		t.Errorf("transformed lexemes = %d, want 18", transformed)
	}
}

func TestLexiconRejectsAmbiguity(t *testing.T) {
	a := greaterThan
	a.If = IfRelationalOperator
	b := greaterThan
	b.Op = "alsoGreaterThan"
	b.If = IfUnaryOperator

	_, err := buildLexicon([]Lexeme{a, b})
	if !errors.Is(err, ErrAmbiguousLexicon) {
		t.Fatalf("buildLexicon() error = %v, want ErrAmbiguousLexicon", err)
	}

	// Equal spellings at different priorities are resolved, not ambiguous.
	b.Priority = 1
	if _, err := buildLexicon([]Lexeme{a, b}); err != nil {
		t.Fatalf("buildLexicon() with distinct priorities error: %v", err)
	}
}

func TestTokenizeReportsRuntimeTie(t *testing.T) {
	x := Lexeme{Type: Expression, Kind: Value, Pattern: regexp.MustCompile(`^a[bx]`), If: IfExpression, Samples: []string{"ax"}}
	y := Lexeme{Type: Expression, Kind: Value, Pattern: regexp.MustCompile(`^a[by]`), If: IfExpression, Samples: []string{"ay"}}
	lx, err := buildLexicon([]Lexeme{x, y})
	if err != nil {
		t.Fatalf("buildLexicon() error: %v", err)
	}

	_, err = Tokenize(lx, "ab")
	var lexErr *LexError
	if !errors.As(err, &lexErr) || !strings.Contains(lexErr.Reason, "matches both") {
		t.Fatalf("Tokenize() error = %v, want tie LexError", err)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []lexedTok
	}{
		{"", []lexedTok{}},
		{"   ", []lexedTok{}},
		{`{col} > 5 and {other} contains "x"`, []lexedTok{
			{"fieldExpression", "{col}"},
			{"greaterThan", ">"},
			{"valueExpression", "5"},
			{"and", "and"},
			{"fieldExpression", "{other}"},
			{"contains", "contains"},
			{"stringExpression", `"x"`},
		}},
		{"{a}>=5", []lexedTok{
			{"fieldExpression", "{a}"},
			{"greaterOrEqual", ">="},
			{"valueExpression", "5"},
		}},
		{"{a} ne 'b' || {c} eq 1", []lexedTok{
			{"fieldExpression", "{a}"},
			{"notEqual", "ne"},
			{"stringExpression", "'b'"},
			{"or", "||"},
			{"fieldExpression", "{c}"},
			{"equal", "eq"},
			{"valueExpression", "1"},
		}},
		{"year({date}) >= 2020", []lexedTok{
			{"year", "year"},
			{"blockOpen", "("},
			{"fieldExpression", "{date}"},
			{"blockClose", ")"},
			{"greaterOrEqual", ">="},
			{"valueExpression", "2020"},
		}},
		{"not ({a} is_odd)", []lexedTok{
			{"not", "not"},
			{"blockOpen", "("},
			{"fieldExpression", "{a}"},
			{"isOdd", "is_odd"},
			{"blockClose", ")"},
		}},
		{"!{a} IS BLANK", []lexedTok{
			{"not", "!"},
			{"fieldExpression", "{a}"},
			{"isBlank", "IS BLANK"},
		}},
		{"{d} datestartswith 2020-01", []lexedTok{
			{"fieldExpression", "{d}"},
			{"dateStartsWith", "datestartswith"},
			{"valueExpression", "2020-01"},
		}},
		{"month ({d}) is even", []lexedTok{
			{"month", "month"},
			{"blockOpen", "("},
			{"fieldExpression", "{d}"},
			{"blockClose", ")"},
			{"isEven", "is even"},
		}},
		// A bare word that only looks like a transformation is a value.
		{"{a} = year", []lexedTok{
			{"fieldExpression", "{a}"},
			{"equal", "="},
			{"valueExpression", "year"},
		}},
		{`{a\}b} contains "say \"hi\""`, []lexedTok{
			{"fieldExpression", `{a\}b}`},
			{"contains", "contains"},
			{"stringExpression", `"say \"hi\""`},
		}},
		// Incomplete input is still tokenized; Parse reports the shape error.
		{"({a} > 1", []lexedTok{
			{"blockOpen", "("},
			{"fieldExpression", "{a}"},
			{"greaterThan", ">"},
			{"valueExpression", "1"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := lexed(t, tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d tokens, want %d:\n%s", len(got), len(tt.expected), spew.Sdump(got))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("token %d: got %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestTokenizeOffsets(t *testing.T) {
	input := "  {a}  >\t5 "
	tokens, err := Tokenize(testLexicon, input)
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]int{{2, 5}, {7, 8}, {9, 10}}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Start != want[i][0] || tok.End != want[i][1] {
			t.Errorf("token %d: span [%d,%d), want [%d,%d)", i, tok.Start, tok.End, want[i][0], want[i][1])
		}
		if input[tok.Start:tok.End] != tok.Text {
			t.Errorf("token %d: text %q does not match input span %q", i, tok.Text, input[tok.Start:tok.End])
		}
	}
}

// Every character skipped between tokens also ends a bare value.
func TestTokenizeUnicodeSpace(t *testing.T) {
	tests := []struct {
		input string
		texts []string
	}{
		{"{a} = 5\u00a0and\u2003{b}", []string{"{a}", "=", "5", "and", "{b}"}},
		{"{a} = 5\v", []string{"{a}", "=", "5"}},
		{"{a} = x\u0085or {b}", []string{"{a}", "=", "x", "or", "{b}"}},
		{"year\u00a0({d}) > 1", []string{"year", "(", "{d}", ")", ">", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var texts []string
			for _, tok := range lexed(t, tt.input) {
				texts = append(texts, tok.text)
			}
			if strings.Join(texts, "|") != strings.Join(tt.texts, "|") {
				t.Errorf("Tokenize(%q) texts = %q, want %q", tt.input, texts, tt.texts)
			}
		})
	}
}

func TestTransformedOperatorPriority(t *testing.T) {
	tokens, err := Tokenize(testLexicon, "year({d}) > 2020")
	if err != nil {
		t.Fatal(err)
	}
	op := tokens[4].Lexeme
	if op.Op != OpGreaterThan || !op.Transformed || op.If != IfTransformRelationalOperator {
		t.Fatalf("got %s (transformed=%v, rule=%s), want transform-aware greaterThan", op.Name(), op.Transformed, op.If)
	}
	if op.Priority != blockClose.Priority+greaterThan.Priority+2 {
		t.Errorf("priority = %d, want %d", op.Priority, blockClose.Priority+greaterThan.Priority+2)
	}

	tokens, err = Tokenize(testLexicon, "{d} > 2020")
	if err != nil {
		t.Fatal(err)
	}
	if op := tokens[1].Lexeme; op.Transformed {
		t.Errorf("bare operand chose the transform-aware %s", op.Name())
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		input  string
		pos    int
		reason string
	}{
		{"{a} $$ 1", 4, `unexpected "$$"`},
		{`{a} = "abc`, 6, "string literal not terminated"},
		{"{a", 0, "field expression not terminated"},
		{") {a}", 0, `unexpected ")"`},
		{"{a} {b}", 4, `unexpected "{b}"`},
		{"{a} > 1 > 2", 8, `unexpected ">"`},
		{"year({a} and {b})", 9, `unexpected "and"`},
		{"year(year({a})) > 1", 9, `unexpected "({a}))"`},
		{"(year({d})) > 1", 10, `unexpected ")"`},
		{`"x" > 1`, 4, `unexpected ">"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Tokenize(testLexicon, tt.input)
			var lexErr *LexError
			if !errors.As(err, &lexErr) {
				t.Fatalf("Tokenize(%q) error = %v, want LexError", tt.input, err)
			}
			if lexErr.Pos != tt.pos || lexErr.Reason != tt.reason {
				t.Errorf("got %v, want col %d: %s", lexErr, tt.pos, tt.reason)
			}
		})
	}
}

func TestTokenizeMaxInputLength(t *testing.T) {
	lx := MustNewLexicon()
	lx.MaxInputLength = 8

	if _, err := Tokenize(lx, "{a} > 1"); err != nil {
		t.Fatalf("short input: %v", err)
	}
	_, err := Tokenize(lx, "{abc} > 10")
	var lexErr *LexError
	if !errors.As(err, &lexErr) || lexErr.Pos != 8 {
		t.Fatalf("long input error = %v, want LexError at 8", err)
	}
	if !errors.Is(err, ErrQueryTooLong) {
		t.Errorf("long input error does not wrap ErrQueryTooLong")
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		input    string
		complete bool
	}{
		{"", false},
		{"{a}", true},
		{"{a} >", false},
		{"{a} > 1", true},
		{"{a} > 1 and", false},
		{"({a} > 1", false},
		{"({a} > 1)", true},
		{"year({d})", false},
		{"year({d}", false},
		{"year({d}) is odd", true},
		{"not", false},
		{"not {a}", true},
		{"{a})", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(testLexicon, tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if got := Complete(tokens); got != tt.complete {
				t.Errorf("Complete(%q) = %v, want %v", tt.input, got, tt.complete)
			}
		})
	}
}

func TestUnfinished(t *testing.T) {
	tests := []struct {
		input      string
		unfinished bool
	}{
		{"", false},
		{"{a}", false},
		{"{a} >", true},
		{"({a} > 1", true},
		{"year({d})", true},
		{"{a})", false},
		{"{a}) and", false},
		{"({a}) or ({b}", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(testLexicon, tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if got := Unfinished(tokens); got != tt.unfinished {
				t.Errorf("Unfinished(%q) = %v, want %v", tt.input, got, tt.unfinished)
			}
		})
	}
}

// Re-tokenizing the matched texts joined by the original separators yields
// the same tokens.
func TestTokenizeIdempotent(t *testing.T) {
	inputs := []string{
		`{col} > 5 and {other} contains "x"`,
		"  year( {date} )>=2020 or not ({a} is_odd)  ",
		"({a} = 1 or {b} != 'q') && !{c} is nil",
	}
	for _, input := range inputs {
		first, err := Tokenize(testLexicon, input)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", input, err)
		}

		var b strings.Builder
		prev := 0
		for _, tok := range first {
			b.WriteString(input[prev:tok.Start])
			b.WriteString(tok.Text)
			prev = tok.End
		}
		b.WriteString(input[prev:])

		second, err := Tokenize(testLexicon, b.String())
		if err != nil {
			t.Fatalf("re-Tokenize(%q): %v", b.String(), err)
		}
		if len(first) != len(second) {
			t.Fatalf("token count changed: %d -> %d", len(first), len(second))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Errorf("token %d changed: %v -> %v", i, first[i], second[i])
			}
		}
	}
}

func TestTokenizeBlockBalance(t *testing.T) {
	input := "((({a} > 1) or ({b} < 2)) and (not ({c} is odd)))"
	tokens, err := Tokenize(testLexicon, input)
	if err != nil {
		t.Fatal(err)
	}
	var stack []int
	pairs := make(map[int]int)
	for i, tok := range tokens {
		switch tok.Lexeme.Type {
		case BlockOpen:
			stack = append(stack, i)
		case BlockClose:
			if len(stack) == 0 {
				t.Fatalf("token %d closes nothing", i)
			}
			pairs[stack[len(stack)-1]] = i
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		t.Fatalf("%d blocks left open", len(stack))
	}
	if pairs[0] != len(tokens)-1 {
		t.Errorf("outer block closes at token %d, want %d", pairs[0], len(tokens)-1)
	}
}

func TestTokenizeConcurrent(t *testing.T) {
	input := `{col} > 5 and year({d}) = 2020`
	want, err := Tokenize(testLexicon, input)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := Tokenize(testLexicon, input)
				if err != nil || len(got) != len(want) {
					t.Errorf("concurrent Tokenize: %v, %d tokens", err, len(got))
					return
				}
			}
		}()
	}
	wg.Wait()
}
