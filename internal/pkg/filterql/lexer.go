package filterql

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a lexeme matched against a slice of the input.
type Token struct {
	Lexeme *Lexeme
	Text   string
	Start  int // byte offset of the first character
	End    int // byte offset just past the last character
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q @%d", t.Lexeme.Name(), t.Text, t.Start)
}

// ErrQueryTooLong is wrapped by the LexError returned for input longer than
// the lexicon's MaxInputLength.
var ErrQueryTooLong = errors.New("query too long")

// LexError reports input that no legal lexeme matches.
type LexError struct {
	Pos    int
	Reason string
	err    error
}

func (e *LexError) Error() string {
	return fmt.Sprintf("col %d: %s", e.Pos, e.Reason)
}

func (e *LexError) Unwrap() error { return e.err }

// Tokenize splits input into tokens. At every position it selects, among the
// lexemes whose context rule allows them after the tokens matched so far,
// the one with the longest match, ties going to the higher priority.
//
// Tokenize does not require the result to be a complete expression; see
// Complete and Parse.
func Tokenize(lx *Lexicon, input string) ([]Token, error) {
	if lx.MaxInputLength > 0 && len(input) > lx.MaxInputLength {
		return nil, &LexError{
			Pos:    lx.MaxInputLength,
			Reason: fmt.Sprintf("query longer than %d bytes", lx.MaxInputLength),
			err:    ErrQueryTooLong,
		}
	}

	var tokens []Token
	pos := skipSpace(input, 0)
	for pos < len(input) {
		rest := input[pos:]

		var (
			best    *Lexeme
			bestLen int
			tied    *Lexeme
		)
		for _, l := range lx.lexemes {
			if !l.If.Allows(tokens) {
				continue
			}
			n := l.match(rest)
			switch {
			case n <= 0:
			case best == nil || n > bestLen || (n == bestLen && l.Priority > best.Priority):
				best, bestLen, tied = l, n, nil
			case n == bestLen && l.Priority == best.Priority:
				tied = l
			}
		}

		if best == nil {
			return nil, &LexError{Pos: pos, Reason: unexpected(rest)}
		}
		if tied != nil {
			return nil, &LexError{Pos: pos, Reason: fmt.Sprintf("%q matches both %s and %s", rest[:bestLen], best.Name(), tied.Name())}
		}

		tokens = append(tokens, Token{
			Lexeme: best,
			Text:   rest[:bestLen],
			Start:  pos,
			End:    pos + bestLen,
		})
		pos = skipSpace(input, pos+bestLen)
	}
	return tokens, nil
}

func skipSpace(s string, pos int) int {
	for pos < len(s) {
		r, w := utf8.DecodeRuneInString(s[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += w
	}
	return pos
}

func unexpected(rest string) string {
	switch rest[0] {
	case '"', '\'', '`':
		if strings.IndexByte(rest[1:], rest[0]) < 0 {
			return "string literal not terminated"
		}
	case '{':
		if strings.IndexByte(rest, '}') < 0 {
			return "field expression not terminated"
		}
	}
	r, _ := utf8.DecodeRuneInString(rest)
	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		end = len(rest)
	}
	if end > 20 {
		return fmt.Sprintf("unexpected %q", r)
	}
	return fmt.Sprintf("unexpected %q", rest[:end])
}
