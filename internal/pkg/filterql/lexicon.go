package filterql

import (
	"errors"
	"fmt"
)

// ErrAmbiguousLexicon is returned by NewLexicon when two lexemes that can be
// legal at the same position recognize the same text with the same length
// and priority.
var ErrAmbiguousLexicon = errors.New("ambiguous lexicon")

// DefaultMaxInputLength bounds the input accepted by Tokenize. The tokenizer
// rescans the whole lexicon at every position.
const DefaultMaxInputLength = 4096

// Lexicon is the ordered, immutable rule set consulted by the tokenizer. It
// is safe for concurrent use.
type Lexicon struct {
	lexemes []*Lexeme

	// MaxInputLength is the longest input Tokenize accepts, in bytes.
	// Zero disables the check.
	MaxInputLength int
}

// Lexemes returns the lexicon's rules in lexicon order.
func (lx *Lexicon) Lexemes() []*Lexeme {
	out := make([]*Lexeme, len(lx.lexemes))
	copy(out, lx.lexemes)
	return out
}

// NewLexicon composes the lexeme catalog with its context rules, terminality
// and priority adjustments. Relational and unary predicates are emitted twice:
// once as written and once for a transformed operand, with a priority raised
// above every plain form.
func NewLexicon() (*Lexicon, error) {
	return buildLexicon(entries())
}

// MustNewLexicon is like NewLexicon but panics on error.
func MustNewLexicon() *Lexicon {
	lx, err := NewLexicon()
	if err != nil {
		panic(err)
	}
	return lx
}

func entries() []Lexeme {
	var out []Lexeme
	with := func(rule Rule, terminal Terminality, base ...Lexeme) {
		for _, l := range base {
			l.If = rule
			l.Terminal = terminal
			out = append(out, l)
		}
	}
	transformed := func(rule Rule, terminal Terminality, base ...Lexeme) {
		for _, l := range base {
			l.If = rule
			l.Terminal = terminal
			l.Priority = blockClose.Priority + l.Priority + 2
			l.Transformed = true
			out = append(out, l)
		}
	}

	relationals := []Lexeme{
		contains, dateStartsWith, equal, greaterOrEqual,
		greaterThan, lessOrEqual, lessThan, notEqual,
	}
	unaries := []Lexeme{
		isBlank, isBool, isDate, isEven, isNil,
		isNum, isObject, isOdd, isPrime, isStr,
	}

	with(IfLogicalOperator, Never, and, or)
	with(IfBlockClose, WhenComplete, blockClose)
	with(IfBlockOpen, Never, blockOpen)
	with(IfTransformation, Never, year, month, day, hour, minute, second)
	with(IfRelationalOperator, Never, relationals...)
	transformed(IfTransformRelationalOperator, Never, relationals...)
	with(IfUnaryOperator, WhenComplete, unaries...)
	transformed(IfTransformUnaryOperator, WhenComplete, unaries...)
	with(IfNotUnaryOperator, Never, not)
	with(IfExpression, WhenExpression, fieldExpression, stringExpression, valueExpression)
	return out
}

func buildLexicon(entries []Lexeme) (*Lexicon, error) {
	lx := &Lexicon{MaxInputLength: DefaultMaxInputLength}
	for i := range entries {
		l := entries[i]
		if l.Pattern == nil {
			return nil, fmt.Errorf("lexeme %s: missing pattern", l.Name())
		}
		if l.If == 0 {
			return nil, fmt.Errorf("lexeme %s: missing context rule", l.Name())
		}
		lx.lexemes = append(lx.lexemes, &l)
	}
	if err := checkAmbiguity(lx.lexemes); err != nil {
		return nil, err
	}
	return lx, nil
}

// checkAmbiguity rejects lexicons in which a sample spelling of one lexeme
// is matched, with equal length, by another lexeme of the same priority and
// position class.
func checkAmbiguity(lexemes []*Lexeme) error {
	for i, a := range lexemes {
		for j, b := range lexemes {
			if i == j || a.Priority != b.Priority || a.If.class() != b.If.class() {
				continue
			}
			for _, s := range a.Samples {
				n := a.match(s)
				if n > 0 && b.match(s) == n {
					return fmt.Errorf("%w: %s and %s both match %q", ErrAmbiguousLexicon, a.Name(), b.Name(), s[:n])
				}
			}
		}
	}
	return nil
}
