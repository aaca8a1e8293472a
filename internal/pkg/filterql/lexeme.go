package filterql

import "regexp"

// LexemeType is the grammar category of a lexeme.
type LexemeType int

const (
	LogicalOperator LexemeType = iota + 1
	RelationalOperator
	UnaryOperator
	Transformation
	BlockOpen
	BlockClose
	Expression
)

func (t LexemeType) String() string {
	switch t {
	case LogicalOperator:
		return "logical operator"
	case RelationalOperator:
		return "relational operator"
	case UnaryOperator:
		return "unary operator"
	case Transformation:
		return "transformation"
	case BlockOpen:
		return "block open"
	case BlockClose:
		return "block close"
	case Expression:
		return "expression"
	}
	return "unknown lexeme type"
}

// ExpressionKind distinguishes the three expression leaves.
type ExpressionKind int

const (
	NoExpression ExpressionKind = iota
	Field
	String
	Value
)

func (k ExpressionKind) String() string {
	switch k {
	case Field:
		return "field"
	case String:
		return "string"
	case Value:
		return "value"
	}
	return "none"
}

// Operator names a concrete operator lexeme. The relational, unary and
// transformation operators reuse these names as AST node operators.
type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"

	OpContains       Operator = "contains"
	OpDateStartsWith Operator = "dateStartsWith"
	OpEqual          Operator = "equal"
	OpGreaterOrEqual Operator = "greaterOrEqual"
	OpGreaterThan    Operator = "greaterThan"
	OpLessOrEqual    Operator = "lessOrEqual"
	OpLessThan       Operator = "lessThan"
	OpNotEqual       Operator = "notEqual"

	OpIsBlank  Operator = "isBlank"
	OpIsBool   Operator = "isBool"
	OpIsDate   Operator = "isDate"
	OpIsEven   Operator = "isEven"
	OpIsNil    Operator = "isNil"
	OpIsNum    Operator = "isNum"
	OpIsObject Operator = "isObject"
	OpIsOdd    Operator = "isOdd"
	OpIsPrime  Operator = "isPrime"
	OpIsStr    Operator = "isStr"
	OpNot      Operator = "not"

	OpYear   Operator = "year"
	OpMonth  Operator = "month"
	OpDay    Operator = "day"
	OpHour   Operator = "hour"
	OpMinute Operator = "minute"
	OpSecond Operator = "second"
)

// Lexeme describes one recognizable kind of token. Lexemes are built once
// by NewLexicon and never modified afterwards; tokens share them by pointer.
type Lexeme struct {
	Op   Operator       // empty for blocks and expressions
	Kind ExpressionKind // set for expressions only
	Type LexemeType

	Pattern *regexp.Regexp
	Group   int // submatch holding the token text; 0 is the whole match

	Priority int
	Nesting  int // +1 for block open, -1 for block close

	If       Rule
	Terminal Terminality

	// Transformed marks the copy of a relational or unary operator that
	// applies to a transformed operand.
	Transformed bool

	// Samples are canonical spellings checked for ambiguity at build time.
	// The first sample is the canonical printed form.
	Samples []string
}

// Name returns the operator name or, for blocks and leaves, the lexeme name.
func (l *Lexeme) Name() string {
	switch {
	case l.Op != "":
		return string(l.Op)
	case l.Type == BlockOpen:
		return "blockOpen"
	case l.Type == BlockClose:
		return "blockClose"
	case l.Type == Expression:
		return l.Kind.String() + "Expression"
	}
	return "unknown"
}

// match returns the length of the token text the lexeme recognizes at the
// start of s, or -1.
func (l *Lexeme) match(s string) int {
	loc := l.Pattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return -1
	}
	start, end := loc[2*l.Group], loc[2*l.Group+1]
	if start != 0 || end <= 0 {
		return -1
	}
	return end
}

// space is the class of characters skipped between tokens, the same set as
// unicode.IsSpace.
const space = `\s\v\x{85}\p{Z}`

// keyword matches a case-insensitive word followed by a word boundary.
func keyword(words string) string {
	return `(?i:` + words + `)\b`
}

var (
	and = Lexeme{
		Op:      OpAnd,
		Type:    LogicalOperator,
		Pattern: regexp.MustCompile(`^(?:` + keyword(`and`) + `|&&)`),
		Samples: []string{"and", "&&"},
	}
	or = Lexeme{
		Op:      OpOr,
		Type:    LogicalOperator,
		Pattern: regexp.MustCompile(`^(?:` + keyword(`or`) + `|\|\|)`),
		Samples: []string{"or", "||"},
	}

	blockOpen = Lexeme{
		Type:    BlockOpen,
		Pattern: regexp.MustCompile(`^\(`),
		Nesting: 1,
		Samples: []string{"("},
	}
	blockClose = Lexeme{
		Type:    BlockClose,
		Pattern: regexp.MustCompile(`^\)`),
		Nesting: -1,
		Samples: []string{")"},
	}
)

func transformation(op Operator) Lexeme {
	name := string(op)
	return Lexeme{
		Op:       op,
		Type:     Transformation,
		Pattern:  regexp.MustCompile(`^(` + keyword(name) + `)[` + space + `]*\(`),
		Group:    1,
		Priority: 1,
		Samples:  []string{name + "("},
	}
}

var (
	year   = transformation(OpYear)
	month  = transformation(OpMonth)
	day    = transformation(OpDay)
	hour   = transformation(OpHour)
	minute = transformation(OpMinute)
	second = transformation(OpSecond)
)

func relational(op Operator, pattern string, samples ...string) Lexeme {
	return Lexeme{
		Op:      op,
		Type:    RelationalOperator,
		Pattern: regexp.MustCompile(`^(?:` + pattern + `)`),
		Samples: samples,
	}
}

var (
	contains       = relational(OpContains, keyword(`contains`), "contains")
	dateStartsWith = relational(OpDateStartsWith, keyword(`datestartswith`), "datestartswith")
	equal          = relational(OpEqual, keyword(`eq`)+`|==?`, "=", "==", "eq")
	greaterOrEqual = relational(OpGreaterOrEqual, keyword(`ge`)+`|>=`, ">=", "ge")
	greaterThan    = relational(OpGreaterThan, keyword(`gt`)+`|>`, ">", "gt")
	lessOrEqual    = relational(OpLessOrEqual, keyword(`le`)+`|<=`, "<=", "le")
	lessThan       = relational(OpLessThan, keyword(`lt`)+`|<`, "<", "lt")
	notEqual       = relational(OpNotEqual, keyword(`ne`)+`|!=`, "!=", "ne")
)

func unary(op Operator, predicate string) Lexeme {
	return Lexeme{
		Op:      op,
		Type:    UnaryOperator,
		Pattern: regexp.MustCompile(`^` + keyword(`is[ _]+`+predicate)),
		Samples: []string{"is " + predicate, "is_" + predicate},
	}
}

var (
	isBlank  = unary(OpIsBlank, "blank")
	isBool   = unary(OpIsBool, "bool")
	isDate   = unary(OpIsDate, "date")
	isEven   = unary(OpIsEven, "even")
	isNil    = unary(OpIsNil, "nil")
	isNum    = unary(OpIsNum, "num")
	isObject = unary(OpIsObject, "object")
	isOdd    = unary(OpIsOdd, "odd")
	isPrime  = unary(OpIsPrime, "prime")
	isStr    = unary(OpIsStr, "str")

	not = Lexeme{
		Op:       OpNot,
		Type:     UnaryOperator,
		Pattern:  regexp.MustCompile(`^(?:` + keyword(`not`) + `|!)`),
		Priority: 1,
		Samples:  []string{"not", "!"},
	}
)

var (
	fieldExpression = Lexeme{
		Type:    Expression,
		Kind:    Field,
		Pattern: regexp.MustCompile(`^\{(?:[^{}\\]|\\.)+\}`),
		Samples: []string{"{col}", `{a\}b}`},
	}
	stringExpression = Lexeme{
		Type:    Expression,
		Kind:    String,
		Pattern: regexp.MustCompile(`^(?:'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|` + "`(?:[^`\\\\]|\\\\.)*`" + `)`),
		Samples: []string{`"x"`, `'x'`, "`x`"},
	}
	valueExpression = Lexeme{
		Type:    Expression,
		Kind:    Value,
		Pattern: regexp.MustCompile(`^(?:[^` + space + `'"` + "`" + `{}()\\]|\\.)+`),
		Samples: []string{"5", "-1.5", "true", "2020-01-01"},
	}
)
