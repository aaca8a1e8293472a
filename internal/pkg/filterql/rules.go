package filterql

// Rule selects the context predicate that decides whether a lexeme may be
// matched next, given the tokens matched so far.
type Rule int

const (
	IfLogicalOperator Rule = iota + 1
	IfBlockOpen
	IfBlockClose
	IfTransformation
	IfRelationalOperator
	IfTransformRelationalOperator
	IfUnaryOperator
	IfTransformUnaryOperator
	IfNotUnaryOperator
	IfExpression
)

func (r Rule) String() string {
	switch r {
	case IfLogicalOperator:
		return "ifLogicalOperator"
	case IfBlockOpen:
		return "ifBlockOpen"
	case IfBlockClose:
		return "ifBlockClose"
	case IfTransformation:
		return "ifTransformation"
	case IfRelationalOperator:
		return "ifRelationalOperator"
	case IfTransformRelationalOperator:
		return "ifTransformRelationalOperator"
	case IfUnaryOperator:
		return "ifUnaryOperator"
	case IfTransformUnaryOperator:
		return "ifTransformUnaryOperator"
	case IfNotUnaryOperator:
		return "ifNotUnaryOperator"
	case IfExpression:
		return "ifExpression"
	}
	return "unknown rule"
}

// positionClass partitions rules by whether they gate an operand or an
// operator position. Two lexemes of different classes are never legal at
// the same position.
type positionClass int

const (
	operandPosition positionClass = iota
	operatorPosition
)

func (r Rule) class() positionClass {
	switch r {
	case IfBlockOpen, IfTransformation, IfNotUnaryOperator, IfExpression:
		return operandPosition
	}
	return operatorPosition
}

// Allows reports whether a lexeme gated by r may follow history.
func (r Rule) Allows(history []Token) bool {
	prev := last(history)
	switch r {
	case IfLogicalOperator:
		return prev != nil && isTerminal(history)

	case IfBlockOpen:
		return prev == nil ||
			prev.Lexeme.Type == LogicalOperator ||
			prev.Lexeme.Type == Transformation ||
			isNegation(prev) ||
			(prev.Lexeme.Type == BlockOpen && !insideTransformation(history))

	case IfBlockClose:
		// An unmatched close still lexes; Parse reports it.
		if prev == nil {
			return false
		}
		if insideTransformation(history) {
			return prev.Lexeme.Type == Expression
		}
		return isTerminal(history)

	case IfTransformation, IfNotUnaryOperator:
		return prev == nil ||
			prev.Lexeme.Type == LogicalOperator ||
			isNegation(prev) ||
			(prev.Lexeme.Type == BlockOpen && !insideTransformation(history))

	case IfRelationalOperator, IfUnaryOperator:
		return isLeftOperand(history)

	case IfTransformRelationalOperator, IfTransformUnaryOperator:
		return prev != nil && prev.Lexeme.Type == BlockClose && closesTransformation(history)

	case IfExpression:
		return prev == nil ||
			prev.Lexeme.Type == LogicalOperator ||
			prev.Lexeme.Type == RelationalOperator ||
			prev.Lexeme.Type == BlockOpen ||
			isNegation(prev)
	}
	return false
}

// Terminality tells whether a matched token may end a complete expression.
type Terminality int

const (
	Never Terminality = iota
	// WhenComplete holds for block closes and unary predicates, except a
	// block close that ends a transformation operand.
	WhenComplete
	// WhenExpression holds for leaves outside a transformation operand.
	WhenExpression
)

// isTerminal evaluates the terminality of the last token in history.
func isTerminal(history []Token) bool {
	prev := last(history)
	if prev == nil {
		return false
	}
	switch prev.Lexeme.Terminal {
	case WhenComplete:
		return !(prev.Lexeme.Type == BlockClose && closesTransformation(history))
	case WhenExpression:
		return !insideTransformation(history)
	}
	return false
}

// Complete reports whether tokens form a whole expression: non-empty, ending
// in a terminal token, with every block closed.
func Complete(tokens []Token) bool {
	return isTerminal(tokens) && depth(tokens) == 0
}

// Unfinished reports whether tokens are a non-empty prefix of an expression
// that more input could complete: not Complete, and with no block close that
// lacks its open.
func Unfinished(tokens []Token) bool {
	if len(tokens) == 0 || Complete(tokens) {
		return false
	}
	d := 0
	for _, t := range tokens {
		if d += t.Lexeme.Nesting; d < 0 {
			return false
		}
	}
	return true
}

func last(history []Token) *Token {
	if len(history) == 0 {
		return nil
	}
	return &history[len(history)-1]
}

func isNegation(t *Token) bool {
	return t.Lexeme.Op == OpNot
}

func depth(history []Token) int {
	d := 0
	for _, t := range history {
		d += t.Lexeme.Nesting
	}
	return d
}

// openBlock returns the index of the innermost unmatched block open within
// history, or -1.
func openBlock(history []Token) int {
	var stack []int
	for i, t := range history {
		switch t.Lexeme.Type {
		case BlockOpen:
			stack = append(stack, i)
		case BlockClose:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return -1
	}
	return stack[len(stack)-1]
}

// opensTransformation reports whether the block open at index i takes the
// operand of a transformation.
func opensTransformation(history []Token, i int) bool {
	return i > 0 && history[i-1].Lexeme.Type == Transformation
}

func insideTransformation(history []Token) bool {
	i := openBlock(history)
	return i >= 0 && opensTransformation(history, i)
}

// closesTransformation reports whether the last token is a block close whose
// block open follows a transformation.
func closesTransformation(history []Token) bool {
	n := len(history)
	if n == 0 || history[n-1].Lexeme.Type != BlockClose {
		return false
	}
	i := openBlock(history[:n-1])
	return i >= 0 && opensTransformation(history, i)
}

// isLeftOperand reports whether the last token is an untransformed field or
// value leaf that has not been consumed as the right operand of a relation.
func isLeftOperand(history []Token) bool {
	n := len(history)
	if n == 0 {
		return false
	}
	prev := history[n-1]
	if prev.Lexeme.Type != Expression || insideTransformation(history) {
		return false
	}
	if prev.Lexeme.Kind != Field && prev.Lexeme.Kind != Value {
		return false
	}
	return n == 1 || history[n-2].Lexeme.Type != RelationalOperator
}
