package filterql

import (
	"fmt"
)

// ParseError reports a token sequence that does not form a well-shaped
// expression.
type ParseError struct {
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("col %d: %s", e.Pos, e.Reason)
}

// Compile tokenizes and parses input.
func Compile(lx *Lexicon, input string) (Node, error) {
	tokens, err := Tokenize(lx, input)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parser assembles a token sequence into an AST.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse builds the syntax tree for tokens. Blocks nest recursively, or binds
// looser than and, both are left-associative, and not applies to the
// following comparison, block or nested not.
func Parse(tokens []Token) (Node, error) {
	p := &Parser{tokens: tokens}
	if len(tokens) == 0 {
		return nil, &ParseError{Pos: 0, Reason: "empty expression"}
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.current(); t != nil {
		if t.Lexeme.Type == BlockClose {
			return nil, p.errorf(t, "unmatched %q", t.Text)
		}
		return nil, p.errorf(t, "unexpected %s %q", t.Lexeme.Type, t.Text)
	}
	return node, nil
}

func (p *Parser) current() *Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) advance() {
	p.pos++
}

func (p *Parser) is(op Operator) bool {
	t := p.current()
	return t != nil && t.Lexeme.Op == op
}

// parseOr handles or expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.is(OpOr) {
		op := p.current()
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, p.dangling(op, err)
		}
		left = LogicalExpr{Op: OpOr, Left: left, Right: right}
	}

	return left, nil
}

// parseAnd handles and expressions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.is(OpAnd) {
		op := p.current()
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, p.dangling(op, err)
		}
		left = LogicalExpr{Op: OpAnd, Left: left, Right: right}
	}

	return left, nil
}

// dangling rewrites the end-of-input error for a logical operator without a
// right-hand side.
func (p *Parser) dangling(op *Token, err error) error {
	if p.current() == nil && op == &p.tokens[len(p.tokens)-1] {
		return p.errorf(op, "%q is missing its right-hand side", op.Text)
	}
	return err
}

// parseNot handles negation.
func (p *Parser) parseNot() (Node, error) {
	if p.is(OpNot) {
		op := p.current()
		p.advance()
		if p.current() == nil {
			return nil, p.errorf(op, "%q is missing its operand", op.Text)
		}
		operand, err := p.parseNot() // not is right-associative
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison handles an operand optionally followed by a relational
// operator and its right operand, or by a unary predicate.
func (p *Parser) parseComparison() (Node, error) {
	t := p.current()
	if t == nil {
		return nil, p.errorf(nil, "unexpected end of expression")
	}

	if t.Lexeme.Type == BlockOpen {
		return p.parseBlock()
	}

	var operand Node
	switch t.Lexeme.Type {
	case Transformation:
		x, err := p.parseTransform()
		if err != nil {
			return nil, err
		}
		operand = x
	case Expression:
		p.advance()
		operand = leafFromToken(*t)
	default:
		return nil, p.errorf(t, "expected an operand but got %s %q", t.Lexeme.Type, t.Text)
	}

	next := p.current()
	switch {
	case next != nil && next.Lexeme.Type == RelationalOperator:
		p.advance()
		right := p.current()
		if right == nil || right.Lexeme.Type != Expression {
			return nil, p.errorf(next, "%q is missing its right operand", next.Text)
		}
		p.advance()
		return RelationalExpr{Op: next.Lexeme.Op, Left: operand, Right: leafFromToken(*right)}, nil

	case next != nil && next.Lexeme.Type == UnaryOperator && next.Lexeme.Op != OpNot:
		p.advance()
		return UnaryExpr{Op: next.Lexeme.Op, Operand: operand}, nil
	}

	if _, ok := operand.(TransformExpr); ok {
		return nil, p.errorf(t, "%q must be followed by a relational or unary operator", t.Text)
	}
	return operand, nil
}

// parseBlock handles a parenthesized sub-expression.
func (p *Parser) parseBlock() (Node, error) {
	open := p.current()
	p.advance()
	if p.current() == nil {
		return nil, p.errorf(open, "unclosed %q", open.Text)
	}
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.current(); t == nil || t.Lexeme.Type != BlockClose {
		return nil, p.errorf(open, "unclosed %q", open.Text)
	}
	p.advance()
	return BlockExpr{Inner: inner}, nil
}

// parseTransform handles name(leaf).
func (p *Parser) parseTransform() (TransformExpr, error) {
	t := p.current()
	p.advance()

	if open := p.current(); open == nil || open.Lexeme.Type != BlockOpen {
		return TransformExpr{}, p.errorf(t, "%q expects a parenthesized operand", t.Text)
	}
	p.advance()

	leaf := p.current()
	if leaf == nil || leaf.Lexeme.Type != Expression {
		return TransformExpr{}, p.errorf(t, "%q is missing its operand", t.Text)
	}
	p.advance()

	if c := p.current(); c == nil || c.Lexeme.Type != BlockClose {
		return TransformExpr{}, p.errorf(t, "%q takes a single operand", t.Text)
	}
	p.advance()

	return TransformExpr{Op: t.Lexeme.Op, Operand: leafFromToken(*leaf)}, nil
}

// errorf reports an error at t, or at the end of input when t is nil.
func (p *Parser) errorf(t *Token, format string, args ...interface{}) *ParseError {
	pos := 0
	switch {
	case t != nil:
		pos = t.Start
	case len(p.tokens) > 0:
		pos = p.tokens[len(p.tokens)-1].End
	}
	return &ParseError{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}
