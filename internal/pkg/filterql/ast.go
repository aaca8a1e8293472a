package filterql

import "strings"

// Node is the interface implemented by all AST nodes. String returns a
// canonical spelling that parses back to an identical tree.
type Node interface {
	node() // marker method
	String() string
}

// LogicalExpr joins two sub-expressions with and/or.
type LogicalExpr struct {
	Op    Operator // OpAnd or OpOr
	Left  Node
	Right Node
}

func (LogicalExpr) node() {}

func (e LogicalExpr) String() string {
	return e.Left.String() + " " + string(e.Op) + " " + e.Right.String()
}

// RelationalExpr compares a (possibly transformed) operand with a leaf.
type RelationalExpr struct {
	Op    Operator
	Left  Node // Leaf or TransformExpr
	Right Leaf
}

func (RelationalExpr) node() {}

func (e RelationalExpr) String() string {
	return e.Left.String() + " " + spelling(e.Op) + " " + e.Right.String()
}

// UnaryExpr applies a predicate to its operand. For OpNot the operand is any
// sub-expression; for the is* predicates it is a Leaf or TransformExpr.
type UnaryExpr struct {
	Op      Operator
	Operand Node
}

func (UnaryExpr) node() {}

func (e UnaryExpr) String() string {
	if e.Op == OpNot {
		return "not " + e.Operand.String()
	}
	return e.Operand.String() + " " + spelling(e.Op)
}

// TransformExpr extracts a calendar field from its operand.
type TransformExpr struct {
	Op      Operator
	Operand Leaf
}

func (TransformExpr) node() {}

func (e TransformExpr) String() string {
	return string(e.Op) + "(" + e.Operand.String() + ")"
}

// BlockExpr is a parenthesized sub-expression.
type BlockExpr struct {
	Inner Node
}

func (BlockExpr) node() {}

func (e BlockExpr) String() string {
	return "(" + e.Inner.String() + ")"
}

// Leaf is a field reference, a string literal or a bare value. Value holds
// the column name for fields, the unquoted text for strings and the literal
// text for values.
type Leaf struct {
	Kind  ExpressionKind
	Value string
}

func (Leaf) node() {}

func (e Leaf) String() string {
	switch e.Kind {
	case Field:
		return "{" + escape(e.Value, "{}") + "}"
	case String:
		return `"` + escape(e.Value, `"`) + `"`
	}
	return e.Value
}

// leafFromToken decodes the text of an expression token.
func leafFromToken(t Token) Leaf {
	leaf := Leaf{Kind: t.Lexeme.Kind, Value: t.Text}
	switch leaf.Kind {
	case Field, String:
		leaf.Value = unescape(t.Text[1 : len(t.Text)-1])
	}
	return leaf
}

func escape(s, special string) string {
	if !strings.ContainsAny(s, special+`\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

var spellings = map[Operator]string{
	OpDateStartsWith: "datestartswith",
	OpEqual:          "=",
	OpGreaterOrEqual: ">=",
	OpGreaterThan:    ">",
	OpLessOrEqual:    "<=",
	OpLessThan:       "<",
	OpNotEqual:       "!=",
	OpIsBlank:        "is blank",
	OpIsBool:         "is bool",
	OpIsDate:         "is date",
	OpIsEven:         "is even",
	OpIsNil:          "is nil",
	OpIsNum:          "is num",
	OpIsObject:       "is object",
	OpIsOdd:          "is odd",
	OpIsPrime:        "is prime",
	OpIsStr:          "is str",
}

func spelling(op Operator) string {
	if s, ok := spellings[op]; ok {
		return s
	}
	return string(op)
}

// Walk visits node and its descendants depth-first, parents before children.
// Returning false from fn skips the children of the current node.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case LogicalExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case RelationalExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case UnaryExpr:
		Walk(n.Operand, fn)
	case TransformExpr:
		Walk(n.Operand, fn)
	case BlockExpr:
		Walk(n.Inner, fn)
	}
}

// Fields returns the distinct column names referenced by node, in order of
// first use.
func Fields(node Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(node, func(n Node) bool {
		if leaf, ok := n.(Leaf); ok && leaf.Kind == Field && !seen[leaf.Value] {
			seen[leaf.Value] = true
			names = append(names, leaf.Value)
		}
		return true
	})
	return names
}
