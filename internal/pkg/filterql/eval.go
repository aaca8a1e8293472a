package filterql

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Row is a record that can be matched. Get returns the value of a column:
// nil, bool, float64, string, time.Time, map[string]interface{} or
// []interface{}.
type Row interface {
	Get(field string) (interface{}, bool)
}

// Match evaluates the AST node against a row and returns true if it matches.
func Match(node Node, row Row) bool {
	if node == nil {
		return true // No filter means match all
	}
	return truthy(eval(node, row))
}

func eval(node Node, row Row) interface{} {
	switch n := node.(type) {
	case LogicalExpr:
		return evalLogical(n, row)
	case RelationalExpr:
		return evalRelational(n.Op, eval(n.Left, row), eval(n.Right, row))
	case UnaryExpr:
		if n.Op == OpNot {
			return !truthy(eval(n.Operand, row))
		}
		return evalUnary(n.Op, eval(n.Operand, row))
	case TransformExpr:
		return evalTransform(n.Op, eval(n.Operand, row))
	case BlockExpr:
		return eval(n.Inner, row)
	case Leaf:
		return evalLeaf(n, row)
	}
	return nil
}

func evalLogical(expr LogicalExpr, row Row) bool {
	left := truthy(eval(expr.Left, row))

	switch expr.Op {
	case OpAnd:
		return left && truthy(eval(expr.Right, row))
	case OpOr:
		return left || truthy(eval(expr.Right, row))
	default:
		return false
	}
}

func evalLeaf(leaf Leaf, row Row) interface{} {
	switch leaf.Kind {
	case Field:
		v, _ := row.Get(leaf.Value)
		return v
	case String:
		return leaf.Value
	}
	if f, err := strconv.ParseFloat(leaf.Value, 64); err == nil {
		return f
	}
	switch strings.ToLower(leaf.Value) {
	case "true":
		return true
	case "false":
		return false
	}
	return unescape(leaf.Value)
}

func evalRelational(op Operator, lv, rv interface{}) bool {
	switch op {
	case OpContains:
		l, lok := text(lv)
		r, rok := text(rv)
		return lok && rok && containsIgnoreCase(l, r)
	case OpDateStartsWith:
		l, ok := toTime(lv)
		if !ok {
			return false
		}
		r, ok := text(rv)
		return ok && strings.HasPrefix(l.Format("2006-01-02 15:04:05"), normalizeDatePrefix(r))
	case OpEqual:
		return equalValues(lv, rv)
	case OpNotEqual:
		return !equalValues(lv, rv)
	}

	c, ok := compare(lv, rv)
	if !ok {
		return false
	}
	switch op {
	case OpGreaterOrEqual:
		return c >= 0
	case OpGreaterThan:
		return c > 0
	case OpLessOrEqual:
		return c <= 0
	case OpLessThan:
		return c < 0
	}
	return false
}

func evalUnary(op Operator, v interface{}) bool {
	switch op {
	case OpIsBlank:
		s, ok := v.(string)
		return v == nil || (ok && strings.TrimSpace(s) == "")
	case OpIsBool:
		_, ok := v.(bool)
		return ok
	case OpIsDate:
		_, ok := toTime(v)
		return ok
	case OpIsEven, OpIsOdd:
		n, ok := integer(v)
		if !ok {
			return false
		}
		return (n%2 == 0) == (op == OpIsEven)
	case OpIsNil:
		return v == nil
	case OpIsNum:
		_, ok := v.(float64)
		return ok
	case OpIsObject:
		_, ok := v.(map[string]interface{})
		return ok
	case OpIsPrime:
		n, ok := integer(v)
		return ok && isPrimeNumber(n)
	case OpIsStr:
		_, ok := v.(string)
		return ok
	}
	return false
}

func evalTransform(op Operator, v interface{}) interface{} {
	t, ok := toTime(v)
	if !ok {
		return nil
	}
	switch op {
	case OpYear:
		return float64(t.Year())
	case OpMonth:
		return float64(t.Month())
	case OpDay:
		return float64(t.Day())
	case OpHour:
		return float64(t.Hour())
	case OpMinute:
		return float64(t.Minute())
	case OpSecond:
		return float64(t.Second())
	}
	return nil
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	}
	return true
}

func text(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

func equalValues(lv, rv interface{}) bool {
	if c, ok := compare(lv, rv); ok {
		return c == 0
	}
	if lb, ok := lv.(bool); ok {
		rb, ok := rv.(bool)
		return ok && lb == rb
	}
	return lv == nil && rv == nil
}

// compare orders two values numerically when both are numbers and lexically
// when both have a text form.
func compare(lv, rv interface{}) (int, bool) {
	lf, lok := number(lv)
	rf, rok := number(rv)
	if lok && rok {
		switch {
		case lf < rf:
			return -1, true
		case lf > rf:
			return 1, true
		}
		return 0, true
	}
	if lt, ok := lv.(time.Time); ok {
		if rt, ok := toTime(rv); ok {
			return lt.Compare(rt), true
		}
	}
	ls, lok := text(lv)
	rs, rok := text(rv)
	if !lok || !rok {
		return 0, false
	}
	return strings.Compare(ls, rs), true
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func integer(v interface{}) (int64, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func isPrimeNumber(n int64) bool {
	// ProbablyPrime(0) is exact below 2^64.
	return n >= 2 && big.NewInt(n).ProbablyPrime(0)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15",
	"2006-01-02 15",
	"2006-01-02",
	"2006-01",
	"2006",
}

func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// normalizeDatePrefix maps the T separator of ISO dates to the space used
// when formatting row values.
func normalizeDatePrefix(s string) string {
	return strings.Replace(strings.TrimSpace(s), "T", " ", 1)
}

// containsIgnoreCase checks if haystack contains needle (case-insensitive).
func containsIgnoreCase(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
