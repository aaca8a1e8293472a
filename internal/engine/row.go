package engine

import (
	"strings"

	"github.com/valyala/fastjson"
)

// JSONRow is a table row backed by a parsed JSON object. It is only valid
// until the parser that produced it parses again.
type JSONRow struct {
	v *fastjson.Value
}

// ParseRow parses one JSON object with p.
func ParseRow(p *fastjson.Parser, data []byte) (JSONRow, error) {
	v, err := p.ParseBytes(data)
	if err != nil {
		return JSONRow{}, err
	}
	if v.Type() != fastjson.TypeObject {
		return JSONRow{}, ErrNotObject
	}
	return JSONRow{v: v}, nil
}

// Get implements filterql.Row. A column name that is not a top-level key is
// looked up as a dotted path into nested objects.
func (r JSONRow) Get(field string) (interface{}, bool) {
	v := r.lookup(field)
	if v == nil {
		return nil, false
	}
	return toInterface(v), true
}

func (r JSONRow) lookup(field string) *fastjson.Value {
	if r.v == nil {
		return nil
	}
	v := r.v.Get(field)
	if v == nil && strings.Contains(field, ".") {
		v = r.v.Get(strings.Split(field, ".")...)
	}
	return v
}

func toInterface(v *fastjson.Value) interface{} {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeObject:
		o := v.GetObject()
		m := make(map[string]interface{}, o.Len())
		o.Visit(func(key []byte, child *fastjson.Value) {
			m[string(key)] = toInterface(child)
		})
		return m
	case fastjson.TypeArray:
		items := v.GetArray()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = toInterface(item)
		}
		return out
	}
	return nil
}
