package parser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Node wraps a decoded JSON value and reads it through dotted paths such as
// "Results.0.Rating" or "offers.price". Missing paths yield the zero Node, so lookups
// chain without intermediate checks.
type Node struct {
	v any
}

// NewNode wraps a value produced by encoding/json.
func NewNode(v any) Node {
	return Node{v: v}
}

// IsZero reports whether the node holds no value.
func (n Node) IsZero() bool {
	return n.v == nil
}

// Raw returns the underlying value.
func (n Node) Raw() any {
	return n.v
}

// Get follows a dotted path. Numeric segments index into arrays.
func (n Node) Get(path string) Node {
	if path == "" {
		return n
	}
	cur := n.v
	for _, seg := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case map[string]any:
			cur = c[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(c) {
				return Node{}
			}
			cur = c[i]
		default:
			return Node{}
		}
		if cur == nil {
			return Node{}
		}
	}
	return Node{v: cur}
}

// First returns the first path that resolves to a non-empty value.
func (n Node) First(paths ...string) Node {
	for _, p := range paths {
		got := n.Get(p)
		if got.IsZero() {
			continue
		}
		if s, ok := got.v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return got
	}
	return Node{}
}

// Text returns scalar values as cleaned text.
func (n Node) Text() (string, bool) {
	switch v := n.v.(type) {
	case string:
		s := CleanText(v)
		return s, s != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// String returns the text value or "".
func (n Node) String() string {
	s, _ := n.Text()
	return s
}

// Float reads numbers and numeric strings.
func (n Node) Float() (float64, bool) {
	switch v := n.v.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Int reads integral numbers and numeric strings. Fractional values are rejected.
func (n Node) Int() (int64, bool) {
	f, ok := n.Float()
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Bool reads booleans and the strings "true"/"false".
func (n Node) Bool() (bool, bool) {
	switch v := n.v.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// List returns array elements. A single non-array value is returned as a one-element
// list, which absorbs payloads that use an object where a list is expected.
func (n Node) List() []Node {
	switch v := n.v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]Node, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, Node{v: item})
			}
		}
		return out
	}
	return []Node{n}
}

// Fields returns the members of an object node.
func (n Node) Fields() map[string]Node {
	m, ok := n.v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]Node, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = Node{v: v}
		}
	}
	return out
}
