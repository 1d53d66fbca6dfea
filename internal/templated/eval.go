package templated

import (
	"fmt"
	"math"
	"strconv"
)

type node interface {
	eval(ctx Context) (any, error)
}

type litNode struct{ v any }

func (n *litNode) eval(Context) (any, error) { return n.v, nil }

type varNode struct{ name string }

func (n *varNode) eval(ctx Context) (any, error) {
	v, ok := ctx[n.name]
	if !ok {
		return nil, fmt.Errorf("unknown name %q", n.name)
	}
	return v, nil
}

type attrNode struct {
	recv node
	name string
}

func (n *attrNode) eval(ctx Context) (any, error) {
	recv, err := n.recv.eval(ctx)
	if err != nil {
		return nil, err
	}
	m, ok := asContext(recv)
	if !ok {
		return nil, fmt.Errorf("attribute %q on non-object %T", n.name, recv)
	}
	v, ok := m[n.name]
	if !ok {
		return nil, fmt.Errorf("no attribute %q", n.name)
	}
	return v, nil
}

type indexNode struct {
	recv node
	key  node
}

func (n *indexNode) eval(ctx Context) (any, error) {
	recv, err := n.recv.eval(ctx)
	if err != nil {
		return nil, err
	}
	key, err := n.key.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch r := recv.(type) {
	case string:
		i, ok := key.(int)
		if !ok {
			return nil, fmt.Errorf("string index must be an integer, got %T", key)
		}
		i = clampIndex(i, len(r))
		if i >= len(r) {
			return "", nil
		}
		return string(r[i]), nil
	default:
		m, ok := asContext(recv)
		if !ok {
			return nil, fmt.Errorf("cannot index %T", recv)
		}
		k, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %T", key)
		}
		v, ok := m[k]
		if !ok {
			return nil, fmt.Errorf("no key %q", k)
		}
		return v, nil
	}
}

type sliceNode struct {
	recv   node
	lo, hi node // nil means open end
}

func (n *sliceNode) eval(ctx Context) (any, error) {
	recv, err := n.recv.eval(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := recv.(string)
	if !ok {
		return nil, fmt.Errorf("slice of non-string %T", recv)
	}
	lo, hi := 0, len(s)
	if n.lo != nil {
		if lo, err = evalInt(n.lo, ctx); err != nil {
			return nil, err
		}
	}
	if n.hi != nil {
		if hi, err = evalInt(n.hi, ctx); err != nil {
			return nil, err
		}
	}
	lo = clampIndex(lo, len(s))
	hi = clampIndex(hi, len(s))
	if hi < lo {
		hi = lo
	}
	return s[lo:hi], nil
}

type callNode struct {
	fn   string
	args []node
}

func (n *callNode) eval(ctx Context) (any, error) {
	vals := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(ctx)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	switch n.fn {
	case "str":
		return stringify(vals[0]), nil
	case "fixed":
		f, err := asFloat(vals[0])
		if err != nil {
			return nil, err
		}
		prec, ok := vals[1].(int)
		if !ok || prec < 0 || prec > 12 {
			return nil, fmt.Errorf("fixed precision must be an integer in [0,12]")
		}
		if math.IsNaN(f) {
			return "", nil
		}
		return strconv.FormatFloat(f, 'f', prec, 64), nil
	default:
		return nil, fmt.Errorf("function %q is not allowed", n.fn)
	}
}

func asContext(v any) (Context, bool) {
	switch m := v.(type) {
	case Context:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

func asFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func evalInt(n node, ctx Context) (int, error) {
	v, err := n.eval(ctx)
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("slice bound must be an integer, got %T", v)
	}
	return i, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
