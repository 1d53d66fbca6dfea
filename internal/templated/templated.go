// Package templated parses and evaluates the ${...} expressions embedded in
// label, info and group strings.
//
// The expression body is a closed allow-list: context lookups, attribute and
// key access, substring slicing, str() conversion and fixed() decimal
// formatting. Anything else is a syntax error at parse time. Evaluation is
// pure; the same template and context always produce the same output.
package templated

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Context is the restricted evaluation environment. Values are strings,
// numbers or nested Contexts.
type Context map[string]any

// SyntaxError reports a template rejected at parse time.
type SyntaxError struct {
	Text string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template syntax error at %d in %q: %s", e.Pos, e.Text, e.Msg)
}

type part struct {
	literal string
	expr    node // nil for literal parts
}

// Template is a parsed template string.
type Template struct {
	text  string
	parts []part
}

var (
	cacheMu sync.RWMutex
	cache   = map[uint64]*Template{}
)

// Parse returns the parsed template, memoized per unique template text.
// Templates are static; only the bound context varies between renders.
func Parse(text string) (*Template, error) {
	key := xxhash.Sum64String(text)

	cacheMu.RLock()
	t, ok := cache[key]
	cacheMu.RUnlock()
	if ok && t.text == text {
		return t, nil
	}

	t, err := parse(text)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[key] = t
	cacheMu.Unlock()
	return t, nil
}

// Render evaluates every ${...} span against ctx and concatenates the
// results with the surrounding literal text.
func (t *Template) Render(ctx Context) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			b.WriteString(p.literal)
			continue
		}
		v, err := p.expr.eval(ctx)
		if err != nil {
			return "", fmt.Errorf("render %q: %w", t.text, err)
		}
		b.WriteString(stringify(v))
	}
	return b.String(), nil
}

// Render is a one-shot parse-and-render, used for static text where the
// template has already passed validation.
func Render(text string, ctx Context) (string, error) {
	t, err := Parse(text)
	if err != nil {
		return "", err
	}
	return t.Render(ctx)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case int:
		return fmt.Sprintf("%d", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
