package templated

import (
	"strconv"
	"strings"
)

// parse splits the text into literal and ${...} parts and parses each span
// body with a small recursive-descent parser.
func parse(text string) (*Template, error) {
	t := &Template{text: text}
	rest := text
	base := 0
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			if rest != "" {
				t.parts = append(t.parts, part{literal: rest})
			}
			return t, nil
		}
		if i > 0 {
			t.parts = append(t.parts, part{literal: rest[:i]})
		}
		end := matchBrace(rest[i+2:])
		if end < 0 {
			return nil, &SyntaxError{Text: text, Pos: base + i, Msg: "unterminated ${"}
		}
		body := rest[i+2 : i+2+end]
		p := &parser{text: text, body: body, base: base + i + 2}
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.atEnd() {
			return nil, &SyntaxError{Text: text, Pos: p.base + p.pos, Msg: "unexpected trailing input"}
		}
		t.parts = append(t.parts, part{expr: n})
		rest = rest[i+2+end+1:]
		base += i + 2 + end + 1
	}
}

// matchBrace returns the offset of the closing brace, skipping quoted
// strings, or -1.
func matchBrace(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '}':
			return i
		}
	}
	return -1
}

type parser struct {
	text string // full template, for error reporting
	body string
	pos  int
	base int
}

func (p *parser) errf(msg string) error {
	return &SyntaxError{Text: p.text, Pos: p.base + p.pos, Msg: msg}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.body) && (p.body[p.pos] == ' ' || p.body[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) atEnd() bool {
	p.skipSpace()
	return p.pos >= len(p.body)
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.body) {
		return 0
	}
	return p.body[p.pos]
}

func (p *parser) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(c byte) error {
	if !p.accept(c) {
		return p.errf("expected '" + string(c) + "'")
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	if p.pos < len(p.body) && isIdentStart(p.body[p.pos]) {
		p.pos++
		for p.pos < len(p.body) && isIdent(p.body[p.pos]) {
			p.pos++
		}
	}
	return p.body[start:p.pos]
}

// parseExpr := primary { '.' ident | '[' subscript ']' }
func (p *parser) parseExpr() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept('.'):
			name := p.ident()
			if name == "" {
				return nil, p.errf("expected attribute name after '.'")
			}
			n = &attrNode{recv: n, name: name}
		case p.accept('['):
			sub, err := p.parseSubscript(n)
			if err != nil {
				return nil, err
			}
			n = sub
		default:
			return n, nil
		}
	}
}

// parseSubscript handles both key/index access and start:end slices; the
// opening '[' has been consumed.
func (p *parser) parseSubscript(recv node) (node, error) {
	var lo node
	var err error
	if p.peek() != ':' {
		lo, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.accept(':') {
		var hi node
		if p.peek() != ']' {
			hi, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return &sliceNode{recv: recv, lo: lo, hi: hi}, nil
	}
	if lo == nil {
		return nil, p.errf("empty subscript")
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return &indexNode{recv: recv, key: lo}, nil
}

// parsePrimary := call | ident | string | number
func (p *parser) parsePrimary() (node, error) {
	c := p.peek()
	switch {
	case c == '\'' || c == '"':
		return p.parseString(c)
	case c >= '0' && c <= '9', c == '-':
		return p.parseNumber()
	case isIdentStart(c):
		name := p.ident()
		if p.accept('(') {
			return p.parseCall(name)
		}
		return &varNode{name: name}, nil
	case c == 0:
		return nil, p.errf("empty expression")
	default:
		return nil, p.errf("unexpected character '" + string(c) + "'")
	}
}

// allowedFuncs is the closed function allow-list.
var allowedFuncs = map[string]int{
	"str":   1,
	"fixed": 2,
}

func (p *parser) parseCall(name string) (node, error) {
	arity, ok := allowedFuncs[name]
	if !ok {
		return nil, p.errf("function " + strconv.Quote(name) + " is not allowed")
	}
	var args []node
	if p.peek() != ')' {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if !p.accept(',') {
				break
			}
		}
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	if len(args) != arity {
		return nil, p.errf(name + " takes " + strconv.Itoa(arity) + " argument(s)")
	}
	return &callNode{fn: name, args: args}, nil
}

func (p *parser) parseString(quote byte) (node, error) {
	p.pos++ // opening quote
	start := p.pos
	for p.pos < len(p.body) && p.body[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.body) {
		return nil, p.errf("unterminated string")
	}
	s := p.body[start:p.pos]
	p.pos++ // closing quote
	return &litNode{v: s}, nil
}

func (p *parser) parseNumber() (node, error) {
	p.skipSpace()
	start := p.pos
	if p.pos < len(p.body) && p.body[p.pos] == '-' {
		p.pos++
	}
	digits := false
	for p.pos < len(p.body) && (p.body[p.pos] >= '0' && p.body[p.pos] <= '9' || p.body[p.pos] == '.') {
		if p.body[p.pos] != '.' {
			digits = true
		}
		p.pos++
	}
	if !digits {
		return nil, p.errf("malformed number")
	}
	raw := p.body[start:p.pos]
	if strings.Contains(raw, ".") {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, p.errf("malformed number " + strconv.Quote(raw))
		}
		return &litNode{v: f}, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, p.errf("malformed number " + strconv.Quote(raw))
	}
	return &litNode{v: n}, nil
}
