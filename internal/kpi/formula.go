package kpi

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is a closed formula expression tree. Leaves are field references
// or constants; interior nodes are arithmetic operators. Trees are
// evaluated by interpretation so missing-field and type-mismatch handling
// lives in one place.
type Expr interface {
	// Eval computes the expression over a normalized row. A missing or
	// non-numeric input makes the whole expression missing with a nil
	// error; arithmetic failures such as division by zero return an error.
	Eval(row NormalizedRow) (Value, error)
	// Fields adds every field name the expression references to set.
	Fields(set map[string]struct{})
	// String renders the expression in source form.
	String() string
}

type fieldRef struct {
	name string
}

func (f fieldRef) Eval(row NormalizedRow) (Value, error) {
	fv, ok := row.Fields[f.name]
	if !ok || fv.Kind != FieldNumber {
		return Missing, nil
	}
	return Number(fv.Number), nil
}

func (f fieldRef) Fields(set map[string]struct{}) { set[f.name] = struct{}{} }

func (f fieldRef) String() string { return f.name }

type constant struct {
	value float64
}

func (c constant) Eval(NormalizedRow) (Value, error) { return Number(c.value), nil }

func (c constant) Fields(map[string]struct{}) {}

func (c constant) String() string { return strconv.FormatFloat(c.value, 'g', -1, 64) }

type binary struct {
	op          byte
	left, right Expr
}

func (b binary) Eval(row NormalizedRow) (Value, error) {
	l, err := b.left.Eval(row)
	if err != nil {
		return Missing, err
	}
	if !l.Valid {
		return Missing, nil
	}
	r, err := b.right.Eval(row)
	if err != nil {
		return Missing, err
	}
	if !r.Valid {
		return Missing, nil
	}
	switch b.op {
	case '+':
		return Number(l.Float + r.Float), nil
	case '-':
		return Number(l.Float - r.Float), nil
	case '*':
		return Number(l.Float * r.Float), nil
	case '/':
		if r.Float == 0 {
			return Missing, fmt.Errorf("division by zero in %q", b.String())
		}
		return Number(l.Float / r.Float), nil
	default:
		return Missing, fmt.Errorf("unknown operator %q", string(b.op))
	}
}

func (b binary) Fields(set map[string]struct{}) {
	b.left.Fields(set)
	b.right.Fields(set)
}

func (b binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.left, string(b.op), b.right)
}

type negate struct {
	inner Expr
}

func (n negate) Eval(row NormalizedRow) (Value, error) {
	v, err := n.inner.Eval(row)
	if err != nil || !v.Valid {
		return Missing, err
	}
	return Number(-v.Float), nil
}

func (n negate) Fields(set map[string]struct{}) { n.inner.Fields(set) }

func (n negate) String() string { return "-" + n.inner.String() }

// ParseFormula parses a formula source string into an expression tree.
// The grammar covers field references, numeric constants, + - * /, unary
// minus, and parentheses. A bare field name parses to a direct field
// reference.
func ParseFormula(src string) (Expr, error) {
	p := &formulaParser{src: src}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("formula %q: unexpected %q at offset %d", src, p.src[p.pos:], p.pos)
	}
	return expr, nil
}

// formulaParser is a small recursive-descent parser over the source text.
type formulaParser struct {
	src string
	pos int
}

func (p *formulaParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *formulaParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *formulaParser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *formulaParser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *formulaParser) parseFactor() (Expr, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, fmt.Errorf("formula %q: missing closing parenthesis", p.src)
		}
		p.pos++
		return inner, nil
	case c == '-':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return negate{inner: inner}, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(rune(c)):
		return p.parseField()
	case c == 0:
		return nil, fmt.Errorf("formula %q: unexpected end of input", p.src)
	default:
		return nil, fmt.Errorf("formula %q: unexpected character %q", p.src, string(c))
	}
}

func (p *formulaParser) parseNumber() (Expr, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= '0' && c <= '9' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("formula %q: bad number %q", p.src, p.src[start:p.pos])
	}
	return constant{value: f}, nil
}

func (p *formulaParser) parseField() (Expr, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(rune(p.src[p.pos])) {
		p.pos++
	}
	name := strings.TrimSpace(p.src[start:p.pos])
	return fieldRef{name: name}, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}
