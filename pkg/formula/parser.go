package formula

import (
	"fmt"
	"strings"
)

// Kind is the type of a formula's result.
type Kind int

const (
	Number Kind = iota
	Bool
)

func (k Kind) String() string {
	if k == Bool {
		return "bool"
	}
	return "number"
}

type node interface {
	kind() Kind
}

type (
	numberNode struct{ v float64 }
	boolNode   struct{ v bool }
	entryNode  struct{}
	columnNode struct {
		name  string
		index node
	}
	callNode struct {
		name string
		fn   builtin
		args []node
	}
	unaryNode struct {
		op string
		x  node
	}
	binaryNode struct {
		op   string
		l, r node
	}
)

func (numberNode) kind() Kind { return Number }
func (boolNode) kind() Kind   { return Bool }
func (entryNode) kind() Kind  { return Number }
func (columnNode) kind() Kind { return Number }
func (callNode) kind() Kind   { return Number }

func (n unaryNode) kind() Kind {
	if n.op == "!" {
		return Bool
	}
	return Number
}

func (n binaryNode) kind() Kind {
	switch n.op {
	case "||", "&&", "==", "!=", "<", "<=", ">", ">=":
		return Bool
	}
	return Number
}

// entryName is the pseudo-column holding the current logical row index.
const entryName = "Entry$"

type parser struct {
	toks    []token
	pos     int
	has     func(string) bool
	columns []string
	seen    map[string]bool
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) expect(kind tokenKind, what string) error {
	t := p.next()
	if t.kind != kind {
		return fmt.Errorf("expected %s, found %s", what, t)
	}
	return nil
}

func (p *parser) parse() (node, error) {
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s", t)
	}
	return n, nil
}

// A single '|' or '&' means the same as its doubled form.
func (p *parser) parseOr() (node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("||", "|"); !ok {
			return l, nil
		}
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: "||", l: l, r: r}
	}
}

func (p *parser) parseAnd() (node, error) {
	l, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("&&", "&"); !ok {
			return l, nil
		}
		p.next()
		r, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: "&&", l: l, r: r}
	}
}

func (p *parser) parseComparison() (node, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("==", "=", "!=", "<", "<=", ">", ">=")
		if !ok {
			return l, nil
		}
		p.next()
		if op == "=" {
			op = "=="
		}
		r, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: op, l: l, r: r}
	}
}

func (p *parser) parseAdditive() (node, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+", "-")
		if !ok {
			return l, nil
		}
		p.next()
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: op, l: l, r: r}
	}
}

func (p *parser) parseMultiplicative() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*", "/", "%")
		if !ok {
			return l, nil
		}
		p.next()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: op, l: l, r: r}
	}
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.isOp("!", "-", "+"); ok {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			return x, nil
		}
		return unaryNode{op: op, x: x}, nil
	}
	return p.parsePower()
}

// parsePower is right-associative and binds tighter than unary minus, so
// -2^2 is -4 and 2^-1 is 0.5.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.isOp("^"); !ok {
		return base, nil
	}
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: "^", l: base, r: exp}, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode{v: t.num}, nil

	case tokLParen:
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil

	case tokIdent:
		return p.parseIdent(t)
	}
	return nil, fmt.Errorf("unexpected %s", t)
}

func (p *parser) parseIdent(t token) (node, error) {
	name := t.text

	if p.peek().kind == tokLParen {
		return p.parseCall(t)
	}
	if name == entryName {
		return entryNode{}, nil
	}
	if p.has(name) {
		col := columnNode{name: name}
		p.addColumn(name)
		if p.peek().kind == tokLBracket {
			p.next()
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
			col.index = idx
		}
		return col, nil
	}
	switch strings.ToLower(name) {
	case "true":
		return boolNode{v: true}, nil
	case "false":
		return boolNode{v: false}, nil
	}
	return nil, fmt.Errorf("unknown name %s", t)
}

func (p *parser) parseCall(t token) (node, error) {
	p.next() // (
	name := t.text
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	fn, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown function %s", t)
	}

	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if fn.arity >= 0 && len(args) != fn.arity {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d", t.text, fn.arity, len(args))
	}
	if fn.arity < 0 && len(args) == 0 {
		return nil, fmt.Errorf("%s needs at least one argument", t.text)
	}
	return callNode{name: strings.ToLower(name), fn: fn, args: args}, nil
}

func (p *parser) addColumn(name string) {
	if p.seen[name] {
		return
	}
	p.seen[name] = true
	p.columns = append(p.columns, name)
}
