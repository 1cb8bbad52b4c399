// Package formula compiles textual selections and derived quantities such as
//
//	B_PT > 2000 && (K_PIDK - pi_PIDK) > 5
//	sqrt(px^2 + py^2)
//	TMath::Abs(eta[0]) < 2.5 || Entry$ % 2 == 0
//
// into closures evaluated against the current row of a dataset.
//
// Names are resolved once, at compile time: a name the caller reports as a
// column becomes a column reference, a name followed by '(' is a builtin
// function (namespaces such as "TMath::" are ignored), "Entry$" is the current
// row index and true/false are boolean literals. Anything else fails to
// compile. Boolean results evaluate to 1 or 0.
package formula

import (
	"fmt"
	"math"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// Env supplies column values while a Program runs.
type Env interface {
	// Read returns the value of a column at the current row.
	Read(name string) (columnar.Value, error)
	// Entry returns the current logical row index.
	Entry() int64
}

type evalFunc func(Env) (float64, error)

// Program is a compiled formula. It is immutable and may be evaluated any
// number of times.
type Program struct {
	text    string
	kind    Kind
	columns []string
	eval    evalFunc
}

// Compile parses text. has reports whether a name is a column.
func Compile(text string, has func(name string) bool) (*Program, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, malformed(text, err)
	}
	p := &parser{toks: toks, has: has, seen: make(map[string]bool)}
	root, err := p.parse()
	if err != nil {
		return nil, malformed(text, err)
	}
	return &Program{
		text:    text,
		kind:    root.kind(),
		columns: p.columns,
		eval:    compileNode(root),
	}, nil
}

func malformed(text string, err error) error {
	return errors.Wrap(err, errors.ErrorTypeMalformedFormula, "cannot compile formula").
		WithDetail("formula", text)
}

// Text returns the source text.
func (p *Program) Text() string { return p.text }

// Kind returns the result kind.
func (p *Program) Kind() Kind { return p.kind }

// Columns returns the referenced columns in order of first use.
func (p *Program) Columns() []string { return append([]string(nil), p.columns...) }

// Eval evaluates the program at env's current row.
func (p *Program) Eval(env Env) (float64, error) {
	return p.eval(env)
}

// Bool evaluates the program and reports whether the result is non-zero.
func (p *Program) Bool(env Env) (bool, error) {
	v, err := p.eval(env)
	return v != 0, err
}

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func compileNode(n node) evalFunc {
	switch n := n.(type) {
	case numberNode:
		v := n.v
		return func(Env) (float64, error) { return v, nil }

	case boolNode:
		v := boolean(n.v)
		return func(Env) (float64, error) { return v, nil }

	case entryNode:
		return func(env Env) (float64, error) { return float64(env.Entry()), nil }

	case columnNode:
		return compileColumn(n)

	case callNode:
		return compileCall(n)

	case unaryNode:
		x := compileNode(n.x)
		if n.op == "!" {
			return func(env Env) (float64, error) {
				v, err := x(env)
				return boolean(v == 0), err
			}
		}
		return func(env Env) (float64, error) {
			v, err := x(env)
			return -v, err
		}

	case binaryNode:
		return compileBinary(n)
	}
	panic(fmt.Sprintf("formula: unhandled node %T", n))
}

func compileColumn(n columnNode) evalFunc {
	name := n.name
	if n.index == nil {
		return func(env Env) (float64, error) {
			v, err := env.Read(name)
			if err != nil {
				return 0, err
			}
			if v.Len() == 0 {
				return 0, errors.Newf(errors.ErrorTypeOutOfRange, "column %q is empty at this row", name)
			}
			return v.Float64(), nil
		}
	}

	index := compileNode(n.index)
	return func(env Env) (float64, error) {
		iv, err := index(env)
		if err != nil {
			return 0, err
		}
		v, err := env.Read(name)
		if err != nil {
			return 0, err
		}
		i := int(math.Floor(iv))
		if iv < 0 || i >= v.Len() {
			return 0, errors.Newf(errors.ErrorTypeOutOfRange, "index %v outside [0, %d) of column %q", iv, v.Len(), name)
		}
		return v.At(i), nil
	}
}

func compileCall(n callNode) evalFunc {
	args := make([]evalFunc, len(n.args))
	for i, a := range n.args {
		args[i] = compileNode(a)
	}
	fn := n.fn.fn
	return func(env Env) (float64, error) {
		vals := make([]float64, len(args))
		for i, a := range args {
			v, err := a(env)
			if err != nil {
				return 0, err
			}
			vals[i] = v
		}
		return fn(vals), nil
	}
}

func compileBinary(n binaryNode) evalFunc {
	l, r := compileNode(n.l), compileNode(n.r)

	switch n.op {
	case "&&":
		return func(env Env) (float64, error) {
			a, err := l(env)
			if err != nil || a == 0 {
				return 0, err
			}
			b, err := r(env)
			return boolean(b != 0), err
		}
	case "||":
		return func(env Env) (float64, error) {
			a, err := l(env)
			if err != nil {
				return 0, err
			}
			if a != 0 {
				return 1, nil
			}
			b, err := r(env)
			return boolean(b != 0), err
		}
	}

	var op func(a, b float64) float64
	switch n.op {
	case "+":
		op = func(a, b float64) float64 { return a + b }
	case "-":
		op = func(a, b float64) float64 { return a - b }
	case "*":
		op = func(a, b float64) float64 { return a * b }
	case "/":
		op = func(a, b float64) float64 { return a / b }
	case "%":
		op = math.Mod
	case "^":
		op = math.Pow
	case "==":
		op = func(a, b float64) float64 { return boolean(a == b) }
	case "!=":
		op = func(a, b float64) float64 { return boolean(a != b) }
	case "<":
		op = func(a, b float64) float64 { return boolean(a < b) }
	case "<=":
		op = func(a, b float64) float64 { return boolean(a <= b) }
	case ">":
		op = func(a, b float64) float64 { return boolean(a > b) }
	case ">=":
		op = func(a, b float64) float64 { return boolean(a >= b) }
	default:
		panic(fmt.Sprintf("formula: unhandled operator %q", n.op))
	}

	return func(env Env) (float64, error) {
		a, err := l(env)
		if err != nil {
			return 0, err
		}
		b, err := r(env)
		if err != nil {
			return 0, err
		}
		return op(a, b), nil
	}
}
