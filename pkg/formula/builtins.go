package formula

import "math"

// builtin is a numeric function callable from formulas. arity -1 means one or
// more arguments.
type builtin struct {
	arity int
	fn    func(args []float64) float64
}

func unary(f func(float64) float64) builtin {
	return builtin{arity: 1, fn: func(a []float64) float64 { return f(a[0]) }}
}

func binary(f func(float64, float64) float64) builtin {
	return builtin{arity: 2, fn: func(a []float64) float64 { return f(a[0], a[1]) }}
}

func constant(v float64) builtin {
	return builtin{arity: 0, fn: func([]float64) float64 { return v }}
}

var builtins = map[string]builtin{
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log10": unary(math.Log10),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"asin":  unary(math.Asin),
	"acos":  unary(math.Acos),
	"atan":  unary(math.Atan),
	"sinh":  unary(math.Sinh),
	"cosh":  unary(math.Cosh),
	"tanh":  unary(math.Tanh),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"atan2": binary(math.Atan2),
	"pow":   binary(math.Pow),
	"hypot": binary(math.Hypot),
	"pi":    constant(math.Pi),
	"e":     constant(math.E),
	"min": {arity: -1, fn: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {arity: -1, fn: func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
}
