package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

type mapEnv struct {
	cols  map[string][]float64
	entry int64
	reads int
}

func (m *mapEnv) has(name string) bool {
	_, ok := m.cols[name]
	return ok
}

func (m *mapEnv) Read(name string) (columnar.Value, error) {
	m.reads++
	vals, ok := m.cols[name]
	if !ok {
		return columnar.Value{}, errors.UnknownColumn(name)
	}
	buf := columnar.NewBuffer(columnar.Float64, len(vals))
	for i, v := range vals {
		buf.SetFloat64(i, v)
	}
	return columnar.NewValue(buf, len(vals), len(vals) != 1), nil
}

func (m *mapEnv) Entry() int64 { return m.entry }

func newEnv() *mapEnv {
	return &mapEnv{
		cols: map[string][]float64{
			"x":      {3},
			"y":      {4},
			"B_PT":   {2500},
			"eta":    {1.5, -2.7, 0.3},
			"empty":  {},
			"K::ref": {7},
		},
		entry: 11,
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		formula string
		want    float64
		kind    Kind
	}{
		{"1 + 2 * 3", 7, Number},
		{"(1 + 2) * 3", 9, Number},
		{"2^3^2", 512, Number},
		{"-2^2", -4, Number},
		{"2^-1", 0.5, Number},
		{"7 % 4", 3, Number},
		{"1.5e3 / 3", 500, Number},
		{"sqrt(x^2 + y^2)", 5, Number},
		{"TMath::Sqrt(x*x + y*y)", 5, Number},
		{"TMath::Pi()", math.Pi, Number},
		{"max(x, y, 1)", 4, Number},
		{"atan2(0, 1)", 0, Number},
		{"B_PT > 2000", 1, Bool},
		{"B_PT > 2000 && x == 4", 0, Bool},
		{"B_PT > 2000 & x = 3", 1, Bool},
		{"x > 5 || y > 3", 1, Bool},
		{"x > 5 | y > 5", 0, Bool},
		{"!(x > 5)", 1, Bool},
		{"!x", 0, Bool},
		{"x != y", 1, Bool},
		{"x <= 3 && y >= 4", 1, Bool},
		{"true && !false", 1, Bool},
		{"eta[1]", -2.7, Number},
		{"eta[x - 1]", 0.3, Number},
		{"eta", 1.5, Number},
		{"abs(eta[1]) < 2.5", 0, Bool},
		{"Entry$", 11, Number},
		{"Entry$ % 2 == 1", 1, Bool},
		{"K::ref + 1", 8, Number},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			env := newEnv()
			p, err := Compile(tt.formula, env.has)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind())

			got, err := p.Eval(env)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	env := newEnv()
	for _, src := range []string{
		"",
		"x +",
		"(x + y",
		"x y",
		"nosuchcolumn > 3",
		"nosuchfn(x)",
		"sqrt(x, y)",
		"max()",
		"eta[1",
		"1.2.3",
		"x > > 3",
	} {
		_, err := Compile(src, env.has)
		require.Error(t, err, src)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedFormula), src)
	}
}

func TestIndexErrors(t *testing.T) {
	env := newEnv()

	p, err := Compile("eta[3]", env.has)
	require.NoError(t, err)
	_, err = p.Eval(env)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutOfRange))

	p, err = Compile("eta[-1]", env.has)
	require.NoError(t, err)
	_, err = p.Eval(env)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutOfRange))

	p, err = Compile("empty + 1", env.has)
	require.NoError(t, err)
	_, err = p.Eval(env)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOutOfRange))
}

func TestShortCircuit(t *testing.T) {
	env := newEnv()
	p, err := Compile("x > 5 && eta[10] > 0", env.has)
	require.NoError(t, err)

	ok, err := p.Bool(env)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, env.reads, "right operand must not be evaluated")
}

func TestColumnsInFirstUseOrder(t *testing.T) {
	env := newEnv()
	p, err := Compile("y + x * y - eta[0]", env.has)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x", "eta"}, p.Columns())
	assert.Equal(t, "y + x * y - eta[0]", p.Text())
}

func TestColumnShadowsLiteral(t *testing.T) {
	has := func(name string) bool { return name == "true" }
	p, err := Compile("true", has)
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, p.Columns())
}
