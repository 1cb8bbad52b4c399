package columnar

// Value is a read-only view of one column at one row. It aliases the cache's
// buffer and is only valid until the row cursor moves.
type Value struct {
	buf   Buffer
	n     int
	array bool
}

// NewValue wraps the first n elements of buf. Scalars use n == 1 and
// array == false.
func NewValue(buf Buffer, n int, array bool) Value {
	if n < 0 {
		n = 0
	}
	if buf != nil && n > buf.Cap() {
		n = buf.Cap()
	}
	return Value{buf: buf, n: n, array: array}
}

// Scalar returns a float64 value that owns its storage, used for formula
// results.
func Scalar(v float64) Value {
	b := NewBuffer(Float64, 1)
	b.SetFloat64(0, v)
	return Value{buf: b, n: 1}
}

// Type returns the element type code, or 0 for the zero Value.
func (v Value) Type() TypeCode {
	if v.buf == nil {
		return 0
	}
	return v.buf.Type()
}

func (v Value) IsArray() bool { return v.array }

// Len returns the number of valid elements.
func (v Value) Len() int { return v.n }

// Float64 returns element 0, or 0 when the value is empty.
func (v Value) Float64() float64 {
	if v.n == 0 {
		return 0
	}
	return v.buf.Float64(0)
}

// At returns element i as a float64. It panics when i is outside [0, Len).
func (v Value) At(i int) float64 {
	if i < 0 || i >= v.n {
		panic("columnar: index out of range")
	}
	return v.buf.Float64(i)
}

// Int64At returns element i as an int64.
func (v Value) Int64At(i int) int64 {
	if i < 0 || i >= v.n {
		panic("columnar: index out of range")
	}
	return v.buf.Int64(i)
}

// Float64s copies the valid elements into a new slice.
func (v Value) Float64s() []float64 {
	out := make([]float64, v.n)
	for i := range out {
		out[i] = v.buf.Float64(i)
	}
	return out
}

// Raw returns the typed backing slice truncated to Len, e.g. []float32.
func (v Value) Raw() any {
	if v.buf == nil {
		return nil
	}
	return v.buf.Head(v.n)
}

// View returns the valid elements as a []T without copying. ok is false when
// T does not match the column's element type.
func View[T Number](v Value) (s []T, ok bool) {
	s, ok = v.Raw().([]T)
	return s, ok
}
