package columnar

import "fmt"

// Number is the set of element types a Buffer can hold.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Buffer is an owned, fixed-capacity array of typed elements. Buffers do not
// grow in place: callers that need more room allocate a larger one and
// re-bind it wherever the old one was registered.
type Buffer interface {
	// Type returns the element type code.
	Type() TypeCode
	// Cap returns the number of elements the buffer can hold.
	Cap() int
	Float64(i int) float64
	Int64(i int) int64
	SetFloat64(i int, v float64)
	SetInt64(i int, v int64)
	// Slice returns the whole backing slice, e.g. []float32.
	Slice() any
	// Head returns the backing slice truncated to n elements.
	Head(n int) any
}

type typedBuffer[T Number] struct {
	code TypeCode
	data []T
}

// NewBuffer allocates a buffer of n elements for the given type code. It
// panics on an invalid code; declarations are validated before they reach here.
func NewBuffer(code TypeCode, n int) Buffer {
	if n < 0 {
		n = 0
	}
	switch code {
	case Float32:
		return &typedBuffer[float32]{code: code, data: make([]float32, n)}
	case Float64:
		return &typedBuffer[float64]{code: code, data: make([]float64, n)}
	case Int32:
		return &typedBuffer[int32]{code: code, data: make([]int32, n)}
	case Uint32:
		return &typedBuffer[uint32]{code: code, data: make([]uint32, n)}
	case Int64:
		return &typedBuffer[int64]{code: code, data: make([]int64, n)}
	case Uint64:
		return &typedBuffer[uint64]{code: code, data: make([]uint64, n)}
	case Int16:
		return &typedBuffer[int16]{code: code, data: make([]int16, n)}
	case Uint16:
		return &typedBuffer[uint16]{code: code, data: make([]uint16, n)}
	case Int8:
		return &typedBuffer[int8]{code: code, data: make([]int8, n)}
	case Uint8, Bool:
		return &typedBuffer[uint8]{code: code, data: make([]uint8, n)}
	}
	panic(fmt.Sprintf("columnar: invalid type code %q", rune(code)))
}

func (b *typedBuffer[T]) Type() TypeCode { return b.code }
func (b *typedBuffer[T]) Cap() int       { return len(b.data) }
func (b *typedBuffer[T]) Slice() any     { return b.data }

func (b *typedBuffer[T]) Head(n int) any {
	if n > len(b.data) {
		n = len(b.data)
	}
	if n < 0 {
		n = 0
	}
	return b.data[:n:n]
}

func (b *typedBuffer[T]) Float64(i int) float64 { return float64(b.data[i]) }
func (b *typedBuffer[T]) Int64(i int) int64     { return int64(b.data[i]) }

func (b *typedBuffer[T]) SetFloat64(i int, v float64) {
	if b.code == Bool {
		if v != 0 {
			b.data[i] = 1
		} else {
			b.data[i] = 0
		}
		return
	}
	b.data[i] = T(v)
}

func (b *typedBuffer[T]) SetInt64(i int, v int64) {
	if b.code == Bool {
		if v != 0 {
			b.data[i] = 1
		} else {
			b.data[i] = 0
		}
		return
	}
	b.data[i] = T(v)
}

// Transfer copies element si of src into element di of dst, going through
// int64 when neither side is floating point so wide integers keep precision.
func Transfer(dst Buffer, di int, src Buffer, si int) {
	if dst.Type().IsFloat() || src.Type().IsFloat() {
		dst.SetFloat64(di, src.Float64(si))
		return
	}
	dst.SetInt64(di, src.Int64(si))
}

// Copy copies up to n leading elements of src into dst and returns the number
// copied.
func Copy(dst, src Buffer, n int) int {
	n = min(n, dst.Cap(), src.Cap())
	if n <= 0 {
		return 0
	}
	if dst.Type() == src.Type() {
		if copySame[float32](dst, src, n) || copySame[float64](dst, src, n) ||
			copySame[int32](dst, src, n) || copySame[uint32](dst, src, n) ||
			copySame[int64](dst, src, n) || copySame[uint64](dst, src, n) ||
			copySame[int16](dst, src, n) || copySame[uint16](dst, src, n) ||
			copySame[int8](dst, src, n) || copySame[uint8](dst, src, n) {
			return n
		}
	}
	for i := 0; i < n; i++ {
		Transfer(dst, i, src, i)
	}
	return n
}

func copySame[T Number](dst, src Buffer, n int) bool {
	d, ok := dst.Slice().([]T)
	if !ok {
		return false
	}
	s, ok := src.Slice().([]T)
	if !ok {
		return false
	}
	copy(d[:n], s[:n])
	return true
}

// Grow returns buf when it already holds at least n elements, otherwise a new
// buffer of the same type with room for n elements and the old contents
// copied in. It never shrinks.
func Grow(buf Buffer, n int) Buffer {
	if buf.Cap() >= n {
		return buf
	}
	grown := NewBuffer(buf.Type(), n)
	Copy(grown, buf, buf.Cap())
	return grown
}
