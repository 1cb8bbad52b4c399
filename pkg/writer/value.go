package writer

import (
	"reflect"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// assign copies value into buf. Sequences fill up to limit elements from the
// start; anything else sets element 0 only. It returns the number of elements
// written.
func assign(buf columnar.Buffer, limit int, value any) (int, error) {
	switch v := value.(type) {
	case float64:
		buf.SetFloat64(0, v)
		return 1, nil
	case float32:
		buf.SetFloat64(0, float64(v))
		return 1, nil
	case int:
		buf.SetInt64(0, int64(v))
		return 1, nil
	case int64:
		buf.SetInt64(0, v)
		return 1, nil
	case int32:
		buf.SetInt64(0, int64(v))
		return 1, nil
	case bool:
		buf.SetInt64(0, boolInt(v))
		return 1, nil
	case []float64:
		n := min(len(v), limit)
		for i := range n {
			buf.SetFloat64(i, v[i])
		}
		return n, nil
	case columnar.Value:
		n := min(v.Len(), limit)
		for i := range n {
			if v.Type().IsFloat() {
				buf.SetFloat64(i, v.At(i))
			} else {
				buf.SetInt64(i, v.Int64At(i))
			}
		}
		return n, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := min(rv.Len(), limit)
		for i := range n {
			if !setElement(buf, i, rv.Index(i)) {
				return i, mismatch(value)
			}
		}
		return n, nil
	}
	if !setElement(buf, 0, rv) {
		return 0, mismatch(value)
	}
	return 1, nil
}

func setElement(buf columnar.Buffer, i int, rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		buf.SetFloat64(i, rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.SetInt64(i, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.SetInt64(i, int64(rv.Uint()))
	case reflect.Bool:
		buf.SetInt64(i, boolInt(rv.Bool()))
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return false
		}
		return setElement(buf, i, rv.Elem())
	default:
		return false
	}
	return true
}

// length returns how many elements value holds, 1 for scalars.
func length(value any) int {
	if v, ok := value.(columnar.Value); ok {
		return v.Len()
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	}
	return 1
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func mismatch(value any) error {
	return errors.Newf(errors.ErrorTypeTypeMismatch, "cannot store %T in a numeric column", value)
}
