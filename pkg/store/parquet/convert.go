package parquet

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// arrowType maps a type code to its physical arrow type. Bool is kept as
// uint8 so that 0/1 values round-trip bit for bit.
func arrowType(code columnar.TypeCode) arrow.DataType {
	switch code {
	case columnar.Float32:
		return arrow.PrimitiveTypes.Float32
	case columnar.Float64:
		return arrow.PrimitiveTypes.Float64
	case columnar.Int32:
		return arrow.PrimitiveTypes.Int32
	case columnar.Uint32:
		return arrow.PrimitiveTypes.Uint32
	case columnar.Int64:
		return arrow.PrimitiveTypes.Int64
	case columnar.Uint64:
		return arrow.PrimitiveTypes.Uint64
	case columnar.Int16:
		return arrow.PrimitiveTypes.Int16
	case columnar.Uint16:
		return arrow.PrimitiveTypes.Uint16
	case columnar.Int8:
		return arrow.PrimitiveTypes.Int8
	default:
		return arrow.PrimitiveTypes.Uint8
	}
}

// typeCodeOf infers a type code for files written by other tools.
func typeCodeOf(dt arrow.DataType) (columnar.TypeCode, bool) {
	switch dt.ID() {
	case arrow.FLOAT32:
		return columnar.Float32, true
	case arrow.FLOAT64:
		return columnar.Float64, true
	case arrow.INT32:
		return columnar.Int32, true
	case arrow.UINT32:
		return columnar.Uint32, true
	case arrow.INT64:
		return columnar.Int64, true
	case arrow.UINT64:
		return columnar.Uint64, true
	case arrow.INT16:
		return columnar.Int16, true
	case arrow.UINT16:
		return columnar.Uint16, true
	case arrow.INT8:
		return columnar.Int8, true
	case arrow.UINT8:
		return columnar.Uint8, true
	case arrow.BOOL:
		return columnar.Bool, true
	}
	return 0, false
}

// declarations reads the column declarations of a schema. Columns without a
// recorded declaration are inferred when they are primitive and skipped
// otherwise.
func declarations(schema *arrow.Schema, meta func(key string) (string, bool)) ([]columnar.Declaration, error) {
	out := make([]columnar.Declaration, 0, schema.NumFields())
	for _, field := range schema.Fields() {
		if s, ok := meta(MetaColumnPrefix + field.Name); ok {
			decl, err := columnar.ParseDeclaration(s)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "corrupt column declaration").
					WithDetail("column", field.Name)
			}
			out = append(out, decl)
			continue
		}
		if code, ok := typeCodeOf(field.Type); ok {
			out = append(out, columnar.ScalarColumn(field.Name, code))
		}
	}
	return out, nil
}

// decodeRow copies row i of arr into dst and returns the row's element count.
// Elements beyond dst's capacity are counted but not copied. Null rows and
// null list elements read as zero: a null row zeroes the whole buffer and
// counts no elements.
func decodeRow(dst columnar.Buffer, arr arrow.Array, i int) (int, error) {
	if arr.IsNull(i) {
		for k := range dst.Cap() {
			dst.SetInt64(k, 0)
		}
		return 0, nil
	}
	if list, ok := arr.(*array.List); ok {
		start, end := list.ValueOffsets(i)
		values := list.ListValues()
		n := int(end - start)
		for k := 0; k < n && k < dst.Cap(); k++ {
			if err := setElement(dst, k, values, int(start)+k); err != nil {
				return 0, err
			}
		}
		return n, nil
	}
	if dst.Cap() == 0 {
		return 1, nil
	}
	return 1, setElement(dst, 0, arr, i)
}

func setElement(dst columnar.Buffer, di int, arr arrow.Array, i int) error {
	if arr.IsNull(i) {
		dst.SetInt64(di, 0)
		return nil
	}
	switch a := arr.(type) {
	case *array.Float32:
		dst.SetFloat64(di, float64(a.Value(i)))
	case *array.Float64:
		dst.SetFloat64(di, a.Value(i))
	case *array.Int8:
		dst.SetInt64(di, int64(a.Value(i)))
	case *array.Int16:
		dst.SetInt64(di, int64(a.Value(i)))
	case *array.Int32:
		dst.SetInt64(di, int64(a.Value(i)))
	case *array.Int64:
		dst.SetInt64(di, a.Value(i))
	case *array.Uint8:
		dst.SetInt64(di, int64(a.Value(i)))
	case *array.Uint16:
		dst.SetInt64(di, int64(a.Value(i)))
	case *array.Uint32:
		dst.SetInt64(di, int64(a.Value(i)))
	case *array.Uint64:
		dst.SetInt64(di, int64(a.Value(i)))
	case *array.Boolean:
		if a.Value(i) {
			dst.SetInt64(di, 1)
		} else {
			dst.SetInt64(di, 0)
		}
	default:
		return errors.Newf(errors.ErrorTypeTypeMismatch, "unsupported arrow type %s", arr.DataType())
	}
	return nil
}

// appendElement appends element i of buf to b.
func appendElement(b array.Builder, buf columnar.Buffer, i int) error {
	switch b := b.(type) {
	case *array.Float32Builder:
		b.Append(float32(buf.Float64(i)))
	case *array.Float64Builder:
		b.Append(buf.Float64(i))
	case *array.Int8Builder:
		b.Append(int8(buf.Int64(i)))
	case *array.Int16Builder:
		b.Append(int16(buf.Int64(i)))
	case *array.Int32Builder:
		b.Append(int32(buf.Int64(i)))
	case *array.Int64Builder:
		b.Append(buf.Int64(i))
	case *array.Uint8Builder:
		b.Append(uint8(buf.Int64(i)))
	case *array.Uint16Builder:
		b.Append(uint16(buf.Int64(i)))
	case *array.Uint32Builder:
		b.Append(uint32(buf.Int64(i)))
	case *array.Uint64Builder:
		b.Append(uint64(buf.Int64(i)))
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unsupported builder type %T", b)
	}
	return nil
}
