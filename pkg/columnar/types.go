// Package columnar provides the element types, declaration strings and typed
// buffers shared by the dataset reader, the row writer and the backing stores.
package columnar

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// TypeCode is the single-letter element tag used by the backing store.
type TypeCode byte

const (
	Float32 TypeCode = 'F'
	Float64 TypeCode = 'D'
	Int32   TypeCode = 'I'
	Uint32  TypeCode = 'i'
	Int64   TypeCode = 'L'
	Uint64  TypeCode = 'l'
	Int16   TypeCode = 'S'
	Uint16  TypeCode = 's'
	Int8    TypeCode = 'B'
	Uint8   TypeCode = 'b'
	// Bool is stored as a uint8 holding 0 or 1.
	Bool TypeCode = 'O'
)

var typeNames = map[TypeCode]string{
	Float32: "float32",
	Float64: "float64",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Int16:   "int16",
	Uint16:  "uint16",
	Int8:    "int8",
	Uint8:   "uint8",
	Bool:    "bool",
}

// Valid reports whether c is one of the known type codes.
func (c TypeCode) Valid() bool {
	_, ok := typeNames[c]
	return ok
}

// String returns the single-letter code.
func (c TypeCode) String() string {
	return string(rune(c))
}

// Name returns the Go-style element type name, e.g. "float32".
func (c TypeCode) Name() string {
	if name, ok := typeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%q)", rune(c))
}

// IsFloat reports whether the element type is floating point.
func (c TypeCode) IsFloat() bool {
	return c == Float32 || c == Float64
}

// IsUnsigned reports whether the element type is an unsigned integer.
func (c TypeCode) IsUnsigned() bool {
	switch c {
	case Uint8, Uint16, Uint32, Uint64, Bool:
		return true
	}
	return false
}

// Size returns the element width in bytes.
func (c TypeCode) Size() int {
	switch c {
	case Float64, Int64, Uint64:
		return 8
	case Float32, Int32, Uint32:
		return 4
	case Int16, Uint16:
		return 2
	default:
		return 1
	}
}

// ParseTypeCode accepts either a single-letter code ("F") or a type name
// ("float32", "double", "int", "bool").
func ParseTypeCode(s string) (TypeCode, error) {
	if len(s) == 1 {
		c := TypeCode(s[0])
		if c.Valid() {
			return c, nil
		}
	}

	switch strings.ToLower(s) {
	case "float32", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "int32", "int":
		return Int32, nil
	case "uint32", "uint":
		return Uint32, nil
	case "int64", "long":
		return Int64, nil
	case "uint64":
		return Uint64, nil
	case "int16", "short":
		return Int16, nil
	case "uint16":
		return Uint16, nil
	case "int8", "char":
		return Int8, nil
	case "uint8", "byte":
		return Uint8, nil
	case "bool", "boolean":
		return Bool, nil
	}

	return 0, errors.Newf(errors.ErrorTypeTypeMismatch, "unknown element type %q", s)
}
