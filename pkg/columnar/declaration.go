package columnar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// Declaration describes one column as the backing store records it:
// "name/T" for scalars, "name[N]/T" for fixed-arity arrays and
// "name[lenCol]/T" for arrays whose element count is held by another column.
type Declaration struct {
	Name string
	Type TypeCode
	// Arity is the declared maximum element count. It is 1 for scalars and
	// 0 for arrays read back from a "name[lenCol]/T" string.
	Arity int
	// LengthColumn names the column whose current value is this column's
	// element count. Empty for scalars and fixed-arity arrays.
	LengthColumn string
}

// ScalarColumn returns the declaration of a scalar column.
func ScalarColumn(name string, code TypeCode) Declaration {
	return Declaration{Name: name, Type: code, Arity: 1}
}

// IsArray reports whether the column holds more than one element per row.
func (d Declaration) IsArray() bool {
	return d.LengthColumn != "" || d.Arity > 1
}

// String renders the declaration string. When both a length column and an
// arity are set the length column wins, since it is what readers need.
func (d Declaration) String() string {
	switch {
	case d.LengthColumn != "":
		return fmt.Sprintf("%s[%s]/%s", d.Name, d.LengthColumn, d.Type)
	case d.Arity > 1:
		return fmt.Sprintf("%s[%d]/%s", d.Name, d.Arity, d.Type)
	default:
		return fmt.Sprintf("%s/%s", d.Name, d.Type)
	}
}

// Validate checks the name and type code. An invalid type code is a
// type_mismatch error, anything else a config error.
func (d Declaration) Validate() error {
	switch {
	case d.Name == "":
		return errors.New(errors.ErrorTypeConfig, "column name is required")
	case strings.ContainsAny(d.Name, "[]/"):
		return errors.Newf(errors.ErrorTypeConfig, "column name %q contains a reserved character", d.Name)
	case !d.Type.Valid():
		return errors.Newf(errors.ErrorTypeTypeMismatch, "column %q: invalid type code %q", d.Name, rune(d.Type))
	case d.Arity < 0:
		return errors.Newf(errors.ErrorTypeConfig, "column %q: negative arity %d", d.Name, d.Arity)
	case d.LengthColumn == d.Name:
		return errors.Newf(errors.ErrorTypeConfig, "column %q cannot be its own length column", d.Name)
	}
	return nil
}

// ParseDeclaration parses a declaration string. A missing "/T" suffix means
// float64.
func ParseDeclaration(s string) (Declaration, error) {
	body, code := s, "D"
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		body, code = s[:idx], s[idx+1:]
	}

	tc, err := ParseTypeCode(code)
	if err != nil {
		return Declaration{}, errors.Wrap(err, errors.ErrorTypeTypeMismatch, "invalid declaration").
			WithDetail("declaration", s)
	}

	d := Declaration{Name: body, Type: tc, Arity: 1}
	if open := strings.IndexByte(body, '['); open >= 0 {
		if !strings.HasSuffix(body, "]") || open == 0 {
			return Declaration{}, errors.Newf(errors.ErrorTypeConfig, "declaration %q: malformed dimension", s)
		}
		d.Name = body[:open]
		dim := body[open+1 : len(body)-1]
		if dim == "" {
			return Declaration{}, errors.Newf(errors.ErrorTypeConfig, "declaration %q: empty dimension", s)
		}
		if n, err := strconv.Atoi(dim); err == nil {
			d.Arity = n
		} else {
			d.Arity = 0
			d.LengthColumn = dim
		}
	}

	if err := d.Validate(); err != nil {
		return Declaration{}, err
	}
	return d, nil
}
