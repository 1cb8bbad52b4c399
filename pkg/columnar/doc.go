// Package columnar holds the vocabulary shared by every layer that touches
// column data.
//
// # Type codes
//
// Each column carries a single-letter element tag:
//
//	F float32   D float64   I int32   i uint32   L int64   l uint64
//	S int16     s uint16    B int8    b uint8    O bool
//
// # Declarations
//
// A Declaration renders to and parses from the string a backing store records
// for the column:
//
//	pt/F        scalar float32
//	hits[4]/I   fixed four-element int32 array
//	y[n]/D      float64 array whose element count is the current value of n
//
// # Buffers and values
//
// A Buffer is a typed, fixed-capacity array owned by whoever allocated it.
// Readers hand out Values, which alias a buffer for the duration of a single
// row and must not be retained once the row cursor moves.
package columnar
