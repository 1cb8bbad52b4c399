// Package errors provides examples of structured error handling in strata.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeSourceUnavailable, "cannot open dataset file").
		WithDetail("path", "data/run1.parquet").
		WithDetail("dataset", "DecayTree")

	fmt.Println(err.Error())

	// Output:
	// source_unavailable: cannot open dataset file
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read column chunk").
		WithDetail("column", "B_PT")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	fmt.Println(err)

	// Output:
	// This is a file error
	// file: failed to read column chunk: unexpected EOF
}

// ExampleUnknownColumn shows the reader-side lookup failure.
func ExampleUnknownColumn() {
	err := errors.UnknownColumn("K_ETA")

	fmt.Println(err)
	fmt.Println(errors.TypeOf(err) == errors.ErrorTypeUnknownColumn)

	// Output:
	// unknown_column: no column named "K_ETA"
	// true
}

// ExampleIsType demonstrates checking error types.
func ExampleIsType() {
	colErr := errors.UnknownColumn("pi_PT")
	wrapped := errors.Wrap(colErr, errors.ErrorTypeMalformedFormula, "cannot compile \"pi_PT > 3\"")

	fmt.Printf("Is unknown column: %v\n", errors.IsType(colErr, errors.ErrorTypeUnknownColumn))
	fmt.Printf("Wrapped is malformed formula: %v\n", errors.IsType(wrapped, errors.ErrorTypeMalformedFormula))
	fmt.Printf("Wrapped is unknown column: %v\n", errors.IsType(wrapped, errors.ErrorTypeUnknownColumn))

	// Output:
	// Is unknown column: true
	// Wrapped is malformed formula: true
	// Wrapped is unknown column: false
}
