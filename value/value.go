// Package value provides the public API for the quantities components
// exchange: scalars, vectors and matrices together with their periodicity,
// sparsity and deposited forces.
//
// Example:
//
//	v := value.NewVector("d1", 10)
//	v.Set(3, 1.25)
//	v.AddForce(3, -2.0)
package value

import (
	"github.com/colvar-go/colvar/internal/value"
)

// Type aliases for public API

// Value is one named output quantity of a component.
type Value = value.Value

// Shape describes the dimensions of a value.
type Shape = value.Shape

// ShapeError reports an illegal reshape.
type ShapeError = value.ShapeError

// NotAMatrixError reports a sparse-row operation on a non-matrix value.
type NotAMatrixError = value.NotAMatrixError

// Constructors

// NewScalar creates a scalar value.
func NewScalar(name string) *Value { return value.NewScalar(name) }

// NewVector creates a dense vector value of length n.
func NewVector(name string, n int) *Value { return value.NewVector(name, n) }

// NewMatrix creates a dense rows x cols matrix value.
func NewMatrix(name string, rows, cols int) *Value { return value.NewMatrix(name, rows, cols) }

// NewSparseMatrix creates a rows x cols matrix stored sparse by row, with
// at most maxCols entries per row.
func NewSparseMatrix(name string, rows, cols, maxCols int) (*Value, error) {
	return value.NewSparseMatrix(name, rows, cols, maxCols)
}
