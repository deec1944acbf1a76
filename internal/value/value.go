// Package value implements the semantic container for one named output
// quantity of a component: its shape, periodicity, storage and any external
// forces that have been deposited on it.
//
// Scalars and vectors use dense storage. Matrix values may additionally use
// sparse-by-row storage, in which each row holds only the column indices that
// were actually written together with their values. Row lengths are always
// retrievable in O(1).
package value

import (
	"fmt"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// Value is one named, possibly multi-component output or input quantity.
type Value struct {
	name  string
	shape Shape
	data  []float64

	// Sparse-by-row storage. ncols is the per-row capacity; rowlen[i] holds
	// the number of columns written on row i and colind the written column
	// indices in write order.
	sparse bool
	ncols  int
	rowlen []int
	colind []int

	periodic   bool
	domainMin  float64
	domainMax  float64
	timeSeries bool

	// Weighted accumulation denominator for running averages.
	norm float64

	// Sparsity hint: derivatives vanish wherever the value itself vanishes.
	derivZero bool

	// External forces deposited on this value, addressed by dense flat index.
	forces   []float64
	hasForce bool

	// Set on the first element write. Parallel task merges write disjoint
	// elements of the same value concurrently, so this must be atomic.
	written atomic.Bool
}

// NewScalar creates a scalar value.
func NewScalar(name string) *Value {
	v := &Value{name: name}
	if err := v.SetShape(); err != nil {
		panic(err)
	}
	return v
}

// NewVector creates a dense vector value of length n.
func NewVector(name string, n int) *Value {
	v := &Value{name: name}
	if err := v.SetShape(n); err != nil {
		panic(err)
	}
	return v
}

// NewMatrix creates a dense rows x cols matrix value.
func NewMatrix(name string, rows, cols int) *Value {
	v := &Value{name: name}
	if err := v.SetShape(rows, cols); err != nil {
		panic(err)
	}
	return v
}

// NewSparseMatrix creates a rows x cols matrix value stored sparse by row.
// maxCols is the expected maximum number of nonzero columns per row; rows
// never hold more than maxCols entries.
func NewSparseMatrix(name string, rows, cols, maxCols int) (*Value, error) {
	if maxCols <= 0 || maxCols > cols {
		return nil, fmt.Errorf("value %s: invalid column hint %d for %d columns", name, maxCols, cols)
	}
	v := &Value{name: name, sparse: true, ncols: maxCols}
	v.shape = Shape{rows, cols}
	if err := v.shape.Validate(); err != nil {
		return nil, fmt.Errorf("value %s: %w", name, err)
	}
	v.data = make([]float64, rows*maxCols)
	v.rowlen = make([]int, rows)
	v.colind = make([]int, rows*maxCols)
	v.forces = make([]float64, rows*cols)
	return v, nil
}

// Name returns the label this value is known by.
func (v *Value) Name() string { return v.name }

// Shape returns the value's shape.
func (v *Value) Shape() Shape { return v.shape }

// Rank returns the number of dimensions: 0 for scalars, 1 for vectors,
// 2 for matrices.
func (v *Value) Rank() int { return len(v.shape) }

// Size returns the number of stored elements. For sparse matrices this is
// the storage capacity rows*maxCols, not rows*cols.
func (v *Value) Size() int { return len(v.data) }

// SetShape resizes the dense storage to hold prod(dims) elements.
//
// Once data has been written, only a strict grow of a time-series value is
// allowed (history is preserved); anything else fails with a ShapeError.
func (v *Value) SetShape(dims ...int) error {
	ns := Shape(dims).Clone()
	if err := ns.Validate(); err != nil {
		return fmt.Errorf("value %s: %w", v.name, err)
	}
	if v.sparse {
		return &ShapeError{Name: v.name, Old: v.shape, New: ns}
	}
	n := ns.NumElements()
	if v.written.Load() && n < len(v.data) {
		return &ShapeError{Name: v.name, Old: v.shape, New: ns}
	}
	if v.written.Load() && n != len(v.data) && !v.timeSeries {
		return &ShapeError{Name: v.name, Old: v.shape, New: ns}
	}
	if n > len(v.data) {
		grown := make([]float64, n)
		copy(grown, v.data)
		v.data = grown
		forces := make([]float64, n)
		copy(forces, v.forces)
		v.forces = forces
	}
	v.shape = ns
	return nil
}

// Get returns the element at the given dense flat index.
func (v *Value) Get(i int) float64 {
	if v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error() + ": dense access on sparse storage")
	}
	return v.data[i]
}

// Set stores val at the given dense flat index.
func (v *Value) Set(i int, val float64) {
	if v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error() + ": dense access on sparse storage")
	}
	v.data[i] = val
	v.written.Store(true)
}

// Add accumulates delta at the given dense flat index. Used by weighted
// accumulation components.
func (v *Value) Add(i int, delta float64) {
	if v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error() + ": dense access on sparse storage")
	}
	v.data[i] += delta
	v.written.Store(true)
}

// Data exposes the underlying dense buffer. Sparse matrices expose their
// row-packed element buffer.
func (v *Value) Data() []float64 { return v.data }

// SetPeriodic declares the value periodic on [min, max).
func (v *Value) SetPeriodic(min, max float64) error {
	if max <= min {
		return fmt.Errorf("value %s: invalid periodic domain [%g, %g)", v.name, min, max)
	}
	v.periodic = true
	v.domainMin, v.domainMax = min, max
	return nil
}

// SetNotPeriodic declares the value aperiodic.
func (v *Value) SetNotPeriodic() { v.periodic = false }

// IsPeriodic reports whether the value carries a periodic domain.
func (v *Value) IsPeriodic() bool { return v.periodic }

// Domain returns the periodic domain. It panics if the value is aperiodic.
func (v *Value) Domain() (min, max float64) {
	if !v.periodic {
		panic(fmt.Sprintf("value %s: domain requested on an aperiodic value", v.name))
	}
	return v.domainMin, v.domainMax
}

// MakeTimeSeries switches the value from overwrite-each-step to
// append-each-step semantics.
func (v *Value) MakeTimeSeries() { v.timeSeries = true }

// IsTimeSeries reports whether the value accumulates history.
func (v *Value) IsTimeSeries() bool { return v.timeSeries }

// SetDerivativeIsZeroWhenValueIsZero records the sparsity hint that the
// derivative vanishes wherever the value vanishes.
func (v *Value) SetDerivativeIsZeroWhenValueIsZero() { v.derivZero = true }

// DerivativeIsZeroWhenValueIsZero reports the sparsity hint.
func (v *Value) DerivativeIsZeroWhenValueIsZero() bool { return v.derivZero }

// AccumulateNorm adds w to the running normalization denominator.
func (v *Value) AccumulateNorm(w float64) { v.norm += w }

// Norm returns the running normalization denominator.
func (v *Value) Norm() float64 { return v.norm }

// Clear zeroes the stored values and row lengths. When resetNorm is true the
// normalization denominator is reset too (block averaging boundary); a
// running average keeps it.
func (v *Value) Clear(resetNorm bool) {
	for i := range v.data {
		v.data[i] = 0
	}
	for i := range v.rowlen {
		v.rowlen[i] = 0
	}
	if resetNorm {
		v.norm = 0
	}
	v.written.Store(false)
}

// IsSparse reports whether the value uses sparse-by-row storage.
func (v *Value) IsSparse() bool { return v.sparse }

// NumberOfColumns returns the per-row column capacity of a sparse matrix.
func (v *Value) NumberOfColumns() int {
	if !v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error())
	}
	return v.ncols
}

// RowLength returns the number of columns written on the given row.
func (v *Value) RowLength(row int) int {
	if !v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error())
	}
	return v.rowlen[row]
}

// RowIndex returns the column index of the k-th written element of the row.
func (v *Value) RowIndex(row, k int) int {
	if !v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error())
	}
	if k >= v.rowlen[row] {
		panic(fmt.Sprintf("value %s: row %d element %d beyond row length %d", v.name, row, k, v.rowlen[row]))
	}
	return v.colind[row*v.ncols+k]
}

// RowValue returns the value of the k-th written element of the row.
func (v *Value) RowValue(row, k int) float64 {
	if !v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error())
	}
	if k >= v.rowlen[row] {
		panic(fmt.Sprintf("value %s: row %d element %d beyond row length %d", v.name, row, k, v.rowlen[row]))
	}
	return v.data[row*v.ncols+k]
}

// SetRowElement records the k-th written element of a sparse row.
func (v *Value) SetRowElement(row, k, col int, val float64) {
	if !v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error())
	}
	if k >= v.ncols {
		panic(fmt.Sprintf("value %s: row %d overflows column capacity %d", v.name, row, v.ncols))
	}
	v.colind[row*v.ncols+k] = col
	v.data[row*v.ncols+k] = val
	v.written.Store(true)
}

// SetRowLength records how many elements were written on a sparse row.
func (v *Value) SetRowLength(row, n int) {
	if !v.sparse {
		panic((&NotAMatrixError{Name: v.name}).Error())
	}
	if n > v.ncols {
		panic(fmt.Sprintf("value %s: row length %d exceeds column capacity %d", v.name, n, v.ncols))
	}
	v.rowlen[row] = n
}

// Element returns the (row, col) element of a rank-2 value regardless of the
// storage mode. Missing sparse elements are zero.
func (v *Value) Element(row, col int) float64 {
	if v.Rank() != 2 {
		panic(fmt.Sprintf("value %s: Element on rank-%d value", v.name, v.Rank()))
	}
	if !v.sparse {
		return v.data[row*v.shape[1]+col]
	}
	for k := 0; k < v.rowlen[row]; k++ {
		if v.colind[row*v.ncols+k] == col {
			return v.data[row*v.ncols+k]
		}
	}
	return 0
}

// Dense materializes a rank-2 value as a gonum dense matrix.
func (v *Value) Dense() *mat.Dense {
	if v.Rank() != 2 {
		panic(fmt.Sprintf("value %s: Dense on rank-%d value", v.name, v.Rank()))
	}
	rows, cols := v.shape[0], v.shape[1]
	d := mat.NewDense(rows, cols, nil)
	if !v.sparse {
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				d.Set(i, j, v.data[i*cols+j])
			}
		}
		return d
	}
	for i := 0; i < rows; i++ {
		for k := 0; k < v.rowlen[i]; k++ {
			d.Set(i, v.colind[i*v.ncols+k], v.data[i*v.ncols+k])
		}
	}
	return d
}

// AddForce deposits an external force on one element of the value, addressed
// by dense flat index. This is the trigger consumed by force application.
func (v *Value) AddForce(i int, f float64) {
	if i < 0 || i >= len(v.forces) {
		panic(fmt.Sprintf("value %s: force index %d out of range %d", v.name, i, len(v.forces)))
	}
	v.forces[i] += f
	v.hasForce = true
}

// Force returns the external force deposited on the given dense flat index.
func (v *Value) Force(i int) float64 {
	if len(v.forces) == 0 {
		return 0
	}
	return v.forces[i]
}

// HasForce reports whether any external force has been deposited since the
// last ClearForces.
func (v *Value) HasForce() bool { return v.hasForce }

// ClearForces zeroes the deposited forces.
func (v *Value) ClearForces() {
	for i := range v.forces {
		v.forces[i] = 0
	}
	v.hasForce = false
}

func (v *Value) String() string {
	mode := "dense"
	if v.sparse {
		mode = "sparse"
	}
	return fmt.Sprintf("Value(%s)%v %s", v.name, v.shape, mode)
}
