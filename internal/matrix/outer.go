package matrix

import (
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/task"
	"github.com/colvar-go/colvar/internal/value"
)

// OuterFunc combines one element of each input vector into a matrix
// element, returning the value and its two partial derivatives.
type OuterFunc func(x, y float64) (val, dx, dy float64)

// Built-in combination rules.
var (
	FuncProduct OuterFunc = func(x, y float64) (float64, float64, float64) {
		return x * y, y, x
	}
	FuncMin OuterFunc = func(x, y float64) (float64, float64, float64) {
		if x < y {
			return x, 1, 0
		}
		return y, 0, 1
	}
	FuncMax OuterFunc = func(x, y float64) (float64, float64, float64) {
		if x > y {
			return x, 1, 0
		}
		return y, 0, 1
	}
)

// OuterProduct builds the matrix f(u[i], v[j]) from two vectors. A mask
// matrix restricts which elements are evaluated: each row's candidate
// columns are read straight from the mask's sparse row stash instead of
// being enumerated, so a masked outer product inherits the sparsity pattern
// of whatever produced the mask.
type OuterProduct struct {
	*Engine

	u, v *value.Value
	fn   OuterFunc
	mask *value.Value

	// diagzero forces element (i,i) to zero without evaluating it.
	diagzero bool

	// weighted multiplies each element by the element the loop controller
	// just computed. Only meaningful when chained onto another matrix.
	weighted bool
}

// OuterOption adjusts an OuterProduct at construction.
type OuterOption func(*OuterProduct)

// WithFunction replaces the elementwise product with another combination
// rule.
func WithFunction(fn OuterFunc) OuterOption {
	return func(o *OuterProduct) { o.fn = fn }
}

// WithDiagonalZero skips the diagonal elements.
func WithDiagonalZero() OuterOption {
	return func(o *OuterProduct) { o.diagzero = true }
}

// WithMask restricts evaluation to the elements present in the given sparse
// matrix.
func WithMask(mask *value.Value) OuterOption {
	return func(o *OuterProduct) { o.mask = mask }
}

// WithElementWeight multiplies each element by the element the controlling
// matrix of the chain just computed, carrying that element's derivatives
// through the product rule.
func WithElementWeight() OuterOption {
	return func(o *OuterProduct) { o.weighted = true }
}

// NewOuterProduct builds the component from two vector arguments.
func NewOuterProduct(label string, u, v *value.Value, cfg parallel.Config, opts ...OuterOption) (*OuterProduct, error) {
	if u.Rank() != 1 || v.Rank() != 1 {
		return nil, &ShapeMismatchError{Label: label, Reason: "arguments must both be vectors"}
	}
	o := &OuterProduct{u: u, v: v, fn: FuncProduct}
	for _, opt := range opts {
		opt(o)
	}
	rows, cols := u.Size(), v.Size()
	maxCols := cols
	if o.mask != nil {
		if !o.mask.IsSparse() || o.mask.Shape()[0] != rows || o.mask.Shape()[1] != cols {
			return nil, &ShapeMismatchError{Label: label, Reason: "mask must be a sparse matrix over the same index sets"}
		}
		maxCols = o.mask.NumberOfColumns()
	}
	base := engine.NewBase(label)
	base.SetArguments(u, v)
	eng, err := NewEngine(base, o, rows, cols, maxCols)
	if err != nil {
		return nil, err
	}
	o.Engine = eng
	o.SetupTasks(rows, task.NewScheduler(rows, cfg))
	return o, nil
}

func (o *OuterProduct) IsAdjacencyMatrix() bool { return false }

func (o *OuterProduct) SetupForTask(row int, ctx *task.Context) {
	if o.mask != nil {
		n := o.mask.RowLength(row)
		ind := ctx.Indices(1 + n)
		ind[0] = row
		for k := 0; k < n; k++ {
			ind[1+k] = o.mask.RowIndex(row, k)
		}
		ctx.SetSplitIndex(1)
		ctx.SetNumberOfIndices(1 + n)
		return
	}
	cols := o.v.Size()
	ind := ctx.Indices(1 + cols)
	ind[0] = row
	for j := 0; j < cols; j++ {
		ind[1+j] = j
	}
	ctx.SetSplitIndex(1)
	ctx.SetNumberOfIndices(1 + cols)
}

func (o *OuterProduct) PerformElement(controller string, row, col int, ctx *task.Context) {
	if o.diagzero && row == col {
		return
	}
	val, dx, dy := o.fn(o.u.Get(row), o.v.Get(col))
	w := 1.0
	if o.weighted && o.Chained() {
		// The controller owns stream slot zero.
		w = ctx.Get(0)
	}
	s := o.Stream()
	ctx.SetValue(s, w*val)
	if o.DoNotCalculateDerivatives() {
		return
	}
	off := o.ChainOffset()
	ju := off + o.ArgumentDerivStart(0) + row
	jv := off + o.ArgumentDerivStart(1) + col
	ctx.AddDerivative(s, ju, w*dx)
	ctx.UpdateIndex(s, ju)
	ctx.AddDerivative(s, jv, w*dy)
	ctx.UpdateIndex(s, jv)
	if o.weighted && o.Chained() {
		// Product rule through the controller's element.
		n := ctx.NumberActive(0)
		for k := 0; k < n; k++ {
			j := ctx.ActiveIndex(0, k)
			ctx.AddDerivative(s, j, val*ctx.Derivative(0, j))
			ctx.UpdateIndex(s, j)
		}
	}
}

func (o *OuterProduct) RunEndOfRowJobs(row int, ctx *task.Context) {
	o.StashRowIndices(ctx, o.ChainOffset()+o.ArgumentDerivStart(0)+row, 1)
}

func (o *OuterProduct) Prepare(sys *engine.System) error { return nil }

func (o *OuterProduct) Calculate(sys *engine.System) error {
	if o.Chained() {
		return nil
	}
	o.Run()
	return nil
}

func (o *OuterProduct) Apply(sys *engine.System) {
	o.ApplyMatrixForces(sys)
}
