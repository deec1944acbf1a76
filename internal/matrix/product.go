package matrix

import (
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/task"
	"github.com/colvar-go/colvar/internal/value"
)

// Product multiplies its two arguments element-task by element-task. Two
// vectors u and v give the rank-one matrix u[i]*v[j]; two matrices A and B
// give the usual A.B with element (i,j) a dot product over the inner
// dimension. Mixing a matrix with a vector is rejected at construction.
type Product struct {
	*Engine

	a, b *value.Value

	// When the product is a matrix times its own transpose the diagonal
	// carries no information, so it can be skipped.
	skipSelf bool
}

// ProductOption adjusts a Product at construction.
type ProductOption func(*Product)

// SkipSelfPairs drops the diagonal elements from the computation. Meant for
// products of a matrix with its own transpose, where row i against column i
// pairs an entity with itself.
func SkipSelfPairs() ProductOption {
	return func(p *Product) { p.skipSelf = true }
}

// NewProduct builds a matrix product of a and b.
func NewProduct(label string, a, b *value.Value, cfg parallel.Config, opts ...ProductOption) (*Product, error) {
	if a.Rank() == 0 || b.Rank() == 0 {
		return nil, &ShapeMismatchError{Label: label, Reason: "arguments must be vectors or matrices"}
	}
	if a.Rank() != b.Rank() {
		return nil, &ShapeMismatchError{Label: label, Reason: "cannot multiply a matrix by a vector"}
	}
	rows, cols := a.Shape()[0], b.Shape()[0]
	if a.Rank() == 2 {
		cols = b.Shape()[1]
		if a.Shape()[1] != b.Shape()[0] {
			return nil, &ShapeMismatchError{Label: label, Reason: "inner dimensions do not match"}
		}
	}
	p := &Product{a: a, b: b}
	base := engine.NewBase(label)
	base.SetArguments(a, b)
	eng, err := NewEngine(base, p, rows, cols, cols)
	if err != nil {
		return nil, err
	}
	p.Engine = eng
	for _, opt := range opts {
		opt(p)
	}
	p.SetupTasks(rows, task.NewScheduler(rows, cfg))
	return p, nil
}

func (p *Product) IsAdjacencyMatrix() bool { return false }

// SetupForTask puts the row index in the anchor slot and every column in
// the candidate list. The product is dense in the columns; sparsity comes
// only from elements that evaluate to zero.
func (p *Product) SetupForTask(row int, ctx *task.Context) {
	cols := p.Matrix().Shape()[1]
	ind := ctx.Indices(1 + cols)
	ind[0] = row
	for j := 0; j < cols; j++ {
		ind[1+j] = j
	}
	ctx.SetSplitIndex(1)
	ctx.SetNumberOfIndices(1 + cols)
}

func (p *Product) PerformElement(controller string, row, col int, ctx *task.Context) {
	if p.skipSelf && row == col {
		return
	}
	s := p.Stream()
	off := p.ChainOffset()
	if p.a.Rank() == 1 {
		ctx.SetValue(s, p.a.Get(row)*p.b.Get(col))
		if p.DoNotCalculateDerivatives() {
			return
		}
		ja := off + p.ArgumentDerivStart(0) + row
		jb := off + p.ArgumentDerivStart(1) + col
		ctx.AddDerivative(s, ja, p.b.Get(col))
		ctx.UpdateIndex(s, ja)
		ctx.AddDerivative(s, jb, p.a.Get(row))
		ctx.UpdateIndex(s, jb)
		return
	}
	inner := p.a.Shape()[1]
	bcols := p.b.Shape()[1]
	val := 0.0
	for q := 0; q < inner; q++ {
		val += p.a.Element(row, q) * p.b.Element(q, col)
	}
	ctx.SetValue(s, val)
	if p.DoNotCalculateDerivatives() {
		return
	}
	for q := 0; q < inner; q++ {
		ja := off + p.ArgumentDerivStart(0) + row*inner + q
		jb := off + p.ArgumentDerivStart(1) + q*bcols + col
		ctx.AddDerivative(s, ja, p.b.Element(q, col))
		ctx.UpdateIndex(s, ja)
		ctx.AddDerivative(s, jb, p.a.Element(row, q))
		ctx.UpdateIndex(s, jb)
	}
}

// RunEndOfRowJobs registers the row-level derivative indices: every element
// of row i depends on the same slice of the first argument.
func (p *Product) RunEndOfRowJobs(row int, ctx *task.Context) {
	off := p.ChainOffset()
	if p.a.Rank() == 1 {
		p.StashRowIndices(ctx, off+p.ArgumentDerivStart(0)+row, 1)
		return
	}
	inner := p.a.Shape()[1]
	p.StashRowIndices(ctx, off+p.ArgumentDerivStart(0)+row*inner, inner)
}

func (p *Product) Prepare(sys *engine.System) error { return nil }

func (p *Product) Calculate(sys *engine.System) error {
	if p.Chained() {
		return nil
	}
	p.Run()
	return nil
}

func (p *Product) Apply(sys *engine.System) {
	p.ApplyMatrixForces(sys)
}
