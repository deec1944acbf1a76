package matrix

import (
	"math"

	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/task"
	"github.com/colvar-go/colvar/internal/value"
)

// RowOps is what a concrete matrix component supplies to the shared row
// loop. SetupForTask fills the split index list with the row anchor and the
// candidate columns. PerformElement computes one element into the
// component's stream slot; the controller label tells adjacency components
// whether they own the loop. RunEndOfRowJobs closes out the row by
// registering the row-level derivative indices that every element of the
// row shares.
type RowOps interface {
	Label() string
	SetupForTask(row int, ctx *task.Context)
	PerformElement(controller string, row, col int, ctx *task.Context)
	RunEndOfRowJobs(row int, ctx *task.Context)
	IsAdjacencyMatrix() bool
}

// Engine runs the row-at-a-time state machine shared by every matrix
// component: set up the candidate columns for the row, loop over them
// computing one element at a time, stash the nonzero elements and their
// derivative records, then close out the row. Components chained onto the
// engine compute their elements inside the same loop, one stream slot each,
// so the controller's candidate columns are derived once per row.
type Engine struct {
	*engine.Base

	ops  RowOps
	out  *value.Value
	st   *Store
	next []*Engine // chained followers, in stream order

	head        *Engine // nil unless this engine is chained onto another
	stream      int     // value slot in the shared task context
	chainOffset int     // where this engine's own derivative space starts
	maxCols     int
}

// NewEngine wires the shared machinery under a concrete matrix component.
// The component's sparse output and its derivative store are created here;
// maxCols bounds how many elements one row can hold.
func NewEngine(b *engine.Base, ops RowOps, rows, cols, maxCols int) (*Engine, error) {
	out, err := value.NewSparseMatrix(b.Label(), rows, cols, maxCols)
	if err != nil {
		return nil, err
	}
	out.SetNotPeriodic()
	e := &Engine{Base: b, ops: ops, out: out, st: NewStore(rows), maxCols: maxCols}
	b.AddOutput(out)
	return e, nil
}

// Matrix returns the sparse output value.
func (e *Engine) Matrix() *value.Value { return e.out }

// DerivativeStore returns the per-element derivative records.
func (e *Engine) DerivativeStore() *Store { return e.st }

// Stream returns the engine's value slot in the shared task context.
func (e *Engine) Stream() int { return e.stream }

// ChainOffset returns where the engine's own derivative indices start in
// the shared stream derivative space. Zero unless chained.
func (e *Engine) ChainOffset() int { return e.chainOffset }

// Chained reports whether this engine runs inside another engine's loop.
func (e *Engine) Chained() bool { return e.head != nil }

// AddChainMember appends a follower to the row loop. The follower's own
// derivative space is stacked after every space already in the stream, and
// its Calculate becomes a no-op: its elements are produced here.
func (e *Engine) AddChainMember(f *Engine) error {
	if e.head != nil {
		return &ShapeMismatchError{Label: e.Label(), Reason: "cannot chain onto a chained component"}
	}
	if f.out.Shape()[0] != e.out.Shape()[0] {
		return &ShapeMismatchError{Label: f.Label(), Reason: "chained matrices must share the task list"}
	}
	off := e.NumberOfDerivatives()
	for _, m := range e.next {
		off += m.NumberOfDerivatives()
	}
	f.head = e
	f.stream = 1 + len(e.next)
	f.chainOffset = off
	e.next = append(e.next, f)
	return nil
}

// streamDerivatives is the size of the concatenated derivative space.
func (e *Engine) streamDerivatives() int {
	n := e.NumberOfDerivatives()
	for _, m := range e.next {
		n += m.NumberOfDerivatives()
	}
	return n
}

// Run drives the scheduler over the active rows. Callers set whatever
// per-step state their PerformElement needs before calling.
func (e *Engine) Run() {
	e.out.Clear(true)
	for _, m := range e.next {
		m.out.Clear(true)
	}
	e.Scheduler().RunAllTasks(e, task.Dimensions{
		Values:      1 + len(e.next),
		Derivatives: e.streamDerivatives(),
		Matrices:    1 + len(e.next),
		Columns:     e.maxCols,
	})
}

// PerformTask runs the element loop for one row.
func (e *Engine) PerformTask(t int, ctx *task.Context) {
	e.st.BeginRow(t)
	for _, m := range e.next {
		m.st.BeginRow(t)
	}
	e.ops.SetupForTask(t, ctx)
	ind := ctx.Indices(ctx.NumberOfIndices())
	for i := ctx.SplitIndex(); i < ctx.NumberOfIndices(); i++ {
		col := ind[i]
		ctx.SetSecondTaskIndex(col)
		e.ops.PerformElement(e.Label(), t, col, ctx)
		e.stashElement(t, col, ctx)
		for _, m := range e.next {
			m.ops.PerformElement(e.Label(), t, col, ctx)
			m.stashElement(t, col, ctx)
		}
		ctx.Clear(e.stream)
		for _, m := range e.next {
			ctx.Clear(m.stream)
		}
	}
	e.ops.RunEndOfRowJobs(t, ctx)
	for _, m := range e.next {
		m.ops.RunEndOfRowJobs(t, ctx)
	}
}

// stashElement moves the element just computed from the task context into
// the sparse row storage. The row-index stash is always brought up to date
// with whatever derivative indices the element touched; the value and its
// derivative record are kept only when the element is distinguishable from
// zero, so a skipped element leaves the bookkeeping consistent but costs no
// storage.
func (e *Engine) stashElement(t, col int, ctx *task.Context) {
	if !e.DoNotCalculateDerivatives() {
		n := ctx.NumberActive(e.stream)
		for k := 0; k < n; k++ {
			e.stashRowIndex(ctx, ctx.ActiveIndex(e.stream, k))
		}
	}
	val := ctx.Get(e.stream)
	if math.Abs(val) < engine.Epsilon {
		return
	}
	slot := e.out.RowLength(t)
	e.out.SetRowElement(t, slot, col, val)
	e.out.SetRowLength(t, slot+1)
	if e.DoNotCalculateDerivatives() {
		return
	}
	n := ctx.NumberActive(e.stream)
	idx := make([]int, n)
	der := make([]float64, n)
	for k := 0; k < n; k++ {
		j := ctx.ActiveIndex(e.stream, k)
		idx[k] = j
		der[k] = ctx.Derivative(e.stream, j)
	}
	e.st.elemIdx[t] = append(e.st.elemIdx[t], idx)
	e.st.elemDer[t] = append(e.st.elemDer[t], der)
}

// stashRowIndex registers j in the row's write-order index stash, once.
func (e *Engine) stashRowIndex(ctx *task.Context, j int) {
	n := ctx.NumberOfMatrixIndices(e.stream)
	stash := ctx.MatrixIndices(e.stream)
	for k := 0; k < n; k++ {
		if stash[k] == j {
			return
		}
	}
	stash[n] = j
	ctx.SetNumberOfMatrixIndices(e.stream, n+1)
}

// StashRowIndices registers a contiguous range of derivative indices for
// the row. Concrete components call this from RunEndOfRowJobs with the
// row-level slots every element of the row depends on.
func (e *Engine) StashRowIndices(ctx *task.Context, start, n int) {
	if e.DoNotCalculateDerivatives() {
		return
	}
	for j := start; j < start+n; j++ {
		e.stashRowIndex(ctx, j)
	}
}

// StoreResults persists the closed-out row index stash. Element values and
// derivative records were already written by the loop; rows are disjoint
// across tasks so no locking is needed.
func (e *Engine) StoreResults(t int, ctx *task.Context) {
	e.storeRow(t, ctx)
	for _, m := range e.next {
		m.storeRow(t, ctx)
	}
}

func (e *Engine) storeRow(t int, ctx *task.Context) {
	if e.DoNotCalculateDerivatives() {
		return
	}
	n := ctx.NumberOfMatrixIndices(e.stream)
	e.st.SetRowIndices(t, ctx.MatrixIndices(e.stream)[:n])
}

// ApplyMatrixForces scatters the forces deposited on the sparse output back
// onto the leaf degrees of freedom. Per row, the forces on the stashed
// columns are collected first, then each element's derivative record routes
// its share; entries below a chained engine's offset belong to the stream
// head and are routed through it.
func (e *Engine) ApplyMatrixForces(sys *engine.System) {
	if e.DoNotCalculateDerivatives() || !e.out.HasForce() {
		return
	}
	rows := e.out.Shape()[0]
	cols := e.out.Shape()[1]
	var colf []float64
	for t := 0; t < rows; t++ {
		n := e.out.RowLength(t)
		if n > len(colf) {
			colf = make([]float64, n)
		}
		any := false
		for k := 0; k < n; k++ {
			colf[k] = e.out.Force(t*cols + e.out.RowIndex(t, k))
			if colf[k] != 0 {
				any = true
			}
		}
		if !any {
			continue
		}
		for k := 0; k < n; k++ {
			if colf[k] == 0 {
				continue
			}
			idx, der := e.st.Element(t, k)
			for m := range idx {
				e.routeStreamForce(sys, idx[m], colf[k]*der[m])
			}
		}
	}
}

// routeStreamForce resolves a stream derivative index against the chain
// layout: indices at or past the engine's own offset are its own, anything
// below belongs to the loop head.
func (e *Engine) routeStreamForce(sys *engine.System, j int, f float64) {
	if e.head == nil {
		e.RouteForce(sys, j, f)
		return
	}
	if j >= e.chainOffset {
		e.RouteForce(sys, j-e.chainOffset, f)
		return
	}
	e.head.RouteForce(sys, j, f)
}
