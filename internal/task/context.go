// Package task implements the per-task scratch state and the batch scheduler
// that drives component evaluation.
//
// A Context is owned exclusively by the goroutine executing one task at a
// time. It holds the task's computed values, a dense derivative buffer, and
// per-value lists of the derivative indices that were actually touched, so
// that downstream chain-rule and force-scatter work is proportional to the
// sparse derivative count rather than the dense values x derivatives product.
package task

import (
	"fmt"

	"github.com/colvar-go/colvar/internal/geom"
)

// Context is the transient scratch record for one task (one matrix row, for
// matrix components). It is resized once per owning component and reused for
// every task; logical content is cleared between tasks while capacity
// persists to avoid reallocation.
type Context struct {
	taskIndex  int
	task2Index int

	nvalues int
	nder    int

	values      []float64
	derivatives []float64 // nvalues x nder, row major
	hasDeriv    []bool    // parallel to derivatives
	nactive     []int     // per value: number of active derivative indices
	activeList  []int     // nvalues x nder: active indices, in registration order

	atLeastOneSet bool

	// Row bookkeeping for matrix tasks: indices[0:nsplit) hold the row's own
	// anchor entries, indices[nsplit:nindices) the neighbor/candidate columns.
	nindices int
	nsplit   int
	indices  []int

	// Matrix-row derivative-index stash: an independent bookkeeping channel,
	// one per matrix output, recording in write order which derivative
	// positions the row's elements touched. Kept separate from the active
	// list because force scatter needs write order, not chain-rule order.
	matNDeriv  []int
	matIndices [][]int

	// Stash for per-column forces while a matrix row is being scattered.
	matForceStash []float64

	// Reusable scratch, capacity-only growth.
	tmpAtoms      []geom.Vec3
	tmpAtomDeriv  [][]geom.Vec3
	tmpAtomVirial []geom.Tensor3
	tmpVectors    [][]float64
}

// NewContext returns an empty context. Resize must be called before use.
func NewContext() *Context { return &Context{} }

// Resize allocates the value buffer, the dense derivative buffer and the
// active-index lists for nvalues output components with nder derivatives
// each. It is called once per owning component, not per task.
func (c *Context) Resize(nvalues, nder int) {
	c.nvalues, c.nder = nvalues, nder
	c.values = make([]float64, nvalues)
	c.derivatives = make([]float64, nvalues*nder)
	c.hasDeriv = make([]bool, nvalues*nder)
	c.nactive = make([]int, nvalues)
	c.activeList = make([]int, nvalues*nder)
	c.atLeastOneSet = false
}

// ResizeMatrixStash allocates nmat matrix-row index stashes able to hold up
// to nder entries each, and the per-column force stash of length ncols.
func (c *Context) ResizeMatrixStash(nmat, ncols int) {
	c.matNDeriv = make([]int, nmat)
	c.matIndices = make([][]int, nmat)
	for i := range c.matIndices {
		c.matIndices[i] = make([]int, c.nder)
	}
	if len(c.matForceStash) < ncols {
		c.matForceStash = make([]float64, ncols)
	}
}

// NumberOfValues returns the number of output components in the stash.
func (c *Context) NumberOfValues() int { return c.nvalues }

// NumberOfDerivatives returns the derivative-space size per value.
func (c *Context) NumberOfDerivatives() int { return c.nder }

// SetTaskIndex records which task is currently being processed.
func (c *Context) SetTaskIndex(i int) { c.taskIndex = i }

// TaskIndex returns the current task index.
func (c *Context) TaskIndex() int { return c.taskIndex }

// SetSecondTaskIndex records the column entity of a two-index matrix element
// task.
func (c *Context) SetSecondTaskIndex(j int) { c.task2Index = j }

// SecondTaskIndex returns the current column entity index.
func (c *Context) SecondTaskIndex() int { return c.task2Index }

// SetValue stores the scalar result for output component v.
func (c *Context) SetValue(v int, val float64) {
	c.assertValue(v)
	c.values[v] = val
}

// AddValue accumulates into the scalar result for output component v.
func (c *Context) AddValue(v int, delta float64) {
	c.assertValue(v)
	c.values[v] += delta
}

// Get returns the scalar result for output component v.
func (c *Context) Get(v int) float64 {
	c.assertValue(v)
	return c.values[v]
}

// AddDerivative accumulates der into the dense derivative buffer at (v, j)
// and marks the slot as written. It does not register j as active;
// registration is the separate UpdateIndex step, so several small
// contributions to one slot pay the bookkeeping cost once.
func (c *Context) AddDerivative(v, j int, der float64) {
	c.assertDeriv(v, j)
	c.atLeastOneSet = true
	c.hasDeriv[v*c.nder+j] = true
	c.derivatives[v*c.nder+j] += der
}

// SetDerivative overwrites the dense derivative buffer at (v, j).
func (c *Context) SetDerivative(v, j int, der float64) {
	c.assertDeriv(v, j)
	c.atLeastOneSet = true
	c.hasDeriv[v*c.nder+j] = true
	c.derivatives[v*c.nder+j] = der
}

// Derivative returns the accumulated derivative at (v, j).
func (c *Context) Derivative(v, j int) float64 {
	c.assertDeriv(v, j)
	return c.derivatives[v*c.nder+j]
}

// UpdateIndex appends j to value v's active list if a derivative has been
// written at (v, j) and j is not already registered. Calling it for a slot
// with no written derivative is a no-op, so generic chain-rule code can call
// it unconditionally.
func (c *Context) UpdateIndex(v, j int) {
	c.assertDeriv(v, j)
	if !c.hasDeriv[v*c.nder+j] {
		return
	}
	base := v * c.nder
	for k := 0; k < c.nactive[v]; k++ {
		if c.activeList[base+k] == j {
			return
		}
	}
	c.activeList[base+c.nactive[v]] = j
	c.nactive[v]++
}

// NumberActive returns how many derivative indices are active for value v.
func (c *Context) NumberActive(v int) int {
	c.assertValue(v)
	return c.nactive[v]
}

// ActiveIndex returns the k-th active derivative index for value v.
func (c *Context) ActiveIndex(v, k int) int {
	c.assertValue(v)
	if k >= c.nactive[v] {
		panic(fmt.Sprintf("task context: active index %d beyond count %d for value %d", k, c.nactive[v], v))
	}
	return c.activeList[v*c.nder+k]
}

// SetSplitIndex marks where the row's own anchor entries end in the shared
// indices scratch.
func (c *Context) SetSplitIndex(n int) { c.nsplit = n }

// SplitIndex returns the anchor/neighbor boundary.
func (c *Context) SplitIndex() int { return c.nsplit }

// SetNumberOfIndices records how many entries of the shared indices scratch
// are in use for the current row.
func (c *Context) SetNumberOfIndices(n int) { c.nindices = n }

// NumberOfIndices returns the in-use length of the shared indices scratch.
func (c *Context) NumberOfIndices() int { return c.nindices }

// Indices returns the shared indices scratch, growing it to at least n
// entries. Contents beyond NumberOfIndices are stale.
func (c *Context) Indices(n int) []int {
	if len(c.indices) < n {
		c.indices = append(c.indices, make([]int, n-len(c.indices))...)
	}
	return c.indices
}

// NumberOfMatrixIndices returns the write-order stash length for matrix mat.
func (c *Context) NumberOfMatrixIndices(mat int) int {
	c.assertMatrix(mat)
	return c.matNDeriv[mat]
}

// SetNumberOfMatrixIndices records the write-order stash length for matrix
// mat.
func (c *Context) SetNumberOfMatrixIndices(mat, n int) {
	c.assertMatrix(mat)
	if n > len(c.matIndices[mat]) {
		panic(fmt.Sprintf("task context: matrix %d stash overflow: %d > %d", mat, n, len(c.matIndices[mat])))
	}
	c.matNDeriv[mat] = n
}

// MatrixIndices returns the write-order derivative-index stash for matrix
// mat. Callers append via SetNumberOfMatrixIndices.
func (c *Context) MatrixIndices(mat int) []int {
	c.assertMatrix(mat)
	return c.matIndices[mat]
}

// MatrixForceStash returns the per-column force scratch used while
// scattering forces on one matrix row.
func (c *Context) MatrixForceStash() []float64 { return c.matForceStash }

// ClearAll resets every value, derivative and active list. Capacity of the
// temporary vectors persists; logical content does not.
func (c *Context) ClearAll() {
	for v := 0; v < c.nvalues; v++ {
		c.Clear(v)
	}
	for i := range c.matNDeriv {
		c.matNDeriv[i] = 0
	}
	c.nindices, c.nsplit = 0, 0
	c.atLeastOneSet = false
}

// Clear resets the value and derivatives of output component v.
func (c *Context) Clear(v int) {
	c.assertValue(v)
	c.values[v] = 0
	c.ClearDerivatives(v)
}

// ClearDerivatives resets the derivative slots value v has touched and
// empties its active list. Only written slots are walked, so clearing costs
// what the task wrote, not the dense buffer size.
func (c *Context) ClearDerivatives(v int) {
	c.assertValue(v)
	c.nactive[v] = 0
	if !c.atLeastOneSet {
		return
	}
	base := v * c.nder
	for i := base; i < base+c.nder; i++ {
		if c.hasDeriv[i] {
			c.hasDeriv[i] = false
			c.derivatives[i] = 0
		}
	}
}

// EmptyActiveMembers empties every active list without touching the written
// derivative values.
func (c *Context) EmptyActiveMembers() {
	for v := range c.nactive {
		c.nactive[v] = 0
	}
}

// AtomVector returns the reusable atom-position scratch with at least n
// entries.
func (c *Context) AtomVector(n int) []geom.Vec3 {
	if len(c.tmpAtoms) < n {
		c.tmpAtoms = append(c.tmpAtoms, make([]geom.Vec3, n-len(c.tmpAtoms))...)
	}
	return c.tmpAtoms
}

// AtomDerivatives returns the reusable per-component per-atom derivative
// scratch sized for nvalues components over n atoms.
func (c *Context) AtomDerivatives(nvalues, n int) [][]geom.Vec3 {
	if len(c.tmpAtomDeriv) < nvalues {
		c.tmpAtomDeriv = append(c.tmpAtomDeriv, make([][]geom.Vec3, nvalues-len(c.tmpAtomDeriv))...)
	}
	for i := 0; i < nvalues; i++ {
		if len(c.tmpAtomDeriv[i]) < n {
			c.tmpAtomDeriv[i] = append(c.tmpAtomDeriv[i], make([]geom.Vec3, n-len(c.tmpAtomDeriv[i]))...)
		}
	}
	return c.tmpAtomDeriv
}

// AtomVirial returns the reusable per-component virial scratch with at least
// nvalues entries.
func (c *Context) AtomVirial(nvalues int) []geom.Tensor3 {
	if len(c.tmpAtomVirial) < nvalues {
		c.tmpAtomVirial = append(c.tmpAtomVirial, make([]geom.Tensor3, nvalues-len(c.tmpAtomVirial))...)
	}
	return c.tmpAtomVirial
}

// ResizeTemporaryVectors grows the pool of general-purpose scratch vectors
// to at least n entries.
func (c *Context) ResizeTemporaryVectors(n int) {
	if n > len(c.tmpVectors) {
		c.tmpVectors = append(c.tmpVectors, make([][]float64, n-len(c.tmpVectors))...)
	}
}

// TemporaryVector returns the ind-th general-purpose scratch vector.
func (c *Context) TemporaryVector(ind int) *[]float64 {
	if ind >= len(c.tmpVectors) {
		panic(fmt.Sprintf("task context: temporary vector %d not allocated (have %d)", ind, len(c.tmpVectors)))
	}
	return &c.tmpVectors[ind]
}

func (c *Context) assertValue(v int) {
	if v < 0 || v >= c.nvalues {
		panic(fmt.Sprintf("task context: value index %d out of range %d", v, c.nvalues))
	}
}

func (c *Context) assertDeriv(v, j int) {
	if v < 0 || v >= c.nvalues || j < 0 || j >= c.nder {
		panic(fmt.Sprintf("task context: derivative index (%d, %d) out of range (%d, %d)", v, j, c.nvalues, c.nder))
	}
}

func (c *Context) assertMatrix(mat int) {
	if mat < 0 || mat >= len(c.matNDeriv) {
		panic(fmt.Sprintf("task context: matrix stash %d out of range %d", mat, len(c.matNDeriv)))
	}
}
