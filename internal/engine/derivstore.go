package engine

import "github.com/colvar-go/colvar/internal/task"

// DerivStore is the persistent sparse derivative storage for one output
// value: per task, the active derivative indices and their accumulated
// derivatives, exactly as registered during the task loop. Force application
// walks these rows, so its cost is proportional to the number of registered
// entries.
type DerivStore struct {
	idx [][]int
	der [][]float64
}

// NewDerivStore creates storage for n tasks.
func NewDerivStore(n int) *DerivStore {
	return &DerivStore{idx: make([][]int, n), der: make([][]float64, n)}
}

// NumberOfTasks returns the number of task rows.
func (d *DerivStore) NumberOfTasks() int { return len(d.idx) }

// RowLength returns the number of active entries stored for task t.
func (d *DerivStore) RowLength(t int) int { return len(d.idx[t]) }

// Entry returns the k-th stored (index, derivative) pair of task t.
func (d *DerivStore) Entry(t, k int) (int, float64) { return d.idx[t][k], d.der[t][k] }

// StoreFromContext copies the active derivative entries of context value v
// into task t's row, reusing row capacity across steps.
func (d *DerivStore) StoreFromContext(t, v int, ctx *task.Context) {
	n := ctx.NumberActive(v)
	d.idx[t] = d.idx[t][:0]
	d.der[t] = d.der[t][:0]
	for k := 0; k < n; k++ {
		j := ctx.ActiveIndex(v, k)
		d.idx[t] = append(d.idx[t], j)
		d.der[t] = append(d.der[t], ctx.Derivative(v, j))
	}
}

// Clear empties every row without releasing capacity.
func (d *DerivStore) Clear() {
	for t := range d.idx {
		d.idx[t] = d.idx[t][:0]
		d.der[t] = d.der[t][:0]
	}
}
