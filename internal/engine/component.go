package engine

import (
	"fmt"

	"github.com/colvar-go/colvar/internal/task"
	"github.com/colvar-go/colvar/internal/value"
)

// Epsilon is the numerical-zero tolerance: matrix elements whose magnitude
// falls below it are treated as structural zeros and skipped.
const Epsilon = 2.220446049250313e-16

// Component is one node of the evaluation DAG. It produces one or more
// output values from upstream argument values and/or atomic positions, and
// knows how to push externally deposited forces on its outputs back onto its
// inputs.
type Component interface {
	Label() string
	Outputs() []*value.Value
	Arguments() []*value.Value

	// Prepare runs epoch work before the task loop: neighbor-list rebuild,
	// argument-driven resizing.
	Prepare(sys *System) error

	// Calculate runs the component's task set, populating its outputs.
	Calculate(sys *System) error

	// Apply scatters forces deposited on the outputs onto argument values,
	// atoms and the virial. It is the exact adjoint of the derivative
	// accumulation performed during Calculate.
	Apply(sys *System)
}

// Base carries the bookkeeping shared by every component: the label, the
// output and argument values, the derivative-space layout and the persistent
// per-task derivative storage.
//
// The derivative space of a component is laid out as the flattened elements
// of each argument in order, then three slots per requested atom, then the
// nine virial slots.
type Base struct {
	label   string
	outputs []*value.Value
	args    []*value.Value

	argDerivStart []int
	argDerivTotal int

	// Global atom indices this component requested, or empty for pure
	// argument components.
	atoms []int

	noDeriv bool

	sched  *task.Scheduler
	stores []*DerivStore
}

// NewBase creates the shared bookkeeping for a component with the given
// label.
func NewBase(label string) *Base { return &Base{label: label} }

// Label returns the component's label.
func (b *Base) Label() string { return b.label }

// Outputs returns the component's output values.
func (b *Base) Outputs() []*value.Value { return b.outputs }

// Arguments returns the component's argument values.
func (b *Base) Arguments() []*value.Value { return b.args }

// AddOutput registers an output value.
func (b *Base) AddOutput(v *value.Value) { b.outputs = append(b.outputs, v) }

// Output returns the i-th output value.
func (b *Base) Output(i int) *value.Value { return b.outputs[i] }

// SetArguments registers the argument values and computes the derivative
// offsets of each argument segment.
func (b *Base) SetArguments(args ...*value.Value) {
	b.args = args
	b.argDerivStart = make([]int, len(args))
	total := 0
	for i, a := range args {
		b.argDerivStart[i] = total
		// Dense element count, not storage size: forces on sparse
		// matrices are addressed by dense flat index.
		total += a.Shape().NumElements()
	}
	b.argDerivTotal = total
}

// Argument returns the i-th argument value.
func (b *Base) Argument(i int) *value.Value { return b.args[i] }

// ArgumentDerivStart returns the derivative-space offset of argument i.
func (b *Base) ArgumentDerivStart(i int) int { return b.argDerivStart[i] }

// RequestAtoms registers the global atom indices the component depends on.
func (b *Base) RequestAtoms(atoms []int) {
	b.atoms = append([]int(nil), atoms...)
}

// Atoms returns the requested global atom indices.
func (b *Base) Atoms() []int { return b.atoms }

// NumberOfAtoms returns how many atoms the component requested.
func (b *Base) NumberOfAtoms() int { return len(b.atoms) }

// NumberOfDerivatives returns the size of the component's derivative space.
func (b *Base) NumberOfDerivatives() int {
	if len(b.atoms) > 0 {
		return b.argDerivTotal + 3*len(b.atoms) + 9
	}
	return b.argDerivTotal
}

// AtomDerivBase returns the derivative-space offset of the atom block.
func (b *Base) AtomDerivBase() int { return b.argDerivTotal }

// VirialDerivBase returns the derivative-space offset of the virial block.
func (b *Base) VirialDerivBase() int { return b.argDerivTotal + 3*len(b.atoms) }

// SetNoDerivatives marks the component as pure-value: derivatives are not
// accumulated and Apply is a no-op. Used when re-evaluating stored data
// where no forces will ever be requested.
func (b *Base) SetNoDerivatives() { b.noDeriv = true }

// DoNotCalculateDerivatives reports whether derivative work is disabled.
func (b *Base) DoNotCalculateDerivatives() bool { return b.noDeriv }

// SetupTasks builds the scheduler over n tasks and the per-output
// derivative stores.
func (b *Base) SetupTasks(n int, sched *task.Scheduler) {
	b.sched = sched
	b.stores = make([]*DerivStore, len(b.outputs))
	for i := range b.stores {
		b.stores[i] = NewDerivStore(n)
	}
}

// Scheduler returns the component's task scheduler.
func (b *Base) Scheduler() *task.Scheduler { return b.sched }

// Store returns the persistent derivative store for output i.
func (b *Base) Store(i int) *DerivStore { return b.stores[i] }

// StoreVectorResults is the merge step for vector-shaped outputs: task t's
// value for each output component is written to element t of that output,
// and the task's active derivative entries are copied into the persistent
// store. Different tasks touch disjoint slots.
func (b *Base) StoreVectorResults(t int, ctx *task.Context) {
	for o := range b.outputs {
		b.outputs[o].Set(t, ctx.Get(o))
		if b.noDeriv {
			continue
		}
		b.stores[o].StoreFromContext(t, o, ctx)
	}
}

// RouteForce adds f onto the degree of freedom addressed by derivative index
// j: an argument element, an atom axis, or a virial slot.
func (b *Base) RouteForce(sys *System, j int, f float64) {
	if j < b.argDerivTotal {
		for i := len(b.args) - 1; i >= 0; i-- {
			if j >= b.argDerivStart[i] {
				b.args[i].AddForce(j-b.argDerivStart[i], f)
				return
			}
		}
	}
	j -= b.argDerivTotal
	if j < 3*len(b.atoms) {
		sys.AddForce(b.atoms[j/3], j%3, f)
		return
	}
	j -= 3 * len(b.atoms)
	if j < 9 {
		sys.AddVirial(j/3, j%3, f)
		return
	}
	panic(fmt.Sprintf("component %s: derivative index beyond declared space", b.label))
}

// ApplyVectorForces is the adjoint of StoreVectorResults: for every output
// element that received an external force, each active derivative entry
// gets exactly one force contribution, and nothing outside the active set is
// touched.
func (b *Base) ApplyVectorForces(sys *System) {
	if b.noDeriv {
		return
	}
	for o, v := range b.outputs {
		if !v.HasForce() {
			continue
		}
		st := b.stores[o]
		for t := 0; t < st.NumberOfTasks(); t++ {
			f := v.Force(t)
			if f == 0 {
				continue
			}
			n := st.RowLength(t)
			for k := 0; k < n; k++ {
				j, der := st.Entry(t, k)
				b.RouteForce(sys, j, f*der)
			}
		}
	}
}

// ClearOutputForces zeroes the deposited forces on every output, ready for
// the next step.
func (b *Base) ClearOutputForces() {
	for _, v := range b.outputs {
		v.ClearForces()
	}
}
