// Package colvar implements the vectorized collective-variable component: a
// generic task-per-atom-block evaluator that delegates the physics of each
// block to a small CV kernel and owns all derivative bookkeeping, plus the
// distance and angle kernels used throughout the tests and the CLI.
package colvar

import (
	"fmt"

	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/geom"
	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/task"
	"github.com/colvar-go/colvar/internal/value"
)

// Output is the scratch a kernel writes into: one value per declared
// component, per-component per-atom position derivatives, and per-component
// virial contributions.
type Output struct {
	Values []float64
	Derivs [][]geom.Vec3
	Virial []geom.Tensor3
}

// Kernel computes one collective variable for one block of atoms.
// Implementations hold no per-task state; the same kernel value is shared by
// every worker.
type Kernel interface {
	// Name is the keyword the kernel registers under.
	Name() string
	// AtomsPerBlock returns how many atoms one task consumes.
	AtomsPerBlock() int
	// Components returns the names of the produced components; a single
	// empty name means one unnamed value.
	Components() []string
	// Periodic returns the periodic domain of component i, if any.
	Periodic(i int) (periodic bool, min, max float64)
	// Calculate computes the CV for one block. Positions arrive already
	// reassembled with respect to periodic boundaries.
	Calculate(masses, charges []float64, pos []geom.Vec3, out Output)
}

// MultiColvar evaluates one CV kernel over many independent atom blocks,
// producing one vector output element per block. One task is one block.
type MultiColvar struct {
	*engine.Base
	kernel Kernel
	usePBC bool

	// blocks[j][t] is the index into the requested atom list of the j-th
	// member of task t's block.
	blocks [][]int
	ntasks int

	// Set for the duration of one Calculate call.
	sys *engine.System
}

// NewMultiColvar creates a vector CV component. atomBlocks holds one slice
// of global atom indices per task; every block must have the kernel's block
// size.
func NewMultiColvar(label string, kernel Kernel, atomBlocks [][]int, cfg parallel.Config) (*MultiColvar, error) {
	nper := kernel.AtomsPerBlock()
	if len(atomBlocks) == 0 {
		return nil, fmt.Errorf("multicolvar %s: no atoms have been specified", label)
	}
	m := &MultiColvar{
		Base:   engine.NewBase(label),
		kernel: kernel,
		usePBC: true,
		ntasks: len(atomBlocks),
	}
	all := make([]int, 0, nper*len(atomBlocks))
	m.blocks = make([][]int, nper)
	for j := range m.blocks {
		m.blocks[j] = make([]int, len(atomBlocks))
	}
	for t, blk := range atomBlocks {
		if len(blk) != nper {
			return nil, fmt.Errorf("multicolvar %s: block %d has %d atoms, kernel %s needs %d", label, t, len(blk), kernel.Name(), nper)
		}
		for j, a := range blk {
			m.blocks[j][t] = len(all)
			all = append(all, a)
		}
	}
	m.RequestAtoms(all)

	comps := kernel.Components()
	for i, name := range comps {
		vname := label
		if name != "" {
			vname = label + "." + name
		}
		v := value.NewVector(vname, len(atomBlocks))
		if ok, min, max := kernel.Periodic(i); ok {
			if err := v.SetPeriodic(min, max); err != nil {
				return nil, err
			}
		}
		m.AddOutput(v)
	}
	m.SetupTasks(len(atomBlocks), task.NewScheduler(len(atomBlocks), cfg))
	return m, nil
}

// SetNoPBC disables the minimum-image reassembly of each block.
func (m *MultiColvar) SetNoPBC() { m.usePBC = false }

// Prepare is a no-op: the task list of a multicolvar is fixed at
// construction.
func (m *MultiColvar) Prepare(sys *engine.System) error { return nil }

// Calculate runs one task per atom block.
func (m *MultiColvar) Calculate(sys *engine.System) error {
	m.sys = sys
	defer func() { m.sys = nil }()
	m.Scheduler().RunAllTasks(m, task.Dimensions{
		Values:      len(m.Outputs()),
		Derivatives: m.NumberOfDerivatives(),
	})
	return nil
}

// PerformTask evaluates the kernel for one block and transfers its
// derivatives into the context's sparse bookkeeping.
func (m *MultiColvar) PerformTask(t int, ctx *task.Context) {
	nper := len(m.blocks)
	ncomp := len(m.Outputs())
	atoms := m.Atoms()

	pos := ctx.AtomVector(nper)[:nper]
	for j := 0; j < nper; j++ {
		pos[j] = m.sys.Position(atoms[m.blocks[j][t]])
	}
	if m.usePBC && nper > 1 {
		// Reassemble the block with minimum images along the chain.
		for j := 0; j < nper-1; j++ {
			pos[j+1] = pos[j].Add(m.sys.Cell().Distance(pos[j], pos[j+1]))
		}
	}

	ctx.ResizeTemporaryVectors(2)
	masses := resizeScratch(ctx.TemporaryVector(0), nper)
	charges := resizeScratch(ctx.TemporaryVector(1), nper)
	for j := 0; j < nper; j++ {
		masses[j] = m.sys.Mass(atoms[m.blocks[j][t]])
		charges[j] = m.sys.Charge(atoms[m.blocks[j][t]])
	}

	derivs := ctx.AtomDerivatives(ncomp, nper)
	virial := ctx.AtomVirial(ncomp)
	values := make([]float64, ncomp)
	for i := 0; i < ncomp; i++ {
		virial[i] = geom.Tensor3{}
		for j := 0; j < nper; j++ {
			derivs[i][j] = geom.Vec3{}
		}
	}

	m.kernel.Calculate(masses, charges, pos, Output{Values: values, Derivs: derivs, Virial: virial})
	for i := 0; i < ncomp; i++ {
		ctx.SetValue(i, values[i])
	}
	if m.DoNotCalculateDerivatives() {
		return
	}

	for j := 0; j < nper; j++ {
		local := m.blocks[j][t]
		base := 3 * local
		for i := 0; i < ncomp; i++ {
			ctx.AddDerivative(i, base+0, derivs[i][j][0])
			ctx.AddDerivative(i, base+1, derivs[i][j][1])
			ctx.AddDerivative(i, base+2, derivs[i][j][2])
		}
		// A block may name the same atom twice; register its indices once
		// so the force scatter does not double count.
		dup := false
		for k := 0; k < j; k++ {
			if m.blocks[k][t] == local {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		for i := 0; i < ncomp; i++ {
			ctx.UpdateIndex(i, base+0)
			ctx.UpdateIndex(i, base+1)
			ctx.UpdateIndex(i, base+2)
		}
	}
	nvir := m.VirialDerivBase()
	for i := 0; i < ncomp; i++ {
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				ctx.AddDerivative(i, nvir+3*r+c, virial[i][r][c])
				ctx.UpdateIndex(i, nvir+3*r+c)
			}
		}
	}
}

// StoreResults merges one finished block into the vector outputs.
func (m *MultiColvar) StoreResults(t int, ctx *task.Context) {
	m.StoreVectorResults(t, ctx)
}

// Apply scatters output forces back onto the block atoms and the virial.
func (m *MultiColvar) Apply(sys *engine.System) {
	m.ApplyVectorForces(sys)
}

func resizeScratch(buf *[]float64, n int) []float64 {
	if cap(*buf) < n {
		*buf = make([]float64, n)
	}
	*buf = (*buf)[:n]
	return *buf
}
