package matrix

import (
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/geom"
	"github.com/colvar-go/colvar/internal/neighbor"
	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/task"
)

// Contact is the adjacency matrix of two atom groups: element (i,j) is the
// switching function of the distance between atom i of the first group and
// atom j of the second. A neighbor list keeps the candidate columns of each
// row short, so rows scale with the local density rather than the group
// size.
type Contact struct {
	*Engine

	groupA, groupB []int
	sf             *neighbor.SwitchingFunction
	list           *neighbor.List
	usePBC         bool

	sys *engine.System
}

// ContactOption adjusts a Contact at construction.
type ContactOption func(*contactSetup)

type contactSetup struct {
	stride  int
	maxCols int
	cutoff  float64
	noPBC   bool
}

// WithStride rebuilds the neighbor list every n-th call instead of every
// step.
func WithStride(n int) ContactOption {
	return func(s *contactSetup) { s.stride = n }
}

// WithMaxColumns bounds how many contacts one row can hold.
func WithMaxColumns(n int) ContactOption {
	return func(s *contactSetup) { s.maxCols = n }
}

// WithCutoff widens the neighbor-list cutoff beyond the switching
// function's own. Candidates between the two cutoffs evaluate to zero;
// the candidate set must stay a superset of the nonzero columns, so a
// cutoff below the switching function's is raised to it.
func WithCutoff(r float64) ContactOption {
	return func(s *contactSetup) { s.cutoff = r }
}

// WithoutPBC computes plain Cartesian distances.
func WithoutPBC() ContactOption {
	return func(s *contactSetup) { s.noPBC = true }
}

// NewContact builds the adjacency matrix component over the two groups of
// global atom indices. The neighbor-list cutoff comes from the switching
// function's own cutoff unless widened with WithCutoff.
func NewContact(label string, groupA, groupB []int, sf *neighbor.SwitchingFunction, cfg parallel.Config, opts ...ContactOption) (*Contact, error) {
	setup := contactSetup{stride: 1, maxCols: len(groupB), cutoff: sf.Cutoff()}
	for _, opt := range opts {
		opt(&setup)
	}
	if setup.cutoff < sf.Cutoff() {
		setup.cutoff = sf.Cutoff()
	}
	list, err := neighbor.NewList(groupA, groupB, setup.cutoff, setup.stride)
	if err != nil {
		return nil, err
	}
	c := &Contact{groupA: groupA, groupB: groupB, sf: sf, list: list, usePBC: !setup.noPBC}
	base := engine.NewBase(label)
	base.RequestAtoms(append(append([]int(nil), groupA...), groupB...))
	eng, err := NewEngine(base, c, len(groupA), len(groupB), setup.maxCols)
	if err != nil {
		return nil, err
	}
	c.Engine = eng
	c.Matrix().SetDerivativeIsZeroWhenValueIsZero()
	c.SetupTasks(len(groupA), task.NewScheduler(len(groupA), cfg))
	return c, nil
}

func (c *Contact) IsAdjacencyMatrix() bool { return true }

// Prepare refreshes the neighbor list for the rows that are still active.
func (c *Contact) Prepare(sys *engine.System) error {
	c.sys = sys
	c.list.PrepareForTasks(c.Scheduler().ActiveTasks())
	c.list.Update(sys.Positions(), sys.Cell())
	return nil
}

func (c *Contact) SetupForTask(row int, ctx *task.Context) {
	ind := ctx.Indices(1 + c.list.NumberOfColumns())
	n := c.list.RetrieveNeighbours(row, ind[1:])
	ind[0] = row
	ctx.SetSplitIndex(1)
	ctx.SetNumberOfIndices(1 + n)
}

func (c *Contact) PerformElement(controller string, row, col int, ctx *task.Context) {
	if controller != c.Label() {
		// Chained under another loop the adjacency weights were already
		// computed by the controller.
		return
	}
	var d geom.Vec3
	pi := c.sys.Position(c.groupA[row])
	pj := c.sys.Position(c.groupB[col])
	if c.usePBC {
		d = c.sys.Cell().Distance(pi, pj)
	} else {
		d = pj.Sub(pi)
	}
	val, dfunc := c.sf.Calculate(d.Norm())
	s := c.Stream()
	ctx.SetValue(s, val)
	if c.DoNotCalculateDerivatives() {
		return
	}
	off := c.ChainOffset()
	li := 3 * row
	lj := 3 * (len(c.groupA) + col)
	ab := off + c.AtomDerivBase()
	if val < engine.Epsilon {
		// The pair drifted past the cutoff since the last list rebuild.
		// Its atomic indices are still registered so the row's force
		// bookkeeping keeps covering a contact that transiently crosses
		// the threshold; the zero element itself is never stashed.
		for axis := 0; axis < 3; axis++ {
			ctx.AddDerivative(s, ab+li+axis, 0)
			ctx.UpdateIndex(s, ab+li+axis)
			ctx.AddDerivative(s, ab+lj+axis, 0)
			ctx.UpdateIndex(s, ab+lj+axis)
		}
		return
	}
	for axis := 0; axis < 3; axis++ {
		g := dfunc * d[axis]
		ctx.AddDerivative(s, ab+li+axis, -g)
		ctx.UpdateIndex(s, ab+li+axis)
		ctx.AddDerivative(s, ab+lj+axis, g)
		ctx.UpdateIndex(s, ab+lj+axis)
	}
	vb := off + c.VirialDerivBase()
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			j := vb + 3*a + b
			ctx.AddDerivative(s, j, -dfunc*d[a]*d[b])
			ctx.UpdateIndex(s, j)
		}
	}
}

// RunEndOfRowJobs registers the anchor atom and the virial: every element
// of the row moves when the row's atom does.
func (c *Contact) RunEndOfRowJobs(row int, ctx *task.Context) {
	off := c.ChainOffset()
	c.StashRowIndices(ctx, off+c.AtomDerivBase()+3*row, 3)
	c.StashRowIndices(ctx, off+c.VirialDerivBase(), 9)
}

func (c *Contact) Calculate(sys *engine.System) error {
	c.sys = sys
	if c.Chained() {
		return nil
	}
	c.Run()
	return nil
}

func (c *Contact) Apply(sys *engine.System) {
	c.ApplyMatrixForces(sys)
}
