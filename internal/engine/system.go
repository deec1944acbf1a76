// Package engine ties the evaluation machinery together: the MD-driver
// boundary, the component DAG with its topological step loop, the explicit
// action registry, and the backward force-application pass.
package engine

import (
	"fmt"

	"github.com/colvar-go/colvar/internal/geom"
)

// System is the per-step boundary with the MD driver: positions, cell,
// masses and charges come in; accumulated forces and the virial go out.
type System struct {
	positions []geom.Vec3
	masses    []float64
	charges   []float64
	cell      geom.Cell

	forces []geom.Vec3
	virial geom.Tensor3

	step int64
}

// NewSystem creates a system for n atoms.
func NewSystem(n int) *System {
	return &System{
		positions: make([]geom.Vec3, n),
		masses:    make([]float64, n),
		charges:   make([]float64, n),
		forces:    make([]geom.Vec3, n),
	}
}

// NumberOfAtoms returns the number of atoms in the system.
func (s *System) NumberOfAtoms() int { return len(s.positions) }

// SetPositions copies the driver's flattened coordinate array (3N doubles).
func (s *System) SetPositions(xyz []float64) error {
	if len(xyz) != 3*len(s.positions) {
		return fmt.Errorf("system: expected %d coordinates, got %d", 3*len(s.positions), len(xyz))
	}
	for i := range s.positions {
		s.positions[i] = geom.Vec3{xyz[3*i], xyz[3*i+1], xyz[3*i+2]}
	}
	return nil
}

// SetPosition sets one atom's position.
func (s *System) SetPosition(i int, p geom.Vec3) { s.positions[i] = p }

// Position returns one atom's position.
func (s *System) Position(i int) geom.Vec3 { return s.positions[i] }

// Positions returns the full position array.
func (s *System) Positions() []geom.Vec3 { return s.positions }

// SetMasses copies the per-atom masses.
func (s *System) SetMasses(m []float64) error {
	if len(m) != len(s.masses) {
		return fmt.Errorf("system: expected %d masses, got %d", len(s.masses), len(m))
	}
	copy(s.masses, m)
	return nil
}

// SetCharges copies the per-atom charges.
func (s *System) SetCharges(q []float64) error {
	if len(q) != len(s.charges) {
		return fmt.Errorf("system: expected %d charges, got %d", len(s.charges), len(q))
	}
	copy(s.charges, q)
	return nil
}

// Mass returns one atom's mass.
func (s *System) Mass(i int) float64 { return s.masses[i] }

// Charge returns one atom's charge.
func (s *System) Charge(i int) float64 { return s.charges[i] }

// SetCell sets the orthorhombic simulation cell.
func (s *System) SetCell(c geom.Cell) { s.cell = c }

// Cell returns the simulation cell.
func (s *System) Cell() geom.Cell { return s.cell }

// Distance returns the minimum image vector from atom i to atom j.
func (s *System) Distance(i, j int) geom.Vec3 {
	return s.cell.Distance(s.positions[i], s.positions[j])
}

// AddForce accumulates a force component onto one atom's Cartesian axis.
func (s *System) AddForce(atom, axis int, f float64) {
	s.forces[atom][axis] += f
}

// AddVirial accumulates onto one slot of the 3x3 virial tensor.
func (s *System) AddVirial(row, col int, v float64) {
	s.virial[row][col] += v
}

// Forces returns the accumulated atomic forces.
func (s *System) Forces() []geom.Vec3 { return s.forces }

// Virial returns the accumulated virial tensor.
func (s *System) Virial() geom.Tensor3 { return s.virial }

// FlatForces writes the accumulated forces into the driver's flattened
// array (3N doubles).
func (s *System) FlatForces(out []float64) error {
	if len(out) != 3*len(s.forces) {
		return fmt.Errorf("system: expected %d force slots, got %d", 3*len(s.forces), len(out))
	}
	for i, f := range s.forces {
		out[3*i], out[3*i+1], out[3*i+2] = f[0], f[1], f[2]
	}
	return nil
}

// ClearForces zeroes the accumulated forces and virial at the start of a
// step.
func (s *System) ClearForces() {
	for i := range s.forces {
		s.forces[i] = geom.Vec3{}
	}
	s.virial = geom.Tensor3{}
}

// Step returns the current step counter.
func (s *System) Step() int64 { return s.step }

// AdvanceStep increments the step counter.
func (s *System) AdvanceStep() { s.step++ }
