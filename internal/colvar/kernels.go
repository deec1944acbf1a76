package colvar

import (
	"math"

	"github.com/colvar-go/colvar/internal/geom"
)

// DistanceKernel computes the distance between the two atoms of a block.
type DistanceKernel struct{}

func (DistanceKernel) Name() string         { return "DISTANCE" }
func (DistanceKernel) AtomsPerBlock() int   { return 2 }
func (DistanceKernel) Components() []string { return []string{""} }
func (DistanceKernel) Periodic(int) (bool, float64, float64) {
	return false, 0, 0
}

// Calculate computes d = |p1 - p0| with dd/dp0 = -d̂ and dd/dp1 = +d̂.
func (DistanceKernel) Calculate(_, _ []float64, pos []geom.Vec3, out Output) {
	d := pos[1].Sub(pos[0])
	norm := d.Norm()
	out.Values[0] = norm
	if norm == 0 {
		// Coincident atoms have no direction; derivatives stay zero.
		return
	}
	inv := 1.0 / norm
	unit := d.Scale(inv)
	out.Derivs[0][0] = unit.Scale(-1)
	out.Derivs[0][1] = unit
	out.Virial[0] = geom.Outer(d, unit).Scale(-1)
}

// AngleKernel computes the angle at the middle atom of a three atom block.
type AngleKernel struct{}

func (AngleKernel) Name() string         { return "ANGLE" }
func (AngleKernel) AtomsPerBlock() int   { return 3 }
func (AngleKernel) Components() []string { return []string{""} }
func (AngleKernel) Periodic(int) (bool, float64, float64) {
	return false, 0, 0
}

// Calculate computes theta = acos(r1·r2 / |r1||r2|) for r1 = p0 - p1 and
// r2 = p2 - p1, using the cross-product form of the gradient, which stays
// finite away from exactly collinear configurations.
func (AngleKernel) Calculate(_, _ []float64, pos []geom.Vec3, out Output) {
	r1 := pos[0].Sub(pos[1])
	r2 := pos[2].Sub(pos[1])
	n1, n2 := r1.Norm(), r2.Norm()
	cosT := r1.Dot(r2) / (n1 * n2)
	if cosT > 1 {
		cosT = 1
	} else if cosT < -1 {
		cosT = -1
	}
	theta := math.Acos(cosT)
	out.Values[0] = theta

	// dtheta/dr1 = -(r̂2 - cos r̂1) / (|r1| sin), and symmetrically for r2.
	sinT := math.Sin(theta)
	if sinT < 1e-12 {
		// Collinear: gradient is ill defined, leave derivatives zero.
		return
	}
	u1 := r1.Scale(1 / n1)
	u2 := r2.Scale(1 / n2)
	d1 := u2.Sub(u1.Scale(cosT)).Scale(-1 / (n1 * sinT))
	d2 := u1.Sub(u2.Scale(cosT)).Scale(-1 / (n2 * sinT))
	out.Derivs[0][0] = d1
	out.Derivs[0][2] = d2
	out.Derivs[0][1] = d1.Add(d2).Scale(-1)
	out.Virial[0] = geom.Outer(r1, d1).Add(geom.Outer(r2, d2)).Scale(-1)
}
