// Package geom provides the small fixed-size vector and tensor types used
// throughout the engine for atomic positions, per-atom derivatives and the
// virial.
package geom

import "math"

// Vec3 is a three component Cartesian vector.
type Vec3 [3]float64

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns s*v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{s * v[0], s * v[1], s * v[2]}
}

// Dot returns the scalar product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns the vector product of v and w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Norm2 returns the squared Euclidean length of v.
func (v Vec3) Norm2() float64 {
	return v.Dot(v)
}

// Tensor3 is a 3x3 tensor stored row major. It is used for the virial and
// for cell matrices.
type Tensor3 [3][3]float64

// Add returns t + u.
func (t Tensor3) Add(u Tensor3) Tensor3 {
	var r Tensor3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = t[i][j] + u[i][j]
		}
	}
	return r
}

// Scale returns s*t.
func (t Tensor3) Scale(s float64) Tensor3 {
	var r Tensor3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = s * t[i][j]
		}
	}
	return r
}

// Outer returns the outer product v wᵀ.
func Outer(v, w Vec3) Tensor3 {
	var r Tensor3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = v[i] * w[j]
		}
	}
	return r
}

// Cell describes an orthorhombic simulation box. A zero length along an axis
// disables periodicity along that axis.
type Cell struct {
	Lengths Vec3
}

// Distance returns the minimum image vector from a to b.
func (c Cell) Distance(a, b Vec3) Vec3 {
	d := b.Sub(a)
	for i := 0; i < 3; i++ {
		l := c.Lengths[i]
		if l <= 0 {
			continue
		}
		d[i] -= l * math.Round(d[i]/l)
	}
	return d
}

// Volume returns the box volume, or zero for a fully aperiodic cell.
func (c Cell) Volume() float64 {
	return c.Lengths[0] * c.Lengths[1] * c.Lengths[2]
}
