package neighbor

import (
	"fmt"
	"math"
)

// SwitchingFunction is the rational switching function
//
//	s(r) = (1 - ((r-d0)/r0)^nn) / (1 - ((r-d0)/r0)^mm)
//
// that maps a distance smoothly from 1 (close contact) to 0 beyond the
// cutoff. It is the element kernel of contact matrices and the acceptance
// test of the neighbor list.
type SwitchingFunction struct {
	d0     float64
	invr0  float64
	nn, mm int
	dmax   float64
}

// NewSwitchingFunction creates a rational switching function. mm defaults to
// 2*nn when zero.
func NewSwitchingFunction(d0, r0 float64, nn, mm int) (*SwitchingFunction, error) {
	if r0 <= 0 {
		return nil, fmt.Errorf("switching function: R_0 must be positive, got %g", r0)
	}
	if mm == 0 {
		mm = 2 * nn
	}
	if nn <= 0 || mm <= nn {
		return nil, fmt.Errorf("switching function: need 0 < NN < MM, got NN=%d MM=%d", nn, mm)
	}
	s := &SwitchingFunction{d0: d0, invr0: 1.0 / r0, nn: nn, mm: mm}
	// Distance beyond which the function is treated as exactly zero.
	s.dmax = d0 + r0*math.Pow(0.00001, 1.0/float64(nn-mm))
	return s, nil
}

// Cutoff returns the distance beyond which Calculate returns zero.
func (s *SwitchingFunction) Cutoff() float64 { return s.dmax }

// Calculate returns s(distance) and dfunc, the derivative of s divided by
// the distance. The division lets callers form the Cartesian gradient as
// dfunc * distanceVector without a second division.
func (s *SwitchingFunction) Calculate(distance float64) (val, dfunc float64) {
	if distance > s.dmax {
		return 0, 0
	}
	rdist := (distance - s.d0) * s.invr0
	if rdist <= 0 {
		return 1, 0
	}
	if 2*s.nn == s.mm {
		// Common case: s = 1/(1+x^nn) with x = rdist.
		rN := math.Pow(rdist, float64(s.nn-1))
		iden := 1.0 / (1.0 + rN*rdist)
		val = iden
		dfunc = -float64(s.nn) * rN * iden * iden
	} else if math.Abs(rdist-1.0) < 1e-12 {
		// l'Hopital at rdist == 1.
		val = float64(s.nn) / float64(s.mm)
		dfunc = 0.5 * float64(s.nn) * float64(s.nn-s.mm) / float64(s.mm)
	} else {
		rN := math.Pow(rdist, float64(s.nn-1))
		rM := math.Pow(rdist, float64(s.mm-1))
		num := 1.0 - rN*rdist
		iden := 1.0 / (1.0 - rM*rdist)
		val = num * iden
		dfunc = (-float64(s.nn)*rN + val*float64(s.mm)*rM) * iden
	}
	dfunc *= s.invr0
	dfunc /= distance
	return val, dfunc
}
