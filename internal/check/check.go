// Package check provides numerical differentiation helpers used to verify
// analytic derivatives in tests.
package check

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Func is a scalar function of a flat coordinate vector.
type Func func(x []float64) (float64, error)

// Gradient estimates df/dx by central differences with step h. The input
// slice is restored before returning.
func Gradient(f Func, x []float64, h float64) ([]float64, error) {
	if h <= 0 {
		return nil, fmt.Errorf("check: step must be positive, got %g", h)
	}
	grad := make([]float64, len(x))
	for i := range x {
		orig := x[i]
		x[i] = orig + h
		fp, err := f(x)
		if err != nil {
			x[i] = orig
			return nil, err
		}
		x[i] = orig - h
		fm, err := f(x)
		x[i] = orig
		if err != nil {
			return nil, err
		}
		grad[i] = (fp - fm) / (2 * h)
	}
	return grad, nil
}

// MaxDiff returns the largest absolute elementwise difference between two
// equally sized vectors.
func MaxDiff(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("check: length mismatch %d vs %d", len(a), len(b)))
	}
	worst := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > worst {
			worst = d
		}
	}
	return worst
}

// MatrixMaxDiff returns the largest absolute elementwise difference between
// two matrices of equal dimensions.
func MatrixMaxDiff(a, b mat.Matrix) float64 {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(fmt.Sprintf("check: dimension mismatch %dx%d vs %dx%d", ar, ac, br, bc))
	}
	worst := 0.0
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			if d := math.Abs(a.At(i, j) - b.At(i, j)); d > worst {
				worst = d
			}
		}
	}
	return worst
}
