package matrix

import (
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/value"
)

// RowSum reduces a matrix to the vector of its row sums. Fed with an
// adjacency matrix this is the coordination number of each row atom.
//
// The component holds no derivative records of its own: the derivative of a
// row sum with respect to each stored element is one, so Apply forwards the
// force on out[i] verbatim onto every element of row i and lets the matrix
// component scatter from there.
type RowSum struct {
	*engine.Base
	in  *value.Value
	out *value.Value
}

func NewRowSum(label string, in *value.Value) (*RowSum, error) {
	if in.Rank() != 2 {
		return nil, &ShapeMismatchError{Label: label, Reason: "argument must be a matrix"}
	}
	r := &RowSum{Base: engine.NewBase(label), in: in, out: value.NewVector(label, in.Shape()[0])}
	r.out.SetNotPeriodic()
	r.SetArguments(in)
	r.AddOutput(r.out)
	return r, nil
}

func (r *RowSum) Prepare(sys *engine.System) error { return nil }

func (r *RowSum) Calculate(sys *engine.System) error {
	rows, cols := r.in.Shape()[0], r.in.Shape()[1]
	for i := 0; i < rows; i++ {
		sum := 0.0
		if r.in.IsSparse() {
			for k := 0; k < r.in.RowLength(i); k++ {
				sum += r.in.RowValue(i, k)
			}
		} else {
			for j := 0; j < cols; j++ {
				sum += r.in.Get(i*cols + j)
			}
		}
		r.out.Set(i, sum)
	}
	return nil
}

func (r *RowSum) Apply(sys *engine.System) {
	if !r.out.HasForce() {
		return
	}
	rows, cols := r.in.Shape()[0], r.in.Shape()[1]
	for i := 0; i < rows; i++ {
		f := r.out.Force(i)
		if f == 0 {
			continue
		}
		if r.in.IsSparse() {
			for k := 0; k < r.in.RowLength(i); k++ {
				r.in.AddForce(i*cols+r.in.RowIndex(i, k), f)
			}
		} else {
			for j := 0; j < cols; j++ {
				r.in.AddForce(i*cols+j, f)
			}
		}
	}
}
