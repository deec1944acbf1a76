package matrix

import (
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/value"
)

// Transpose exchanges the two indices of its argument. A vector argument
// becomes a one-row matrix. The component stores no derivative records:
// d(out[j,i])/d(in[i,j]) is one, so forces pass straight through with the
// indices swapped.
type Transpose struct {
	*engine.Base
	in  *value.Value
	out *value.Value
}

// NewTranspose builds the component. The output is dense even when the
// argument is sparse; transposition destroys row-local sparsity.
func NewTranspose(label string, in *value.Value) (*Transpose, error) {
	if in.Rank() == 0 {
		return nil, &ShapeMismatchError{Label: label, Reason: "cannot transpose a scalar"}
	}
	rows, cols := 1, in.Shape()[0]
	if in.Rank() == 2 {
		rows, cols = in.Shape()[1], in.Shape()[0]
	}
	t := &Transpose{Base: engine.NewBase(label), in: in, out: value.NewMatrix(label, rows, cols)}
	t.out.SetNotPeriodic()
	t.SetArguments(in)
	t.AddOutput(t.out)
	return t, nil
}

// IsTransposeOf reports whether v is the value this component transposes.
// Product constructors use it to recognize a matrix times its own
// transpose.
func (t *Transpose) IsTransposeOf(v *value.Value) bool { return t.in == v }

func (t *Transpose) Prepare(sys *engine.System) error { return nil }

func (t *Transpose) Calculate(sys *engine.System) error {
	rows, cols := t.out.Shape()[0], t.out.Shape()[1]
	if t.in.Rank() == 1 {
		for j := 0; j < cols; j++ {
			t.out.Set(j, t.in.Get(j))
		}
		return nil
	}
	if t.in.IsSparse() {
		t.out.Clear(true)
		for i := 0; i < cols; i++ {
			for k := 0; k < t.in.RowLength(i); k++ {
				t.out.Set(t.in.RowIndex(i, k)*cols+i, t.in.RowValue(i, k))
			}
		}
		return nil
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			t.out.Set(i*cols+j, t.in.Get(j*rows+i))
		}
	}
	return nil
}

// Apply forwards the forces on the transposed value back onto the argument
// with the indices swapped.
func (t *Transpose) Apply(sys *engine.System) {
	if !t.out.HasForce() {
		return
	}
	rows, cols := t.out.Shape()[0], t.out.Shape()[1]
	if t.in.Rank() == 1 {
		for j := 0; j < cols; j++ {
			if f := t.out.Force(j); f != 0 {
				t.in.AddForce(j, f)
			}
		}
		return
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if f := t.out.Force(i*cols + j); f != 0 {
				t.in.AddForce(j*rows+i, f)
			}
		}
	}
}
