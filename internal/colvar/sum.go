package colvar

import (
	"fmt"

	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/value"
)

// Sum reduces a vector argument to the scalar sum of its elements,
// optionally weighted. It is the usual closing component of a pipeline:
// biases act on its scalar and the unit derivatives spread the force over
// the vector.
type Sum struct {
	*engine.Base
	in      *value.Value
	out     *value.Value
	weights []float64
}

// NewSum creates the component. weights may be nil for a plain sum;
// otherwise it must match the argument length.
func NewSum(label string, in *value.Value, weights []float64) (*Sum, error) {
	if in.Rank() != 1 {
		return nil, fmt.Errorf("sum %s: argument %s is not a vector", label, in.Name())
	}
	if weights != nil && len(weights) != in.Size() {
		return nil, fmt.Errorf("sum %s: %d weights for %d elements", label, len(weights), in.Size())
	}
	s := &Sum{Base: engine.NewBase(label), in: in, out: value.NewScalar(label)}
	s.out.SetNotPeriodic()
	if weights != nil {
		s.weights = append([]float64(nil), weights...)
	}
	s.SetArguments(in)
	s.AddOutput(s.out)
	return s, nil
}

func (s *Sum) Prepare(sys *engine.System) error { return nil }

func (s *Sum) Calculate(sys *engine.System) error {
	total := 0.0
	for i := 0; i < s.in.Size(); i++ {
		w := 1.0
		if s.weights != nil {
			w = s.weights[i]
		}
		total += w * s.in.Get(i)
	}
	s.out.Set(0, total)
	return nil
}

func (s *Sum) Apply(sys *engine.System) {
	if !s.out.HasForce() {
		return
	}
	f := s.out.Force(0)
	if f == 0 {
		return
	}
	for i := 0; i < s.in.Size(); i++ {
		w := 1.0
		if s.weights != nil {
			w = s.weights[i]
		}
		s.in.AddForce(i, f*w)
	}
}
