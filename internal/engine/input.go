package engine

import "github.com/colvar-go/colvar/internal/value"

// Input is the graph entry point for data pushed in from outside: values it
// owns are filled by the caller before Calculate runs, consumers treat them
// as leaves, and any force scattered onto them stays there for the caller to
// collect.
type Input struct {
	*Base
}

// NewInput creates an input holder for the given values.
func NewInput(label string, values ...*value.Value) *Input {
	in := &Input{Base: NewBase(label)}
	for _, v := range values {
		in.AddOutput(v)
	}
	return in
}

func (in *Input) Prepare(sys *System) error   { return nil }
func (in *Input) Calculate(sys *System) error { return nil }
func (in *Input) Apply(sys *System)           {}
