// Package engine provides the public API for building and running a graph
// of collective-variable components against a molecular system.
//
// Example:
//
//	sys := engine.NewSystem(64)
//	g := engine.NewGraph()
//	g.Add(d1)
//	g.Add(bias)
//	err := g.Step(ctx, sys)
package engine

import (
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/value"
)

// Epsilon is the threshold below which a matrix element is treated as zero.
const Epsilon = engine.Epsilon

// Type aliases for public API

// System holds the per-step state handed over by the MD code.
type System = engine.System

// Component is one node of the evaluation graph.
type Component = engine.Component

// Base carries the bookkeeping shared by every component.
type Base = engine.Base

// Graph is the ordered collection of components evaluated each step.
type Graph = engine.Graph

// Registry maps action keywords to component factories.
type Registry = engine.Registry

// ActionConfig is the parsed configuration one factory receives.
type ActionConfig = engine.ActionConfig

// Input is the graph entry point for externally supplied values.
type Input = engine.Input

// Factory builds a component from its configuration.
type Factory = engine.Factory

// Constructors

// NewSystem creates a system holding n atoms.
func NewSystem(n int) *System { return engine.NewSystem(n) }

// NewGraph creates an empty evaluation graph.
func NewGraph() *Graph { return engine.NewGraph() }

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry { return engine.NewRegistry() }

// NewBase creates the shared bookkeeping for a component with the given
// label.
func NewBase(label string) *Base { return engine.NewBase(label) }

// NewInput creates an input holder for the given values.
func NewInput(label string, values ...*value.Value) *Input {
	return engine.NewInput(label, values...)
}
