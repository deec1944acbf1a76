package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/colvar-go/colvar/internal/value"
)

// Graph is the component DAG. Nodes live in an arena and refer to each other
// by index; edges are resolved once after all components are added, from each
// component's argument values back to the component that produces them.
type Graph struct {
	components []Component
	producer   map[*value.Value]int
	levels     [][]int
	order      []int
	resolved   bool
}

// NewGraph creates an empty component graph.
func NewGraph() *Graph {
	return &Graph{producer: make(map[*value.Value]int)}
}

// Add appends a component to the arena and returns its node index.
// Adding after Resolve invalidates the resolution.
func (g *Graph) Add(c Component) int {
	idx := len(g.components)
	g.components = append(g.components, c)
	for _, v := range c.Outputs() {
		g.producer[v] = idx
	}
	g.resolved = false
	return idx
}

// Component returns the node at the given arena index.
func (g *Graph) Component(i int) Component { return g.components[i] }

// NumberOfComponents returns the arena size.
func (g *Graph) NumberOfComponents() int { return len(g.components) }

// FindOutput returns the value with the given name among all component
// outputs, or nil.
func (g *Graph) FindOutput(name string) *value.Value {
	for _, c := range g.components {
		for _, v := range c.Outputs() {
			if v.Name() == name {
				return v
			}
		}
	}
	return nil
}

// Resolve builds the dependency edges and computes the topological levels.
// Components in one level have no edges among themselves and may run
// concurrently. A dependency cycle is a configuration error.
func (g *Graph) Resolve() error {
	n := len(g.components)
	indeg := make([]int, n)
	succ := make([][]int, n)
	for i, c := range g.components {
		seen := make(map[int]bool)
		for _, a := range c.Arguments() {
			p, ok := g.producer[a]
			if !ok {
				return fmt.Errorf("graph: component %s consumes value %s which no component produces", c.Label(), a.Name())
			}
			if p == i {
				return fmt.Errorf("graph: component %s consumes its own output %s", c.Label(), a.Name())
			}
			if !seen[p] {
				seen[p] = true
				succ[p] = append(succ[p], i)
				indeg[i]++
			}
		}
	}

	g.levels = g.levels[:0]
	g.order = g.order[:0]
	frontier := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			frontier = append(frontier, i)
		}
	}
	for len(frontier) > 0 {
		level := append([]int(nil), frontier...)
		g.levels = append(g.levels, level)
		g.order = append(g.order, level...)
		frontier = frontier[:0]
		for _, i := range level {
			for _, j := range succ[i] {
				indeg[j]--
				if indeg[j] == 0 {
					frontier = append(frontier, j)
				}
			}
		}
	}
	if len(g.order) != n {
		return fmt.Errorf("graph: dependency cycle among components")
	}
	g.resolved = true
	return nil
}

// Calculate runs one forward pass: every component level in topological
// order, the components within a level concurrently. Forces deposited on
// output values during the previous step are cleared first.
func (g *Graph) Calculate(ctx context.Context, sys *System) error {
	if !g.resolved {
		if err := g.Resolve(); err != nil {
			return err
		}
	}
	for _, c := range g.components {
		for _, v := range c.Outputs() {
			v.ClearForces()
		}
	}
	for _, c := range g.components {
		if err := c.Prepare(sys); err != nil {
			return fmt.Errorf("graph: prepare %s: %w", c.Label(), err)
		}
	}
	for _, level := range g.levels {
		eg, _ := errgroup.WithContext(ctx)
		for _, i := range level {
			c := g.components[i]
			eg.Go(func() error {
				if err := c.Calculate(sys); err != nil {
					return fmt.Errorf("graph: calculate %s: %w", c.Label(), err)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Apply runs one backward pass: components in reverse topological order
// scatter the forces on their outputs onto their argument values, atoms and
// the virial. By the time a component applies, every downstream consumer has
// already deposited its share of force on that component's outputs.
func (g *Graph) Apply(sys *System) {
	for k := len(g.order) - 1; k >= 0; k-- {
		g.components[g.order[k]].Apply(sys)
	}
}

// Step runs a complete timestep: clear driver forces, forward pass, then
// the backward force pass. Callers that deposit bias forces between the two
// passes use Calculate and Apply directly.
func (g *Graph) Step(ctx context.Context, sys *System) error {
	sys.ClearForces()
	if err := g.Calculate(ctx, sys); err != nil {
		return err
	}
	g.Apply(sys)
	sys.AdvanceStep()
	return nil
}
