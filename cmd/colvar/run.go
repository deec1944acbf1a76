package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/geom"
	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/value"
)

var runConfigPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate a CV graph over a generated trajectory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(runConfigPath)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "colvar.yaml", "run description file")
}

func run(ctx context.Context, cfg *Config) error {
	sys := buildSystem(cfg)
	g, err := buildGraph(cfg, sys)
	if err != nil {
		return err
	}
	if err := g.Resolve(); err != nil {
		return err
	}

	var printed []*value.Value
	for _, name := range cfg.Print {
		v := g.FindOutput(name)
		if v == nil {
			return fmt.Errorf("print: no output named %s", name)
		}
		printed = append(printed, v)
	}

	rng := rand.New(rand.NewSource(cfg.System.Seed))
	for step := 0; step < cfg.Steps; step++ {
		if step > 0 && cfg.Jitter > 0 {
			jiggle(sys, rng, cfg.Jitter)
		}
		sys.ClearForces()
		if err := g.Calculate(ctx, sys); err != nil {
			return err
		}
		for _, b := range cfg.Bias {
			v := g.FindOutput(b.Value)
			if v == nil {
				return fmt.Errorf("bias: no output named %s", b.Value)
			}
			v.AddForce(b.Element, b.Force)
		}
		g.Apply(sys)
		sys.AdvanceStep()

		if step%cfg.PrintEvery == 0 {
			report(step, printed)
		}
	}
	return nil
}

// buildSystem places the atoms on a cubic lattice inside the cell.
func buildSystem(cfg *Config) *engine.System {
	n := cfg.System.Atoms
	sys := engine.NewSystem(n)
	side := int(math.Ceil(math.Cbrt(float64(n))))
	a := cfg.System.Spacing
	for i := 0; i < n; i++ {
		sys.SetPosition(i, geom.Vec3{
			a * float64(i%side),
			a * float64((i/side)%side),
			a * float64(i/(side*side)),
		})
	}
	sys.SetCell(geom.Cell{Lengths: geom.Vec3{
		cfg.System.Cell[0], cfg.System.Cell[1], cfg.System.Cell[2],
	}})
	return sys
}

func buildGraph(cfg *Config, sys *engine.System) (*engine.Graph, error) {
	reg, err := builtinRegistry()
	if err != nil {
		return nil, err
	}
	pcfg := parallel.DefaultConfig()
	if cfg.Parallel.Workers > 0 {
		pcfg = parallel.Config{
			Enabled:      true,
			NumWorkers:   cfg.Parallel.Workers,
			MinChunkSize: cfg.Parallel.MinChunkSize,
		}
		if pcfg.MinChunkSize <= 0 {
			pcfg.MinChunkSize = 1
		}
	}

	g := engine.NewGraph()
	for _, spec := range cfg.Actions {
		if spec.Label == "" {
			return nil, fmt.Errorf("action %s has no label", spec.Keyword)
		}
		var args []*value.Value
		for _, name := range spec.Args {
			v := g.FindOutput(name)
			if v == nil {
				return nil, fmt.Errorf("action %s: no output named %s; actions must be listed after their inputs", spec.Label, name)
			}
			args = append(args, v)
		}
		opts := make(map[string]string, len(spec.Options))
		for k, v := range spec.Options {
			opts[strings.ToLower(k)] = v
		}
		c, err := reg.Create(spec.Keyword, engine.ActionConfig{
			Label:     spec.Label,
			Arguments: args,
			System:    sys,
			Options:   opts,
			Parallel:  pcfg,
		})
		if err != nil {
			return nil, err
		}
		g.Add(c)
	}
	return g, nil
}

func jiggle(sys *engine.System, rng *rand.Rand, amplitude float64) {
	for i := 0; i < sys.NumberOfAtoms(); i++ {
		p := sys.Position(i)
		for k := 0; k < 3; k++ {
			p[k] += amplitude * (2*rng.Float64() - 1)
		}
		sys.SetPosition(i, p)
	}
}

func report(step int, printed []*value.Value) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "step %6d", step)
	for _, v := range printed {
		if v.Rank() == 0 {
			fmt.Fprintf(&sb, "  %s=%.6f", v.Name(), v.Get(0))
			continue
		}
		fmt.Fprintf(&sb, "  %s=%s", v.Name(), v.String())
	}
	fmt.Println(sb.String())
}
