package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colvar-go/colvar/internal/colvar"
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/matrix"
	"github.com/colvar-go/colvar/internal/neighbor"
)

// builtinRegistry wires the standard action keywords.
func builtinRegistry() (*engine.Registry, error) {
	reg := engine.NewRegistry()
	builtins := map[string]engine.Factory{
		"DISTANCE":       newDistance,
		"ANGLE":          newAngle,
		"CONTACT_MATRIX": newContactMatrix,
		"ROWSUM":         newRowSum,
		"SUM":            newSum,
		"TRANSPOSE":      newTranspose,
	}
	for kw, f := range builtins {
		if err := reg.Register(kw, f); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newDistance(cfg engine.ActionConfig) (engine.Component, error) {
	blocks, err := parseBlocks(cfg.Option("atoms", ""), 2)
	if err != nil {
		return nil, err
	}
	return colvar.NewMultiColvar(cfg.Label, colvar.DistanceKernel{}, blocks, cfg.Parallel)
}

func newAngle(cfg engine.ActionConfig) (engine.Component, error) {
	blocks, err := parseBlocks(cfg.Option("atoms", ""), 3)
	if err != nil {
		return nil, err
	}
	return colvar.NewMultiColvar(cfg.Label, colvar.AngleKernel{}, blocks, cfg.Parallel)
}

func newContactMatrix(cfg engine.ActionConfig) (engine.Component, error) {
	group, err := parseGroup(cfg.Option("group", ""))
	if err != nil {
		return nil, err
	}
	groupB := group
	if gb := cfg.Option("groupb", ""); gb != "" {
		if groupB, err = parseGroup(gb); err != nil {
			return nil, err
		}
	}
	d0, err := strconv.ParseFloat(cfg.Option("d_0", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("bad D_0: %w", err)
	}
	r0, err := strconv.ParseFloat(cfg.Option("r_0", "1.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("bad R_0: %w", err)
	}
	nn, err := strconv.Atoi(cfg.Option("nn", "6"))
	if err != nil {
		return nil, fmt.Errorf("bad NN: %w", err)
	}
	mm, err := strconv.Atoi(cfg.Option("mm", "0"))
	if err != nil {
		return nil, fmt.Errorf("bad MM: %w", err)
	}
	sf, err := neighbor.NewSwitchingFunction(d0, r0, nn, mm)
	if err != nil {
		return nil, err
	}
	var opts []matrix.ContactOption
	if stride, err := strconv.Atoi(cfg.Option("stride", "1")); err == nil && stride > 1 {
		opts = append(opts, matrix.WithStride(stride))
	}
	if nlc := cfg.Option("nl_cutoff", ""); nlc != "" {
		r, err := strconv.ParseFloat(nlc, 64)
		if err != nil {
			return nil, fmt.Errorf("bad NL_CUTOFF: %w", err)
		}
		opts = append(opts, matrix.WithCutoff(r))
	}
	if cfg.Option("nopbc", "") != "" {
		opts = append(opts, matrix.WithoutPBC())
	}
	return matrix.NewContact(cfg.Label, group, groupB, sf, cfg.Parallel, opts...)
}

func newRowSum(cfg engine.ActionConfig) (engine.Component, error) {
	if len(cfg.Arguments) != 1 {
		return nil, fmt.Errorf("ROWSUM needs exactly one argument")
	}
	return matrix.NewRowSum(cfg.Label, cfg.Arguments[0])
}

func newSum(cfg engine.ActionConfig) (engine.Component, error) {
	if len(cfg.Arguments) != 1 {
		return nil, fmt.Errorf("SUM needs exactly one argument")
	}
	return colvar.NewSum(cfg.Label, cfg.Arguments[0], nil)
}

func newTranspose(cfg engine.ActionConfig) (engine.Component, error) {
	if len(cfg.Arguments) != 1 {
		return nil, fmt.Errorf("TRANSPOSE needs exactly one argument")
	}
	return matrix.NewTranspose(cfg.Label, cfg.Arguments[0])
}

// parseGroup expands "0-3,7,9-10" into [0 1 2 3 7 9 10].
func parseGroup(spec string) ([]int, error) {
	if spec == "" {
		return nil, fmt.Errorf("empty atom group")
	}
	var out []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			a, err := strconv.Atoi(lo)
			if err != nil {
				return nil, fmt.Errorf("bad atom range %q: %w", part, err)
			}
			b, err := strconv.Atoi(hi)
			if err != nil {
				return nil, fmt.Errorf("bad atom range %q: %w", part, err)
			}
			if b < a {
				return nil, fmt.Errorf("bad atom range %q", part)
			}
			for i := a; i <= b; i++ {
				out = append(out, i)
			}
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad atom index %q: %w", part, err)
		}
		out = append(out, i)
	}
	return out, nil
}

// parseBlocks expands "0,1;1,2;2,3" into per-task atom blocks of the given
// size.
func parseBlocks(spec string, nper int) ([][]int, error) {
	if spec == "" {
		return nil, fmt.Errorf("empty atom list")
	}
	var blocks [][]int
	for _, part := range strings.Split(spec, ";") {
		blk, err := parseGroup(part)
		if err != nil {
			return nil, err
		}
		if len(blk) != nper {
			return nil, fmt.Errorf("block %q has %d atoms, want %d", part, len(blk), nper)
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}
