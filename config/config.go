// Package config loads a solve's scenario and CFR parameters from an HCL
// file, the way the teacher's cmd/holdem-server loads its table layout:
// parse the body into a typed struct with gohcl, backfill zero-valued
// optional fields with documented defaults, then validate before anything
// downstream runs.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdem-gto/poker"
	"github.com/lox/holdem-gto/rangetext"
	"github.com/lox/holdem-gto/solver"
)

// SolveConfig is the HCL-decoded shape of a solve configuration file:
//
//	scenario {
//	  stack     = 100
//	  pot       = 10
//	  oop_range = "22-QQ,AJs-AKs"
//	  ip_range  = "KK,AA"
//	  board     = ["As", "Kd", "7c"]
//	}
//
//	solver {
//	  max_iterations = 500
//	  alpha          = 1.5
//	}
type SolveConfig struct {
	Scenario ScenarioBlock `hcl:"scenario,block"`
	Solver   SolverBlock   `hcl:"solver,block"`
}

// ScenarioBlock is the hand being solved.
type ScenarioBlock struct {
	Stack    float64  `hcl:"stack"`
	Pot      float64  `hcl:"pot"`
	OOPRange string   `hcl:"oop_range"`
	IPRange  string   `hcl:"ip_range"`
	Board    []string `hcl:"board,optional"`
}

// SolverBlock mirrors solver.SolverParams, with every field optional so a
// config file only needs to override what it cares about.
type SolverBlock struct {
	MaxIterations        int      `hcl:"max_iterations,optional"`
	ConvergenceThreshold *float64 `hcl:"convergence_threshold,optional"`
	Alpha                *float64 `hcl:"alpha,optional"`
	Beta                 *float64 `hcl:"beta,optional"`
	Gamma                *float64 `hcl:"gamma,optional"`
	WarmupIterations     int      `hcl:"warmup_iterations,optional"`
	WarmupSampleRate     *float64 `hcl:"warmup_sample_rate,optional"`
	UseSuitIsomorphism   *bool    `hcl:"use_suit_isomorphism,optional"`
	UseCFRPlus           bool     `hcl:"use_cfr_plus,optional"`
	AdaptiveRaiseVisits  int      `hcl:"adaptive_raise_visits,optional"`
	EquityCacheSize      int      `hcl:"equity_cache_size,optional"`
}

// Default returns a SolveConfig with an empty scenario and the solver's
// documented parameter defaults, used both when no file is given and to
// backfill a partially specified one.
func Default() *SolveConfig {
	d := solver.DefaultSolverParams()
	return &SolveConfig{
		Solver: SolverBlock{
			MaxIterations:        int(d.MaxIterations),
			ConvergenceThreshold: &d.ConvergenceThreshold,
			Alpha:                &d.Alpha,
			Beta:                 &d.Beta,
			Gamma:                &d.Gamma,
			WarmupIterations:     int(d.WarmupIterations),
			WarmupSampleRate:     &d.WarmupSampleRate,
			UseSuitIsomorphism:   &d.UseSuitIsomorphism,
			EquityCacheSize:      d.EquityCacheSize,
		},
	}
}

// Load reads and decodes an HCL solve configuration from filename, applying
// solver.DefaultSolverParams() to any field the file leaves unset. A
// missing file is not an error: it returns Default()'s empty scenario,
// matching the teacher's LoadServerConfig fallback.
func Load(filename string) (*SolveConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %s", filename, diags.Error())
	}

	cfg := &SolveConfig{}
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return nil, fmt.Errorf("config: decode %s: %s", filename, diags.Error())
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *SolveConfig) applyDefaults() {
	d := solver.DefaultSolverParams()
	s := &c.Solver
	if s.MaxIterations == 0 {
		s.MaxIterations = int(d.MaxIterations)
	}
	if s.ConvergenceThreshold == nil {
		s.ConvergenceThreshold = &d.ConvergenceThreshold
	}
	if s.Alpha == nil {
		s.Alpha = &d.Alpha
	}
	if s.Beta == nil {
		s.Beta = &d.Beta
	}
	if s.Gamma == nil {
		s.Gamma = &d.Gamma
	}
	if s.WarmupIterations == 0 {
		s.WarmupIterations = int(d.WarmupIterations)
	}
	if s.WarmupSampleRate == nil {
		s.WarmupSampleRate = &d.WarmupSampleRate
	}
	if s.UseSuitIsomorphism == nil {
		s.UseSuitIsomorphism = &d.UseSuitIsomorphism
	}
	if s.EquityCacheSize == 0 {
		s.EquityCacheSize = d.EquityCacheSize
	}
}

// Validate checks the scenario fields a typed solver.Config can't check
// until ranges and cards are actually parsed; solver.Config.Validate takes
// over from there once ToSolverConfig has built one.
func (c *SolveConfig) Validate() error {
	if c.Scenario.OOPRange == "" {
		return fmt.Errorf("config: scenario.oop_range is required")
	}
	if c.Scenario.IPRange == "" {
		return fmt.Errorf("config: scenario.ip_range is required")
	}
	switch len(c.Scenario.Board) {
	case 0, 3, 4, 5:
	default:
		return fmt.Errorf("config: scenario.board must have 0, 3, 4 or 5 cards, got %d", len(c.Scenario.Board))
	}
	return nil
}

// ToSolverConfig parses the scenario's ranges and board into a solver.Config
// ready to pass to solver.Solve or solver.SolvePreflop.
func (c *SolveConfig) ToSolverConfig() (solver.Config, error) {
	oop, err := rangetext.Parse(c.Scenario.OOPRange)
	if err != nil {
		return solver.Config{}, fmt.Errorf("config: oop_range: %w", err)
	}
	ip, err := rangetext.Parse(c.Scenario.IPRange)
	if err != nil {
		return solver.Config{}, fmt.Errorf("config: ip_range: %w", err)
	}

	board := make([]poker.Card, len(c.Scenario.Board))
	for i, s := range c.Scenario.Board {
		card, err := poker.ParseCard(s)
		if err != nil {
			return solver.Config{}, fmt.Errorf("config: board[%d]: %w", i, err)
		}
		board[i] = card
	}

	s := c.Solver
	return solver.Config{
		Stack:    c.Scenario.Stack,
		Pot:      c.Scenario.Pot,
		OOPRange: oop,
		IPRange:  ip,
		Board:    board,
		Solver: solver.SolverParams{
			MaxIterations:        uint32(s.MaxIterations),
			ConvergenceThreshold: *s.ConvergenceThreshold,
			Alpha:                *s.Alpha,
			Beta:                 *s.Beta,
			Gamma:                *s.Gamma,
			WarmupIterations:     uint32(s.WarmupIterations),
			WarmupSampleRate:     *s.WarmupSampleRate,
			UseSuitIsomorphism:   *s.UseSuitIsomorphism,
			UseCFRPlus:           s.UseCFRPlus,
			AdaptiveRaiseVisits:  uint32(s.AdaptiveRaiseVisits),
			EquityCacheSize:      s.EquityCacheSize,
		},
	}, nil
}
