package solver

import (
	"errors"
	"fmt"

	"github.com/lox/holdem-gto/poker"
	"github.com/lox/holdem-gto/rangetext"
	"github.com/lox/holdem-gto/tree"
)

// Config aggregates everything a solve needs: the stakes, both ranges, the
// board, and the tunable CFR parameters.
type Config struct {
	Stack float64
	Pot   float64

	OOPRange rangetext.Range
	IPRange  rangetext.Range
	Board    []poker.Card

	Solver SolverParams
}

// SolverParams controls the Discounted CFR loop itself.
type SolverParams struct {
	MaxIterations        uint32
	ConvergenceThreshold float64
	Alpha, Beta, Gamma   float64
	WarmupIterations     uint32
	WarmupSampleRate     float64
	UseSuitIsomorphism   bool

	// UseCFRPlus clamps negative regrets to zero after every update,
	// trading the Discounted CFR decay schedule for CFR+'s harder floor.
	UseCFRPlus bool

	// AdaptiveRaiseVisits, when > 0, leaves every Raise action out of regret
	// matching and regret updates until the iteration count exceeds this
	// value, trimming early-iteration branching in exchange for some initial
	// bias. The gate counts iterations, not visits to an information set.
	AdaptiveRaiseVisits uint32

	EquityCacheSize int
}

// DefaultSolverParams returns the specification's documented defaults.
func DefaultSolverParams() SolverParams {
	return SolverParams{
		MaxIterations:        300,
		ConvergenceThreshold: 0.01,
		Alpha:                1.5,
		Beta:                 0.5,
		Gamma:                2.0,
		WarmupIterations:     30,
		WarmupSampleRate:     0.3,
		UseSuitIsomorphism:   true,
		EquityCacheSize:      1 << 16,
	}
}

// Validate checks every solver-tunable parameter is within its documented
// range, returning InvalidConfig wrapping the first problem found.
func (p SolverParams) Validate() error {
	switch {
	case p.MaxIterations == 0:
		return &InvalidConfigError{Reason: "max_iterations must be > 0"}
	case p.ConvergenceThreshold < 0:
		return &InvalidConfigError{Reason: "convergence_threshold must be >= 0"}
	case p.Alpha < 0 || p.Beta < 0 || p.Gamma < 0:
		return &InvalidConfigError{Reason: "alpha, beta and gamma must be >= 0"}
	case p.WarmupSampleRate < 0 || p.WarmupSampleRate > 1:
		return &InvalidConfigError{Reason: "warmup_sample_rate must be in [0,1]"}
	}
	return nil
}

// Validate checks the whole solve configuration, including the board and
// stakes, before any tree is built or any iteration runs.
func (c Config) Validate() error {
	if c.Stack <= 0 {
		return &InvalidConfigError{Reason: "stack must be > 0"}
	}
	if c.Pot <= 0 {
		return &InvalidConfigError{Reason: "pot must be > 0"}
	}
	switch len(c.Board) {
	case 0, 3, 4, 5:
	default:
		return &BadBoardError{Reason: fmt.Sprintf("board must have 0, 3, 4 or 5 cards, got %d", len(c.Board))}
	}
	seen := make(map[poker.Card]bool, len(c.Board))
	for _, card := range c.Board {
		if seen[card] {
			return &BadBoardError{Reason: "duplicate card on board"}
		}
		seen[card] = true
	}
	return c.Solver.Validate()
}

func startStreetFor(boardLen int) (tree.Street, error) {
	switch boardLen {
	case 3:
		return tree.Flop, nil
	case 4:
		return tree.Turn, nil
	case 5:
		return tree.River, nil
	default:
		return 0, errors.New("solver: board must have 3, 4 or 5 cards to start a postflop solve")
	}
}
