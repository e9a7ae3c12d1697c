package solver

import (
	"context"

	"github.com/lox/holdem-gto/tree"
)

// SolvePreflop runs the same Discounted CFR engine over a boardless
// single-street tree: it reuses tree.Build with tree.River as the start
// street, which resolves check-check and bet/raise-call straight to a
// showdown rather than opening a further street, giving exactly one
// preflop betting round. Showdown equity comes from the same equity kernel
// used postflop, which falls back to Monte Carlo runouts automatically once
// the number of boards to complete exceeds its enumeration threshold — there
// is no separate preflop hand-strength heuristic.
func SolvePreflop(ctx context.Context, cfg Config, hooks Hooks) (*SolverResult, error) {
	if len(cfg.Board) != 0 {
		return nil, &BadBoardError{Reason: "preflop solve takes no board cards"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return solveInternal(ctx, cfg, tree.River, hooks)
}
