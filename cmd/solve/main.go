package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	gtoconfig "github.com/lox/holdem-gto/config"
	"github.com/lox/holdem-gto/equity"
	"github.com/lox/holdem-gto/internal/randutil"
	"github.com/lox/holdem-gto/poker"
	"github.com/lox/holdem-gto/rangetext"
	"github.com/lox/holdem-gto/solver"
	"github.com/lox/holdem-gto/tree"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Solve  SolveCmd  `cmd:"" help:"solve a postflop or preflop scenario"`
	Equity EquityCmd `cmd:"" help:"compute hand-vs-hand or range-vs-range equity"`
}

// SolveCmd runs the Discounted CFR engine over an HCL scenario file,
// optionally overridden by flags, and prints the resulting strategy at the
// root node.
type SolveCmd struct {
	Config string `arg:"" optional:"" help:"path to an HCL solve configuration file"`

	Stack    float64 `help:"effective stack size, overrides the config file"`
	Pot      float64 `help:"starting pot size, overrides the config file"`
	OOPRange string  `name:"oop-range" help:"out-of-position range text, overrides the config file"`
	IPRange  string  `name:"ip-range" help:"in-position range text, overrides the config file"`
	Board    string  `help:"comma-separated board cards, e.g. As,Kd,7c; empty solves preflop"`

	MaxIterations int `name:"max-iterations" help:"overrides the config file's solver.max_iterations"`

	Watch bool `help:"render a live progress view while solving; the final summary is still printed"`
}

func (cmd *SolveCmd) Run(ctx context.Context, logger *log.Logger) error {
	path := cmd.Config
	if path == "" {
		path = "solve.hcl"
	}
	fileCfg, err := gtoconfig.Load(path)
	if err != nil {
		return err
	}

	if cmd.Stack > 0 {
		fileCfg.Scenario.Stack = cmd.Stack
	}
	if cmd.Pot > 0 {
		fileCfg.Scenario.Pot = cmd.Pot
	}
	if cmd.OOPRange != "" {
		fileCfg.Scenario.OOPRange = cmd.OOPRange
	}
	if cmd.IPRange != "" {
		fileCfg.Scenario.IPRange = cmd.IPRange
	}
	if cmd.Board != "" {
		fileCfg.Scenario.Board = strings.Split(cmd.Board, ",")
	}
	if cmd.MaxIterations > 0 {
		fileCfg.Solver.MaxIterations = cmd.MaxIterations
	}

	if err := fileCfg.Validate(); err != nil {
		return err
	}
	solverCfg, err := fileCfg.ToSolverConfig()
	if err != nil {
		return err
	}

	hooks := solver.Hooks{Logger: logger}

	var watcher *progressWatcher
	if cmd.Watch {
		watcher = newProgressWatcher(solverCfg.Solver.MaxIterations)
		hooks.Progress = watcher.onProgress
		go watcher.run()
	}

	logger.Info("starting solve",
		"stack", solverCfg.Stack,
		"pot", solverCfg.Pot,
		"board_cards", len(solverCfg.Board),
		"max_iterations", solverCfg.Solver.MaxIterations,
	)

	runSolve := solver.Solve
	if len(solverCfg.Board) == 0 {
		runSolve = solver.SolvePreflop
	}

	result, err := runSolve(ctx, solverCfg, hooks)
	if watcher != nil {
		watcher.finish(err)
	}
	if err != nil {
		return err
	}

	printSummary(result)
	return nil
}

func printSummary(result *solver.SolverResult) {
	fmt.Printf("status: %s, iterations: %d, exploitability: %.5f, elapsed: %dms\n",
		result.Status, result.Iterations, result.Exploitability, result.ElapsedMs)
	fmt.Printf("nodes visited (last iteration): %d, terminals: %d, max depth: %d\n",
		result.Stats.NodesVisited, result.Stats.TerminalNodes, result.Stats.MaxDepth)

	root, ok := result.Strategies["r"]
	if !ok {
		return
	}
	fmt.Printf("\nroot node (%s to act):\n", root.Player)
	for _, cs := range root.Combos {
		fmt.Printf("  %-6s fold=%.3f check=%.3f call=%.3f bet=%.3f raise=%.3f allin=%.3f\n",
			cs.Combo.Notation,
			cs.Average[tree.Fold], cs.Average[tree.Check], cs.Average[tree.Call],
			cs.Average[tree.Bet], cs.Average[tree.Raise], cs.Average[tree.AllIn])
	}
}

// EquityCmd is the standalone equity calculator, independent of the solver:
// useful for sanity-checking a scenario's stakes before committing a full
// CFR run to it.
type EquityCmd struct {
	HandA string `name:"hand-a" help:"first hand, e.g. AsKd" required:""`
	HandB string `name:"hand-b" required:"" xor:"opponent" help:"second hand, e.g. QhQc"`
	Range string `name:"range-b" xor:"opponent" help:"second hand as a range text instead of a fixed hand"`
	Board string `help:"comma-separated board cards, e.g. As,Kd,7c; empty evaluates preflop"`
	Seed  int64  `help:"random seed for Monte Carlo sampling; 0 uses a time seed"`
}

func (cmd *EquityCmd) Run(logger *log.Logger) error {
	holeA, err := parseHole(cmd.HandA)
	if err != nil {
		return fmt.Errorf("hand-a: %w", err)
	}
	board, err := parseBoard(cmd.Board)
	if err != nil {
		return err
	}

	seed := cmd.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := randutil.New(seed)
	cache := equity.NewCache(4096)

	if cmd.Range != "" {
		opp, err := rangetext.Parse(cmd.Range)
		if err != nil {
			return fmt.Errorf("range-b: %w", err)
		}
		combos, err := opp.Combos(poker.CardsToBitmask(board) | uint64(holeA[0]) | uint64(holeA[1]))
		if err != nil {
			return err
		}
		eq := equity.HandVsRange(holeA, combos, poker.NewHand(board...), rng, cache)
		fmt.Printf("%.4f\n", eq)
		return nil
	}

	holeB, err := parseHole(cmd.HandB)
	if err != nil {
		return fmt.Errorf("hand-b: %w", err)
	}
	eq := equity.HandVsHand(holeA, holeB, poker.NewHand(board...), rng, cache)
	logger.Debug("computed hand-vs-hand equity", "hand_a", cmd.HandA, "hand_b", cmd.HandB)
	fmt.Printf("%.4f\n", eq)
	return nil
}

func parseHole(s string) ([2]poker.Card, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return [2]poker.Card{}, fmt.Errorf("expected two cards like AsKd, got %q", s)
	}
	c1, err := poker.ParseCard(s[0:2])
	if err != nil {
		return [2]poker.Card{}, err
	}
	c2, err := poker.ParseCard(s[2:4])
	if err != nil {
		return [2]poker.Card{}, err
	}
	return [2]poker.Card{c1, c2}, nil
}

func parseBoard(s string) ([]poker.Card, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]poker.Card, len(parts))
	for i, p := range parts {
		card, err := poker.ParseCard(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("board[%d]: %w", i, err)
		}
		out[i] = card
	}
	return out, nil
}

func main() {
	ktx := kong.Parse(&cli,
		kong.Name("solve"),
		kong.Description("No-limit hold'em postflop/preflop GTO solver core"),
		kong.UsageOnError(),
	)

	level := log.InfoLevel
	if cli.Debug {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})

	var err error
	switch {
	case strings.HasPrefix(ktx.Command(), "solve"):
		err = cli.Solve.Run(context.Background(), logger)
	case strings.HasPrefix(ktx.Command(), "equity"):
		err = cli.Equity.Run(logger)
	default:
		logger.Fatal("unknown command", "command", ktx.Command())
	}
	if err != nil {
		logger.Fatal("command failed", "err", err)
	}
}
