// Package solver implements the Discounted CFR engine (C5): it builds a
// betting tree via package tree, materialises both players' combo lists via
// package rangetext and poker, and iterates the CFR recurrence over them,
// calling into package equity at every showdown terminal.
package solver

import (
	"context"
	"io"
	"math"
	"math/bits"
	rand "math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdem-gto/equity"
	"github.com/lox/holdem-gto/internal/randutil"
	"github.com/lox/holdem-gto/poker"
	"github.com/lox/holdem-gto/tree"
)

// Status reports why a solve stopped.
type Status string

const (
	StatusMaxIterations Status = "max_iterations"
	StatusConverged     Status = "converged"
	StatusCancelled     Status = "cancelled"
)

// Progress is emitted from the solving goroutine every 25 iterations, and
// once more when the solve stops to carry its final status, so two reports
// can fall fewer than 25 iterations apart; the callback must not itself
// block indefinitely.
type Progress struct {
	Iteration      uint32
	MaxIterations  uint32
	Exploitability float64
	ElapsedMs      int64
	Status         Status
}

// Hooks are the solve's optional collaborators: a progress sink, a
// cooperative cancellation flag, a cooperative yield point, the source of
// randomness equity sampling draws on, the clock ElapsedMs is measured
// against, and a structured logger. All are nil-safe; omitting them runs the
// solve silently, uncancellably, with a time-seeded RNG, the real wall
// clock, and a logger that discards everything.
type Hooks struct {
	Progress func(Progress)
	Cancel   *atomic.Bool
	YieldNow func()
	RNG      *rand.Rand
	Clock    quartz.Clock
	Logger   *log.Logger
}

// ComboStrategy is one combo's average strategy, already collapsed onto the
// six-entry canonical action vocabulary.
type ComboStrategy struct {
	Combo   poker.Combo
	Average [6]float64
}

// NodeStrategy is the extracted result at one action node: which player
// acted there, and each of that player's combos' average strategies.
type NodeStrategy struct {
	Player tree.Player
	Combos []ComboStrategy
}

// TraversalStats instruments the last CFR iteration run, useful for
// diagnosing an abnormally shallow or deep tree.
type TraversalStats struct {
	NodesVisited  int64
	TerminalNodes int64
	MaxDepth      int
	IterationTime time.Duration
}

// SolverResult is the immutable output of a solve.
type SolverResult struct {
	Iterations     uint32
	Exploitability float64
	ElapsedMs      int64
	Status         Status
	Strategies     map[string]NodeStrategy
	Stats          TraversalStats
}

// Solve runs the Discounted CFR engine to completion, cancellation, or
// convergence, whichever comes first. cfg.Board must have 3, 4 or 5 cards;
// use SolvePreflop for the boardless case.
func Solve(ctx context.Context, cfg Config, hooks Hooks) (*SolverResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	street, err := startStreetFor(len(cfg.Board))
	if err != nil {
		return nil, &BadBoardError{Reason: err.Error()}
	}
	return solveInternal(ctx, cfg, street, hooks)
}

func solveInternal(ctx context.Context, cfg Config, street tree.Street, hooks Hooks) (*SolverResult, error) {
	board := poker.NewHand(cfg.Board...)
	blockedMask := uint64(board)

	oopCombos, err := cfg.OOPRange.Combos(blockedMask)
	if err != nil {
		return nil, err
	}
	if len(oopCombos) == 0 {
		return nil, &EmptyRangeError{Player: "oop"}
	}
	ipCombos, err := cfg.IPRange.Combos(blockedMask)
	if err != nil {
		return nil, err
	}
	if len(ipCombos) == 0 {
		return nil, &EmptyRangeError{Player: "ip"}
	}

	gameTree, err := tree.Build(tree.Config{
		StartStreet:  street,
		InitialPot:   roundToInt(cfg.Pot),
		InitialStack: roundToInt(cfg.Stack),
	})
	if err != nil {
		return nil, err
	}

	isoEquivalents := 1
	if cfg.Solver.UseSuitIsomorphism {
		isoEquivalents = isoEquivalentsFor(board)
	}

	tables := make([]*nodeTable, len(gameTree.Nodes))
	for i := range gameTree.Nodes {
		n := &gameTree.Nodes[i]
		if n.Kind != tree.NodeAction {
			continue
		}
		comboCount := len(oopCombos)
		if n.ToAct == tree.IP {
			comboCount = len(ipCombos)
		}
		tables[i] = newNodeTable(comboCount, len(n.Actions))
	}

	rng := hooks.RNG
	if rng == nil {
		rng = randutil.New(time.Now().UnixNano())
	}
	clock := hooks.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	logger := hooks.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cache := equity.NewCache(cfg.Solver.EquityCacheSize)
	logger.Debug("warming equity cache", "oop_combos", len(oopCombos), "ip_combos", len(ipCombos))
	if err := equity.Precompute(ctx, oopCombos, ipCombos, board, cache, rng.Uint64()); err != nil {
		logger.Warn("equity precompute did not finish", "err", err)
	}

	st := &solveState{
		tree:           gameTree,
		tables:         tables,
		board:          board,
		rng:            rng,
		cache:          cache,
		useCFRPlus:     cfg.Solver.UseCFRPlus,
		raisesExpanded: cfg.Solver.AdaptiveRaiseVisits == 0,
	}

	start := clock.Now()
	status := StatusMaxIterations
	var lastExploitability float64
	var iter uint32

	var lastIterationTime time.Duration

	for iter = 1; iter <= cfg.Solver.MaxIterations; iter++ {
		iterStart := clock.Now()
		st.nodesVisited, st.terminalNodes, st.maxDepth = 0, 0, 0
		alphaCoef, betaCoef, gammaCoef := discountCoefficients(int(iter), cfg.Solver)
		st.raisesExpanded = cfg.Solver.AdaptiveRaiseVisits == 0 || iter > cfg.Solver.AdaptiveRaiseVisits

		warmupActive := cfg.Solver.WarmupSampleRate < 1 && iter <= cfg.Solver.WarmupIterations
		compensation := 1.0
		if warmupActive && cfg.Solver.WarmupSampleRate > 0 {
			compensation = 1.0 / cfg.Solver.WarmupSampleRate
		}

		for oi, oopCombo := range oopCombos {
			oopHole := [2]poker.Card{oopCombo.Card1, oopCombo.Card2}
			for ii, ipCombo := range ipCombos {
				if oopCombo.Mask()&ipCombo.Mask() != 0 {
					continue
				}
				if warmupActive && rng.Float64() > cfg.Solver.WarmupSampleRate {
					continue
				}
				ipHole := [2]poker.Card{ipCombo.Card1, ipCombo.Card2}
				weight := oopCombo.Weight * ipCombo.Weight * compensation * float64(isoEquivalents)
				if weight <= 0 {
					continue
				}

				st.traverse(0, tree.OOP, oopHole, ipHole, oi, ii, weight, weight, alphaCoef, betaCoef, gammaCoef, float64(iter), 0)
				st.traverse(0, tree.IP, oopHole, ipHole, oi, ii, weight, weight, alphaCoef, betaCoef, gammaCoef, float64(iter), 0)
			}
		}
		lastIterationTime = clock.Now().Sub(iterStart)

		if iter%25 == 0 {
			lastExploitability = st.exploitability()
			if hooks.Progress != nil {
				hooks.Progress(Progress{
					Iteration:      iter,
					MaxIterations:  cfg.Solver.MaxIterations,
					Exploitability: lastExploitability,
					ElapsedMs:      clock.Now().Sub(start).Milliseconds(),
					Status:         StatusMaxIterations,
				})
			}

			cancelled := ctx.Err() != nil || (hooks.Cancel != nil && hooks.Cancel.Load())
			if cancelled {
				status = StatusCancelled
				break
			}
			if lastExploitability <= cfg.Solver.ConvergenceThreshold {
				status = StatusConverged
				break
			}
		}

		if iter%50 == 0 && hooks.YieldNow != nil {
			hooks.YieldNow()
		}
	}

	if iter > cfg.Solver.MaxIterations {
		iter = cfg.Solver.MaxIterations
		lastExploitability = st.exploitability()
	}

	result := &SolverResult{
		Iterations:     iter,
		Exploitability: lastExploitability,
		ElapsedMs:      clock.Now().Sub(start).Milliseconds(),
		Status:         status,
		Strategies:     st.extractStrategies(gameTree, oopCombos, ipCombos),
		Stats: TraversalStats{
			NodesVisited:  st.nodesVisited,
			TerminalNodes: st.terminalNodes,
			MaxDepth:      st.maxDepth,
			IterationTime: lastIterationTime,
		},
	}

	if hooks.Progress != nil {
		hooks.Progress(Progress{
			Iteration:      result.Iterations,
			MaxIterations:  cfg.Solver.MaxIterations,
			Exploitability: result.Exploitability,
			ElapsedMs:      result.ElapsedMs,
			Status:         status,
		})
	}

	logger.Info("solve finished",
		"status", status,
		"iterations", result.Iterations,
		"exploitability", result.Exploitability,
		"elapsed_ms", result.ElapsedMs,
	)

	return result, nil
}

// solveState holds everything a single solve's traversal needs, kept off the
// Config so repeated solves never share mutable state.
type solveState struct {
	tree           *tree.Tree
	tables         []*nodeTable
	board          poker.Hand
	rng            *rand.Rand
	cache          *equity.Cache
	useCFRPlus     bool
	raisesExpanded bool

	// Instrumentation for the current iteration only, reset at the start
	// of each one and copied into SolverResult.Stats after the last.
	nodesVisited  int64
	terminalNodes int64
	maxDepth      int
}

// traverse recurses from nodeIdx to a terminal, updating the acting player's
// regret entries when that player is the traverser and its
// cumulative-strategy entries on every visit, and returns the traverser's
// expected payoff from this subtree.
func (s *solveState) traverse(
	nodeIdx int,
	traverser tree.Player,
	oopHole, ipHole [2]poker.Card,
	oopID, ipID int,
	reachOOP, reachIP float64,
	alphaCoef, betaCoef, gammaCoef float64,
	iter float64,
	depth int,
) float64 {
	s.nodesVisited++
	if depth > s.maxDepth {
		s.maxDepth = depth
	}
	node := &s.tree.Nodes[nodeIdx]
	if node.Kind == tree.NodeTerminal {
		s.terminalNodes++
		return s.terminalPayoff(node, traverser, oopHole, ipHole)
	}

	actingPlayer := node.ToAct
	comboID := oopID
	if actingPlayer == tree.IP {
		comboID = ipID
	}

	table := s.tables[nodeIdx]
	regret, strategySum := table.slice(comboID)
	strategy := strategyForActions(regret, node.Actions, s.raisesExpanded)

	utils := make([]float64, len(node.Actions))
	v := 0.0
	for i, act := range node.Actions {
		nextReachOOP, nextReachIP := reachOOP, reachIP
		if actingPlayer == tree.OOP {
			nextReachOOP *= strategy[i]
		} else {
			nextReachIP *= strategy[i]
		}
		u := s.traverse(act.Child, traverser, oopHole, ipHole, oopID, ipID, nextReachOOP, nextReachIP, alphaCoef, betaCoef, gammaCoef, iter, depth+1)
		utils[i] = u
		v += strategy[i] * u
	}

	if actingPlayer == traverser {
		reachOpp := reachIP
		if actingPlayer == tree.IP {
			reachOpp = reachOOP
		}
		for i := range regret {
			if !s.raisesExpanded && node.Actions[i].Kind == tree.Raise {
				continue
			}
			delta := float64(regret[i]) + (utils[i]-v)*reachOpp
			var updated float64
			if s.useCFRPlus {
				// CFR+ accumulates regret undiscounted and floors it at
				// zero, rather than applying the alpha/beta discount
				// schedule.
				updated = delta
				if updated < 0 {
					updated = 0
				}
			} else {
				updated = discount(delta, alphaCoef, betaCoef)
			}
			regret[i] = float32(updated)
		}
	}

	reachP := reachOOP
	if actingPlayer == tree.IP {
		reachP = reachIP
	}
	for i := range strategySum {
		if s.useCFRPlus {
			// CFR+ weights each iteration's contribution to the average
			// strategy by the iteration number instead of decaying the
			// running sum with gammaCoef.
			strategySum[i] = float32(float64(strategySum[i]) + iter*reachP*strategy[i])
		} else {
			strategySum[i] = float32(gammaCoef*float64(strategySum[i]) + reachP*strategy[i])
		}
	}

	return v
}

func (s *solveState) terminalPayoff(node *tree.Node, traverser tree.Player, oopHole, ipHole [2]poker.Card) float64 {
	if node.TerminalKind == tree.TerminalFold {
		if node.FoldWinner == traverser {
			return float64(node.Pot)
		}
		return 0
	}
	oopEquity := equity.HandVsHand(oopHole, ipHole, s.board, s.rng, s.cache)
	if traverser == tree.OOP {
		return float64(node.Pot) * oopEquity
	}
	return float64(node.Pot) * (1 - oopEquity)
}

// exploitability is the mean absolute regret across every stored regret
// entry, the surrogate the specification sanctions in place of a true
// best-response computation.
func (s *solveState) exploitability() float64 {
	var sum float64
	var count int
	for _, t := range s.tables {
		if t == nil {
			continue
		}
		for _, r := range t.regret {
			sum += math.Abs(float64(r))
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (s *solveState) extractStrategies(t *tree.Tree, oopCombos, ipCombos []poker.Combo) map[string]NodeStrategy {
	out := make(map[string]NodeStrategy, len(t.Nodes))
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.Kind != tree.NodeAction {
			continue
		}
		combos := oopCombos
		if n.ToAct == tree.IP {
			combos = ipCombos
		}
		table := s.tables[i]
		comboStrats := make([]ComboStrategy, len(combos))
		for cid, combo := range combos {
			_, strategySum := table.slice(cid)
			avg := averageStrategy(strategySum)
			comboStrats[cid] = ComboStrategy{Combo: combo, Average: canonicalVector(n.Actions, avg)}
		}
		out[n.ID] = NodeStrategy{Player: n.ToAct, Combos: comboStrats}
	}
	return out
}

// canonicalVector collapses a node's raw per-action probabilities onto the
// six-entry canonical vocabulary, summing every Bet and Raise sizing into a
// single bet/raise bucket.
func canonicalVector(actions []tree.Action, probs []float64) [6]float64 {
	var out [6]float64
	for i, a := range actions {
		out[a.Kind] += probs[i]
	}
	return out
}

// isoEquivalentsFor computes the suit-isomorphism weight multiplier E: the
// product, over groups of suits holding an equal number of board cards, of
// the group size's factorial. Isomorphism does not apply once any suit has
// three or more board cards, since flush potential breaks the symmetry.
func isoEquivalentsFor(board poker.Hand) int {
	var counts [4]int
	for suit := poker.Suit(0); suit < 4; suit++ {
		counts[suit] = bits.OnesCount16(board.GetSuitMask(suit))
		if counts[suit] >= 3 {
			return 1
		}
	}
	groupSizes := make(map[int]int, 4)
	for _, c := range counts {
		groupSizes[c]++
	}
	e := 1
	for _, size := range groupSizes {
		e *= factorial(size)
	}
	return e
}

func factorial(n int) int {
	r := 1
	for i := 2; i <= n; i++ {
		r *= i
	}
	return r
}

func roundToInt(v float64) int {
	return int(math.Round(v))
}
