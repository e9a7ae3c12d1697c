package solver

import (
	"math"

	"github.com/lox/holdem-gto/tree"
)

// nodeTable holds one action node's regret and cumulative-strategy arrays,
// laid out as a flat comboCount*actionCount slice rather than the teacher's
// string-keyed per-infoset map: the combo id for the player who acts at this
// node is known once per solve, so a plain index replaces the hashmap probe
// on every traversal step.
type nodeTable struct {
	actionCount int
	regret      []float32
	strategySum []float32
}

func newNodeTable(comboCount, actionCount int) *nodeTable {
	return &nodeTable{
		actionCount: actionCount,
		regret:      make([]float32, comboCount*actionCount),
		strategySum: make([]float32, comboCount*actionCount),
	}
}

func (t *nodeTable) slice(comboID int) ([]float32, []float32) {
	start := comboID * t.actionCount
	end := start + t.actionCount
	return t.regret[start:end], t.strategySum[start:end]
}

// strategyForActions is the regret-matching projection onto the simplex,
// giving Raise actions zero probability unless raisesExpanded is true: this
// approximates the teacher's per-node visit-gated raise expansion at the
// coarser granularity of a global iteration count, since every reachable
// node is visited every iteration under full traversal.
func strategyForActions(regret []float32, actions []tree.Action, raisesExpanded bool) []float64 {
	n := len(regret)
	out := make([]float64, n)
	allowed := func(i int) bool { return raisesExpanded || actions[i].Kind != tree.Raise }

	var total float64
	for i, r := range regret {
		if !allowed(i) {
			continue
		}
		if r > 0 {
			out[i] = float64(r)
			total += float64(r)
		}
	}
	if total <= 0 {
		var allowedCount int
		for i := range out {
			if allowed(i) {
				allowedCount++
			}
		}
		if allowedCount == 0 {
			allowedCount = n
		}
		v := 1.0 / float64(allowedCount)
		for i := range out {
			if allowed(i) {
				out[i] = v
			}
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// averageStrategy normalises a cumulative-strategy slice onto the simplex,
// falling back to uniform when nothing has accumulated yet.
func averageStrategy(strategySum []float32) []float64 {
	n := len(strategySum)
	out := make([]float64, n)
	var total float64
	for _, s := range strategySum {
		total += float64(s)
	}
	if total <= 0 {
		v := 1.0 / float64(n)
		for i := range out {
			out[i] = v
		}
		return out
	}
	for i, s := range strategySum {
		out[i] = float64(s) / total
	}
	return out
}

func discount(x, alphaCoef, betaCoef float64) float64 {
	if x > 0 {
		return x * alphaCoef
	}
	return x * betaCoef
}

// discountCoefficients computes the three Discounted CFR coefficients for
// iteration t (1-indexed) given the solve's alpha/beta/gamma parameters.
func discountCoefficients(t int, p SolverParams) (alphaCoef, betaCoef, gammaCoef float64) {
	tf := float64(t)
	ta := pow(tf, p.Alpha)
	alphaCoef = ta / (1 + ta)
	betaCoef = p.Beta
	gammaCoef = pow(tf/(tf+1), p.Gamma)
	return
}

func pow(base, exp float64) float64 {
	// Alpha and gamma default to 1.5 and 2.0 but are user-tunable, so a
	// real power function is needed rather than a repeated-squaring trick.
	return math.Pow(base, exp)
}
