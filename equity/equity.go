// Package equity implements the range-vs-range equity kernel (C3): heads-up
// equity between two hole-card pairs on a partial or complete board, and its
// combo-weighted extension to ranges. Below a runout-count threshold it
// enumerates every remaining board exhaustively; above it, it falls back to
// Monte Carlo sampling. Precompute warms a cache across a worker pool before
// a solve's cooperative single-threaded loop begins.
package equity

import (
	"context"
	"math"
	"math/bits"
	"math/rand/v2"
	"runtime"

	lru "github.com/opencoff/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-gto/internal/randutil"
	"github.com/lox/holdem-gto/poker"
)

// EnumThreshold is the largest number of remaining-board combinations the
// kernel will enumerate exhaustively before switching to Monte Carlo.
const EnumThreshold = 1000

// Samples is the number of Monte Carlo runouts drawn once enumeration is too
// expensive.
const Samples = 1000

// Result reports a hand-vs-hand or hand-vs-range equity estimate alongside
// enough bookkeeping to derive a confidence interval when sampled.
type Result struct {
	Equity      float64
	Simulations int
	Exact       bool
}

// ConfidenceInterval returns the 95% binomial confidence interval around the
// estimate. Exact (enumerated) results have zero width.
func (r Result) ConfidenceInterval() (lower, upper float64) {
	if r.Exact || r.Simulations == 0 {
		return r.Equity, r.Equity
	}
	n := float64(r.Simulations)
	se := math.Sqrt((r.Equity * (1 - r.Equity)) / n)
	margin := 1.96 * se
	return math.Max(0, r.Equity-margin), math.Min(1, r.Equity+margin)
}

// cacheKey is the memoisation key: the three participant sets as bitmasks,
// so the order of cards within each set does not matter. holeA and holeB
// keep their positions, since the cached value is A's share.
type cacheKey struct {
	holeA, holeB, board uint64
}

// Cache memoises hand_vs_hand_equity results across a solve. It is explicit
// and passed by the caller rather than a package-level singleton, keeping
// tests hermetic and letting each solve bound its own memory footprint.
type Cache struct {
	lru *lru.Cache
}

// NewCache returns an equity cache bounded to the given number of entries.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New(size)
	return &Cache{lru: c}
}

func (c *Cache) get(key cacheKey) (float64, bool) {
	if c == nil || c.lru == nil {
		return 0, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		return 0, false
	}
	return v.(float64), true
}

func (c *Cache) put(key cacheKey, v float64) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(key, v)
}

func makeKey(holeA [2]poker.Card, holeB [2]poker.Card, board poker.Hand) cacheKey {
	return cacheKey{
		holeA: poker.CardsToBitmask(holeA[:]),
		holeB: poker.CardsToBitmask(holeB[:]),
		board: uint64(board),
	}
}

// HandVsHand computes A's equity share against B on the given (possibly
// partial) board. rng drives Monte Carlo sampling when enumeration would be
// too expensive; cache may be nil to disable memoisation.
func HandVsHand(holeA, holeB [2]poker.Card, board poker.Hand, rng *rand.Rand, cache *Cache) float64 {
	usedMask := uint64(holeA[0]) | uint64(holeA[1]) | uint64(holeB[0]) | uint64(holeB[1]) | uint64(board)
	if bits.OnesCount64(usedMask) != 4+board.CountCards() {
		return 0
	}

	key := makeKey(holeA, holeB, board)
	if v, ok := cache.get(key); ok {
		return v
	}

	n := board.CountCards()
	var result float64
	switch {
	case n == 5:
		result = poker.CompareHeadsUp(holeA, holeB, board)
	default:
		need := 5 - n
		remaining := remainingCards(usedMask)
		total := binomial(len(remaining), need)
		if total <= EnumThreshold {
			result = enumerateEquity(holeA, holeB, board, remaining, need)
		} else {
			result = sampleEquity(holeA, holeB, board, remaining, need, rng)
		}
	}

	cache.put(key, result)
	return result
}

// HandVsRange is the combo-weighted average of HandVsHand over every combo in
// opp that does not conflict with hole or the board.
func HandVsRange(hole [2]poker.Card, opp []poker.Combo, board poker.Hand, rng *rand.Rand, cache *Cache) float64 {
	holeMask := uint64(hole[0]) | uint64(hole[1])
	var weightedSum, totalWeight float64
	for _, combo := range opp {
		if combo.Mask()&(holeMask|uint64(board)) != 0 {
			continue
		}
		eq := HandVsHand(hole, [2]poker.Card{combo.Card1, combo.Card2}, board, rng, cache)
		weightedSum += eq * combo.Weight
		totalWeight += combo.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// Precompute warms cache with every OOP-vs-IP combo pair's equity, fanning
// the work out across up to 8 workers with errgroup. It runs once before a
// solve's first iteration and must not be called once CFR traversal has
// started: the single-threaded cooperative loop described for the solver
// assumes cache is only ever mutated from one goroutine at a time after
// this point.
func Precompute(ctx context.Context, oop, ip []poker.Combo, board poker.Hand, cache *Cache, seed uint64) error {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan [2]poker.Combo)

	for w := 0; w < workers; w++ {
		workerSeed := seed + uint64(w)*0x9e3779b97f4a7c15
		g.Go(func() error {
			rng := randutil.New(int64(workerSeed))
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case pair, ok := <-jobs:
					if !ok {
						return nil
					}
					holeA := [2]poker.Card{pair[0].Card1, pair[0].Card2}
					holeB := [2]poker.Card{pair[1].Card1, pair[1].Card2}
					HandVsHand(holeA, holeB, board, rng, cache)
				}
			}
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, a := range oop {
			for _, b := range ip {
				if a.Mask()&b.Mask() != 0 {
					continue
				}
				select {
				case jobs <- [2]poker.Combo{a, b}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		return nil
	})

	return g.Wait()
}

func remainingCards(usedMask uint64) []poker.Card {
	out := make([]poker.Card, 0, 52)
	for id := 0; id < 52; id++ {
		c := poker.IDToCard(id)
		if uint64(c)&usedMask == 0 {
			out = append(out, c)
		}
	}
	return out
}

func enumerateEquity(holeA, holeB [2]poker.Card, board poker.Hand, remaining []poker.Card, need int) float64 {
	var total float64
	var count int
	combo := make([]int, need)
	for i := range combo {
		combo[i] = i
	}
	for {
		runout := board
		for _, idx := range combo {
			runout.AddCard(remaining[idx])
		}
		total += poker.CompareHeadsUp(holeA, holeB, runout)
		count++
		if !nextCombination(combo, len(remaining)) {
			break
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// nextCombination advances combo (indices into a slice of length n) to the
// next lexicographic k-subset, returning false once exhausted.
func nextCombination(combo []int, n int) bool {
	k := len(combo)
	i := k - 1
	for i >= 0 && combo[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	combo[i]++
	for j := i + 1; j < k; j++ {
		combo[j] = combo[j-1] + 1
	}
	return true
}

func sampleEquity(holeA, holeB [2]poker.Card, board poker.Hand, remaining []poker.Card, need int, rng *rand.Rand) float64 {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	deck := poker.NewDeckFromCards(remaining, rng)

	var total float64
	for s := 0; s < Samples; s++ {
		deck.Reset()
		runout := board
		for _, c := range deck.Deal(need) {
			runout.AddCard(c)
		}
		total += poker.CompareHeadsUp(holeA, holeB, runout)
	}
	return total / float64(Samples)
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1
	for i := 0; i < k; i++ {
		result = result * (n - i) / (i + 1)
	}
	return result
}
