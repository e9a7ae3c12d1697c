// Package rangetext parses and formats the text range syntax the solver's
// collaborators use to hand it a Range: comma-separated notations or
// same-suitedness dash spans, each with an optional ":weight" suffix.
package rangetext

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lox/holdem-gto/poker"
)

// Range maps each of the 169 canonical notations to a weight in [0,1].
// Notations absent from the map carry an implicit weight of 0.
type Range map[poker.Notation]float64

// Parse parses a range string such as "AA,KK,AKs,AQo:0.5,66-22" into a Range.
// Unknown notations are ignored; out-of-range weights clamp to [0,1].
func Parse(s string) (Range, error) {
	r := make(Range)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := addPart(r, part); err != nil {
			var badNotation *poker.ErrBadNotation
			if errors.As(err, &badNotation) {
				continue
			}
			return nil, fmt.Errorf("rangetext: invalid part %q: %w", part, err)
		}
	}
	return r, nil
}

func addPart(r Range, part string) error {
	body, weight, err := splitWeight(part)
	if err != nil {
		return err
	}

	if dashIdx := strings.Index(body, "-"); dashIdx >= 0 {
		return addDashSpan(r, body, weight)
	}

	n, err := poker.ParseNotation(body)
	if err != nil {
		return err
	}
	r[n] = weight
	return nil
}

func splitWeight(part string) (body string, weight float64, err error) {
	weight = 1.0
	if colon := strings.LastIndex(part, ":"); colon >= 0 {
		body = part[:colon]
		w, perr := strconv.ParseFloat(part[colon+1:], 64)
		if perr != nil {
			return "", 0, fmt.Errorf("bad weight: %w", perr)
		}
		weight = clamp01(w)
	} else {
		body = part
	}
	return body, weight, nil
}

// addDashSpan expands a same-shape span like "66-22" or "A5s-A2s" into its
// constituent notations, all sharing the part's weight.
func addDashSpan(r Range, body string, weight float64) error {
	halves := strings.SplitN(body, "-", 2)
	if len(halves) != 2 {
		return fmt.Errorf("bad span %q", body)
	}
	lo, err := poker.ParseNotation(strings.TrimSpace(halves[0]))
	if err != nil {
		return err
	}
	hi, err := poker.ParseNotation(strings.TrimSpace(halves[1]))
	if err != nil {
		return err
	}

	loR1, loR2, loSuited, err := poker.DecodeNotation(string(lo))
	if err != nil {
		return err
	}
	hiR1, hiR2, hiSuited, err := poker.DecodeNotation(string(hi))
	if err != nil {
		return err
	}

	// Pocket pair span, e.g. "66-22": both endpoints are pairs, the rank
	// itself varies.
	if loR1 == loR2 && hiR1 == hiR2 {
		from, to := loR1, hiR1
		if from > to {
			from, to = to, from
		}
		for rk := from; rk <= to; rk++ {
			n, err := poker.NotationFor(rk, rk, false)
			if err != nil {
				return err
			}
			r[n] = weight
		}
		return nil
	}

	if loR1 != hiR1 || loSuited != hiSuited {
		return fmt.Errorf("span endpoints %q-%q do not share a high card and shape", lo, hi)
	}

	from, to := loR2, hiR2
	if from > to {
		from, to = to, from
	}
	for rk := from; rk <= to; rk++ {
		n, err := poker.NotationFor(loR1, rk, loSuited)
		if err != nil {
			return err
		}
		r[n] = weight
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// String formats r as a comma-separated range string in a fixed notation
// order, omitting ":weight" for entries weighted exactly 1.
func (r Range) String() string {
	notations := make([]poker.Notation, 0, len(r))
	for n, w := range r {
		if w > 0 {
			notations = append(notations, n)
		}
	}
	sort.Slice(notations, func(i, j int) bool { return notations[i] < notations[j] })

	parts := make([]string, 0, len(notations))
	for _, n := range notations {
		w := r[n]
		if w == 1 {
			parts = append(parts, string(n))
		} else {
			parts = append(parts, fmt.Sprintf("%s:%s", n, strconv.FormatFloat(w, 'g', -1, 64)))
		}
	}
	return strings.Join(parts, ",")
}

// Combos returns every unblocked combo across the range's weighted
// notations, each combo's weight multiplied by its notation's range weight.
// Notations are visited in the same fixed order String uses.
func (r Range) Combos(blockedMask uint64) ([]poker.Combo, error) {
	notations := make([]poker.Notation, 0, len(r))
	for n, w := range r {
		if w > 0 {
			notations = append(notations, n)
		}
	}
	sort.Slice(notations, func(i, j int) bool { return notations[i] < notations[j] })

	var out []poker.Combo
	for _, n := range notations {
		combos, err := poker.HandCombos(n, blockedMask)
		if err != nil {
			return nil, err
		}
		for _, c := range combos {
			c.Weight *= r[n]
			out = append(out, c)
		}
	}
	return out, nil
}
