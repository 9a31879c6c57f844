// Package rank selects one premium leader per expiration and orders the
// leaders into the final ranked result.
package rank

import (
	"sort"

	"callscan/pkg/model"
)

// Rank groups candidates by expiration date, picks the highest-premium
// contract from each group (first encountered wins ties) and sorts the
// leaders by stability score descending, with implied volatility descending
// as the tie-break. The sort is stable, so identical inputs always produce
// the identical ordered list.
func Rank(candidates []model.Candidate) []model.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string][]model.Candidate)
	for _, c := range candidates {
		if _, seen := groups[c.Expiration]; !seen {
			order = append(order, c.Expiration)
		}
		groups[c.Expiration] = append(groups[c.Expiration], c)
	}

	leaders := make([]model.Candidate, 0, len(order))
	for _, exp := range order {
		group := groups[exp]
		best := group[0]
		for _, c := range group[1:] {
			if c.Premium > best.Premium {
				best = c
			}
		}
		leaders = append(leaders, best)
	}

	sort.SliceStable(leaders, func(i, j int) bool {
		if leaders[i].Stability != leaders[j].Stability {
			return leaders[i].Stability > leaders[j].Stability
		}
		return leaders[i].IV > leaders[j].IV
	})

	return leaders
}

// SecondPick returns the best-ranked candidate outside the earliest
// expiration present in the list — the "week 2+" alternative to the top
// pick. ok is false when every entry shares one expiration.
func SecondPick(ranked []model.Candidate) (model.Candidate, bool) {
	if len(ranked) == 0 {
		return model.Candidate{}, false
	}

	earliest := ranked[0].Expiration
	for _, c := range ranked[1:] {
		if c.Expiration < earliest {
			earliest = c.Expiration
		}
	}

	for _, c := range ranked {
		if c.Expiration != earliest {
			return c, true
		}
	}
	return model.Candidate{}, false
}
