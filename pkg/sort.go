package salvator

import (
	"cmp"

	"golang.org/x/exp/slices"
)

// SortDescending returns a copy of hits ordered by corrected energy, highest
// first. Hits with equal energy keep their input order.
func SortDescending(hits []Hit) []Hit {
	sorted := slices.Clone(hits)
	slices.SortStableFunc(sorted, func(a, b Hit) int {
		return cmp.Compare(b.DCEnergy, a.DCEnergy)
	})
	return sorted
}

// SortAscending returns a copy of hits ordered by corrected energy, lowest
// first. Hits with equal energy keep their input order.
func SortAscending(hits []Hit) []Hit {
	sorted := slices.Clone(hits)
	slices.SortStableFunc(sorted, func(a, b Hit) int {
		return cmp.Compare(a.DCEnergy, b.DCEnergy)
	})
	return sorted
}
