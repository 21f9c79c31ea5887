package leafstore

import "sort"

// SelectionResult is what Select returns: either an exact match, or a
// smallest-subset-with-sum-at-least-target fallback that needs a follow-up
// swap to produce an exact value.
type SelectionResult struct {
	Leaves        []Leaf
	ExactMatch    bool
	TotalValue    int64
	SwapRemainder int64 // set when !ExactMatch: the overshoot to swap away
}

// Select implements the deterministic selection algorithm from spec
// section 4.4: a descending-value greedy fit first, falling back to an
// ascending-value smallest-subset-with-sum-at-least-target accumulation
// when no exact combination exists.
func Select(available []Leaf, targetSat int64) (SelectionResult, bool) {
	if targetSat <= 0 {
		return SelectionResult{}, false
	}

	usable := make([]Leaf, 0, len(available))
	for _, l := range available {
		if l.Status == StatusAvailable {
			usable = append(usable, l)
		}
	}

	if res, ok := greedyDescendingFit(usable, targetSat); ok {
		return res, true
	}
	return smallestSubsetAtLeast(usable, targetSat)
}

func greedyDescendingFit(leaves []Leaf, target int64) (SelectionResult, bool) {
	sorted := append([]Leaf(nil), leaves...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ValueSat > sorted[j].ValueSat })

	var picked []Leaf
	var running int64
	for _, l := range sorted {
		if running == target {
			break
		}
		if running+l.ValueSat <= target {
			picked = append(picked, l)
			running += l.ValueSat
		}
	}
	if running == target && len(picked) > 0 {
		return SelectionResult{Leaves: picked, ExactMatch: true, TotalValue: running}, true
	}
	return SelectionResult{}, false
}

func smallestSubsetAtLeast(leaves []Leaf, target int64) (SelectionResult, bool) {
	sorted := append([]Leaf(nil), leaves...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ValueSat < sorted[j].ValueSat })

	var picked []Leaf
	var running int64
	for _, l := range sorted {
		if running >= target {
			break
		}
		picked = append(picked, l)
		running += l.ValueSat
	}
	if running < target {
		return SelectionResult{}, false
	}
	return SelectionResult{
		Leaves:        picked,
		ExactMatch:    false,
		TotalValue:    running,
		SwapRemainder: running - target,
	}, true
}
