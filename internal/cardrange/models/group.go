package models

import "sort"

// GroupContiguous coalesces numbers into contiguous intervals for display.
// Deterministic by construction: sort ascending, start a new interval
// whenever the next number is not exactly one greater than the current end.
func GroupContiguous(numbers []int64) []Interval {
	if len(numbers) == 0 {
		return nil
	}
	sorted := make([]int64, len(numbers))
	copy(sorted, numbers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	groups := []Interval{{Start: sorted[0], End: sorted[0]}}
	for _, n := range sorted[1:] {
		last := &groups[len(groups)-1]
		if n == last.End {
			continue // duplicate
		}
		if n == last.End+1 {
			last.End = n
			continue
		}
		groups = append(groups, Interval{Start: n, End: n})
	}
	return groups
}
