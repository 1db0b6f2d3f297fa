package cachestore

import "sort"

// mergeIntervals sorts and merges overlapping or touching intervals into
// the minimal disjoint set that covers the same blocks. Used by
// recordInterval to keep the stored set maximal after every insert.
func mergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FromBlock < sorted[j].FromBlock })

	merged := []Interval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.FromBlock > last.ToBlock+1 {
			merged = append(merged, cur)
			continue
		}
		if cur.ToBlock > last.ToBlock {
			last.ToBlock = cur.ToBlock
		}
	}
	return merged
}

// requiredRanges computes [from,to] \ covered by an ordered sweep over the
// (already-merged, disjoint) covered set, returning the minimal set of
// ranges still missing from the cache.
func requiredRanges(from, to uint64, covered []Interval) []Interval {
	if from > to {
		return nil
	}
	if len(covered) == 0 {
		return []Interval{{FromBlock: from, ToBlock: to}}
	}

	sorted := mergeIntervals(covered)

	var missing []Interval
	cursor := from

	for _, c := range sorted {
		if c.ToBlock < cursor {
			continue
		}
		if c.FromBlock > to {
			break
		}
		if c.FromBlock > cursor {
			missing = append(missing, Interval{FromBlock: cursor, ToBlock: min(c.FromBlock-1, to)})
		}
		if c.ToBlock >= cursor {
			cursor = c.ToBlock + 1
		}
		if cursor > to {
			break
		}
	}

	if cursor <= to {
		missing = append(missing, Interval{FromBlock: cursor, ToBlock: to})
	}

	return missing
}

// isCovered reports whether [from,to] is entirely contained in one of the
// covered intervals (not merely spanned piecewise, since callers treat a
// single matching interval as sufficient and otherwise fall back to
// requiredRanges for the precise gap set).
func isCovered(from, to uint64, covered []Interval) bool {
	for _, c := range covered {
		if c.FromBlock <= from && c.ToBlock >= to {
			return true
		}
	}
	return false
}
