package daily

import (
	"sort"

	"ctpdaily/internal/product"
	"ctpdaily/internal/timeutil"
)

// prune keeps every orbital context dated on the same day as day, the last
// keepPrevious contexts from earlier days and the first keepNext from later
// days. The result is in chronological order.
func prune(contexts []product.OrbitalContext, day timeutil.Interval, keepPrevious, keepNext int) []product.OrbitalContext {
	sorted := make([]product.OrbitalContext, len(contexts))
	copy(sorted, contexts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Granule.Before(sorted[j].Granule)
	})

	sorted = dropPreviousDayExceptLast(sorted, day, keepPrevious)
	return dropNextDayExceptFirst(sorted, day, keepNext)
}

// dropPreviousDayExceptLast drops contexts dated before day, except the last
// keep of them.
func dropPreviousDayExceptLast(contexts []product.OrbitalContext, day timeutil.Interval, keep int) []product.OrbitalContext {
	var before []int
	for i, oc := range contexts {
		if oc.Granule.Before(day.Start) {
			before = append(before, i)
		}
	}
	if len(before) <= keep {
		return contexts
	}
	drop := make(map[int]bool, len(before)-keep)
	for _, i := range before[:len(before)-keep] {
		drop[i] = true
	}
	return without(contexts, drop)
}

// dropNextDayExceptFirst drops contexts dated after day, except the first
// keep of them.
func dropNextDayExceptFirst(contexts []product.OrbitalContext, day timeutil.Interval, keep int) []product.OrbitalContext {
	var after []int
	for i, oc := range contexts {
		if !oc.Granule.Before(day.End) {
			after = append(after, i)
		}
	}
	if len(after) <= keep {
		return contexts
	}
	drop := make(map[int]bool, len(after)-keep)
	for _, i := range after[keep:] {
		drop[i] = true
	}
	return without(contexts, drop)
}

func without(contexts []product.OrbitalContext, drop map[int]bool) []product.OrbitalContext {
	out := make([]product.OrbitalContext, 0, len(contexts)-len(drop))
	for i, oc := range contexts {
		if !drop[i] {
			out = append(out, oc)
		}
	}
	return out
}

func countSameDay(contexts []product.OrbitalContext, day timeutil.Interval) int {
	n := 0
	for _, oc := range contexts {
		if !oc.Granule.Before(day.Start) && oc.Granule.Before(day.End) {
			n++
		}
	}
	return n
}
