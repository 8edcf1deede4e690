package search

import (
	"sort"

	"github.com/paynt-synth/synthcore/pkg/family"
	"github.com/paynt-synth/synthcore/pkg/spec"
)

// combinedHoleScores takes the per-hole inconsistency scores of every
// property's scheduler analysis and keeps, for each hole, the maximum score
// reported by any property -- the hole most worth splitting on is the one
// at least one property cares most about.
func combinedHoleScores(results []spec.MDPPropertyResult) map[int]float64 {
	scores := make(map[int]float64)
	for _, r := range results {
		for h, s := range r.Analysis.HoleScores {
			if cur, ok := scores[h]; !ok || s > cur {
				scores[h] = s
			}
		}
	}
	return scores
}

// combinedUsedOptions unions the options any property's scheduler selection
// used for hole, across every property -- two properties disagreeing on a
// hole's single resolved option is exactly what shows up here as two used
// options, even though each property's own selection is individually
// consistent.
func combinedUsedOptions(results []spec.MDPPropertyResult, hole int) []int {
	set := make(map[int]bool)
	for _, r := range results {
		for _, o := range r.Analysis.Selection[hole] {
			set[o] = true
		}
	}
	out := make([]int, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	sort.Ints(out)
	return out
}

// chooseSplitter picks the scored hole with the highest score, breaking
// ties by lowest index (spec.md §4.4 step 5). Reports ok=false if no hole
// has a recorded score.
func chooseSplitter(scores map[int]float64) (hole int, ok bool) {
	best := -1
	var bestScore float64
	for h, s := range scores {
		if best == -1 || s > bestScore || (s == bestScore && h < best) {
			best, bestScore = h, s
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// splitOptions partitions current into the groups a splitter with the
// given used options produces: if more than one option is currently used,
// one singleton "core" group per used option with the remaining (unused)
// options distributed round-robin across the cores; otherwise the option
// list is simply halved.
func splitOptions(current, used []int) [][]int {
	if len(used) > 1 {
		usedSet := make(map[int]bool, len(used))
		for _, o := range used {
			usedSet[o] = true
		}
		groups := make([][]int, len(used))
		for i, o := range used {
			groups[i] = []int{o}
		}
		i := 0
		for _, o := range current {
			if usedSet[o] {
				continue
			}
			groups[i%len(groups)] = append(groups[i%len(groups)], o)
			i++
		}
		return groups
	}

	mid := len(current) / 2
	if mid == 0 {
		mid = 1
	}
	first := append([]int{}, current[:mid]...)
	second := append([]int{}, current[mid:]...)
	if len(second) == 0 {
		return [][]int{first}
	}
	return [][]int{first, second}
}

// splitFamily partitions f on holeIndex into len(groups) children, each
// inheriting f's parent-info snapshot. analysisHints must already be
// generalized onto the quotient's global state space.
func splitFamily(f *family.DesignSpace, holeIndex int, groups [][]int, analysisHints map[int]family.Hint) []*family.DesignSpace {
	f.Splitter = holeIndex
	parent := f.CollectParentInfo(analysisHints)
	children := make([]*family.DesignSpace, len(groups))
	for i, options := range groups {
		holes := f.Holes.Subholes(holeIndex, options)
		children[i] = family.NewChildDesignSpace(holes, parent)
	}
	return children
}

// collapseSimpleHoles resolves every simple hole (other than the splitter
// itself) to its scheduler-chosen option in child, when incomplete search
// is enabled (spec.md §4.4 step 5). chosen supplies, per hole, the single
// option to collapse to; a hole absent from chosen or not admitting that
// option is left untouched. Returns the family volume this removed, to be
// accounted as discarded rather than feasible/infeasible.
func collapseSimpleHoles(child family.Holes, simpleHoles []int, splitter int, chosen map[int]int) int64 {
	before := child.Size()
	for _, h := range simpleHoles {
		if h == splitter {
			continue
		}
		opt, ok := chosen[h]
		if !ok || !child[h].HasOption(opt) {
			continue
		}
		// child shares this hole with its parent and siblings (Subholes);
		// restrict a private copy so only child is collapsed.
		child[h] = child[h].Copy()
		child.AssumeHoleOptions(h, []int{opt})
	}
	return before - child.Size()
}

// resolvedOptions returns the hole -> single chosen option map usable by
// collapseSimpleHoles: holes whose combined used-option set across every
// property has exactly one member.
func resolvedOptions(results []spec.MDPPropertyResult, holes []int) map[int]int {
	out := make(map[int]int)
	for _, h := range holes {
		used := combinedUsedOptions(results, h)
		if len(used) == 1 {
			out[h] = used[0]
		}
	}
	return out
}
