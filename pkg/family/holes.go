package family

// Holes is an ordered list of holes. Positions are stable identifiers
// across the lifetime of a root design space; children must never reorder
// them.
type Holes []*Hole

// NumHoles is the number of holes.
func (hs Holes) NumHoles() int { return len(hs) }

// HoleIndices returns 0..NumHoles()-1.
func (hs Holes) HoleIndices() []int {
	idx := make([]int, len(hs))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Size is the family size: the product of per-hole option-set
// cardinalities.
func (hs Holes) Size() int64 {
	var size int64 = 1
	for _, h := range hs {
		size *= int64(h.Size())
	}
	return size
}

// Copy returns a shallow copy of the list of holes (each hole itself
// shallow-copied per Hole.Copy).
func (hs Holes) Copy() Holes {
	out := make(Holes, len(hs))
	for i, h := range hs {
		out[i] = h.Copy()
	}
	return out
}

// AssumeHoleOptions restricts a single hole's current option set.
func (hs Holes) AssumeHoleOptions(holeIndex int, options []int) {
	hs[holeIndex].AssumeOptions(options)
}

// AssumeOptions restricts every hole's current option set in one call.
// holeOptions must have exactly NumHoles() entries.
func (hs Holes) AssumeOptions(holeOptions [][]int) {
	for i, h := range hs {
		h.AssumeOptions(holeOptions[i])
	}
}

// PickAny returns a singleton copy selecting the first current option of
// every hole.
func (hs Holes) PickAny() Holes {
	out := hs.Copy()
	for _, h := range out {
		h.AssumeOptions([]int{h.options[0]})
	}
	return out
}

// Includes reports whether this family contains the given (possibly
// partial) hole assignment: for every hole mentioned, the assigned option
// must be currently present.
func (hs Holes) Includes(assignment map[int]int) bool {
	for holeIndex, option := range assignment {
		if !hs[holeIndex].HasOption(option) {
			return false
		}
	}
	return true
}

// ForEachCombination enumerates the Cartesian product of hole options,
// calling yield with each combination in turn. Iteration stops early if
// yield returns false. This is the exhaustive fallback enumeration path;
// callers needing only a sample should prefer PickAny or ConstructAssignment.
func (hs Holes) ForEachCombination(yield func(combination []int) bool) {
	if len(hs) == 0 {
		return
	}
	combination := make([]int, len(hs))
	var rec func(pos int) bool
	rec = func(pos int) bool {
		if pos == len(hs) {
			return yield(combination)
		}
		for _, opt := range hs[pos].options {
			combination[pos] = opt
			if !rec(pos + 1) {
				return false
			}
		}
		return true
	}
	rec(0)
}

// ConstructAssignment converts a full hole-option combination into a
// singleton copy of this family.
func (hs Holes) ConstructAssignment(combination []int) Holes {
	out := hs.Copy()
	for i, option := range combination {
		out[i].AssumeOptions([]int{option})
	}
	return out
}

// Subholes returns a semi-shallow copy of hs in which every hole except
// holeIndex is shared with the receiver, and holeIndex is replaced by a
// restricted copy assuming options. This is the memory-optimized way of
// building a subfamily around a single splitter.
func (hs Holes) Subholes(holeIndex int, options []int) Holes {
	sub := hs[holeIndex].Copy()
	sub.AssumeOptions(options)

	out := make(Holes, len(hs))
	copy(out, hs)
	out[holeIndex] = sub
	return out
}
