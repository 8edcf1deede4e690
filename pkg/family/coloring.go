package family

import (
	"sort"

	"github.com/mitchellh/hashstructure"
	"github.com/pkg/errors"
)

// AnyOption marks an unconstrained hole position within a Combination.
const AnyOption = -1

// Combination is a (possibly partial) hole-option assignment: one entry per
// hole, AnyOption where a hole is unconstrained. Its length always equals
// the number of holes in the design space the CombinationColoring was built
// for.
type Combination []int

// key hashes a Combination into a map key. hashstructure avoids the
// variable-length-slice-as-map-key problem without a hand-rolled string
// join; a false positive (colliding hash for distinct combinations) would
// silently merge two colors, so the cache additionally keeps the original
// Combination alongside the color and verifies equality on lookup.
func (c Combination) key() (uint64, error) {
	h, err := hashstructure.Hash(c, nil)
	if err != nil {
		return 0, errors.Wrap(err, "hashing combination")
	}
	return h, nil
}

func (c Combination) equal(other Combination) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

type coloringBucket struct {
	combination Combination
	color       int
}

// CombinationColoring is a bijection between hole-option combinations
// (possibly partial) and small positive integers called colors. Color 0 is
// reserved for hole-independent objects and is never assigned by
// GetOrMakeColor.
type CombinationColoring struct {
	numHoles int
	buckets  map[uint64][]coloringBucket
	reverse  map[int]Combination
	next     int
}

// NewCombinationColoring builds an empty coloring for a design space with
// numHoles holes.
func NewCombinationColoring(numHoles int) *CombinationColoring {
	return &CombinationColoring{
		numHoles: numHoles,
		buckets:  make(map[uint64][]coloringBucket),
		reverse:  make(map[int]Combination),
		next:     1,
	}
}

// Colors is the number of distinct non-zero colors assigned so far.
func (c *CombinationColoring) Colors() int { return c.next - 1 }

// GetOrMakeColor returns the color associated with combination, assigning a
// fresh one if this is the first time it is seen.
func (c *CombinationColoring) GetOrMakeColor(combination Combination) (int, error) {
	if len(combination) != c.numHoles {
		return 0, errors.Errorf("combination has %d entries, expected %d", len(combination), c.numHoles)
	}
	h, err := combination.key()
	if err != nil {
		return 0, err
	}
	for _, b := range c.buckets[h] {
		if b.combination.equal(combination) {
			return b.color, nil
		}
	}
	color := c.next
	c.next++
	cp := make(Combination, len(combination))
	copy(cp, combination)
	c.buckets[h] = append(c.buckets[h], coloringBucket{combination: cp, color: color})
	c.reverse[color] = cp
	return color, nil
}

// Combination returns the (possibly partial) combination a color was
// assigned to. Returns nil for color 0 (hole-independent) or an unknown
// color.
func (c *CombinationColoring) Combination(color int) Combination {
	return c.reverse[color]
}

// Subcolors collects the colors valid within the provided design subspace:
// a combination is contained iff every one of its non-Any positions is
// still a current option of the corresponding hole.
func (c *CombinationColoring) Subcolors(subspace Holes) []int {
	var colors []int
	for color, combination := range c.reverse {
		contained := true
		for holeIndex, hole := range subspace {
			if combination[holeIndex] == AnyOption {
				continue
			}
			if !hole.HasOption(combination[holeIndex]) {
				contained = false
				break
			}
		}
		if contained {
			colors = append(colors, color)
		}
	}
	sort.Ints(colors)
	return colors
}

// SubcolorsProper collects the colors whose value at holeIndex lies in
// options (used to compute the incremental action set for a just-split
// child, per the splitter-only fast path of the quotient coordinator).
func (c *CombinationColoring) SubcolorsProper(holeIndex int, options []int) []int {
	set := make(map[int]bool, len(options))
	for _, o := range options {
		set[o] = true
	}
	var colors []int
	for color, combination := range c.reverse {
		if set[combination[holeIndex]] {
			colors = append(colors, color)
		}
	}
	sort.Ints(colors)
	return colors
}

// HoleAssignments collects, for every hole, the sorted set of options that
// appear in any of the given colors' combinations.
func (c *CombinationColoring) HoleAssignments(colors []int) [][]int {
	sets := make([]map[int]bool, c.numHoles)
	for i := range sets {
		sets[i] = make(map[int]bool)
	}
	for _, color := range colors {
		if color == 0 {
			continue
		}
		combination, ok := c.reverse[color]
		if !ok {
			continue
		}
		for holeIndex, option := range combination {
			if option == AnyOption {
				continue
			}
			sets[holeIndex][option] = true
		}
	}
	out := make([][]int, c.numHoles)
	for i, set := range sets {
		opts := make([]int, 0, len(set))
		for o := range set {
			opts = append(opts, o)
		}
		sort.Ints(opts)
		out[i] = opts
	}
	return out
}
