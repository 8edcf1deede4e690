package family

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHole(t *testing.T, name string, labels ...string) *Hole {
	t.Helper()
	h, err := NewHole(name, labels)
	require.NoError(t, err)
	return h
}

func twoHoleSpace(t *testing.T) *DesignSpace {
	t.Helper()
	h0 := mustHole(t, "h0", "a", "b")
	h1 := mustHole(t, "h1", "x", "y", "z")
	ds, err := NewRootDesignSpace(Holes{h0, h1})
	require.NoError(t, err)
	return ds
}

func TestHoleTriviality(t *testing.T) {
	h := mustHole(t, "h", "a", "b", "c")
	assert.False(t, h.IsTrivial())
	assert.True(t, h.IsUnrefined())
	h.AssumeOptions([]int{1})
	assert.True(t, h.IsTrivial())
	assert.False(t, h.IsUnrefined())
}

func TestAssumeOptionsOutOfCatalogPanics(t *testing.T) {
	h := mustHole(t, "h", "a", "b")
	assert.Panics(t, func() { h.AssumeOptions([]int{5}) })
	assert.Panics(t, func() { h.AssumeOptions(nil) })
}

func TestDesignSpaceSize(t *testing.T) {
	ds := twoHoleSpace(t)
	assert.Equal(t, int64(6), ds.Size())
}

func TestCopyThenAssumeOwnOptionsIsNoOp(t *testing.T) {
	ds := twoHoleSpace(t)
	cp := ds.Copy()
	cp.AssumeHoleOptions(0, ds.Holes[0].Options())
	cp.AssumeHoleOptions(1, ds.Holes[1].Options())
	assert.Equal(t, ds.Holes[0].Options(), cp.Holes[0].Options())
	assert.Equal(t, ds.Holes[1].Options(), cp.Holes[1].Options())
	assert.Equal(t, ds.Size(), cp.Size())
}

func TestSubholesRoundTrip(t *testing.T) {
	ds := twoHoleSpace(t)
	sub := ds.Holes.Subholes(0, ds.Holes[0].Options())
	assert.Equal(t, ds.Holes[0].Options(), sub[0].Options())
	assert.Equal(t, ds.Holes[1].Options(), sub[1].Options())
	assert.Same(t, ds.Holes[1], sub[1])
}

func TestIncludes(t *testing.T) {
	ds := twoHoleSpace(t)
	ds.AssumeHoleOptions(0, []int{0})
	assert.True(t, ds.Includes(map[int]int{0: 0}))
	assert.False(t, ds.Includes(map[int]int{0: 1}))
	assert.True(t, ds.Includes(map[int]int{1: 2}))
}

func TestPickAnyIsSingleton(t *testing.T) {
	ds := twoHoleSpace(t)
	picked := ds.PickAny()
	assert.True(t, picked.IsSingleton())
	assert.Equal(t, int64(1), picked.Size())
}

func TestForEachCombinationCoversFullProduct(t *testing.T) {
	ds := twoHoleSpace(t)
	var combos [][]int
	ds.ForEachCombination(func(c []int) bool {
		cp := make([]int, len(c))
		copy(cp, c)
		combos = append(combos, cp)
		return true
	})
	assert.Len(t, combos, 6)
}

func TestForEachCombinationEarlyStop(t *testing.T) {
	ds := twoHoleSpace(t)
	count := 0
	ds.ForEachCombination(func(c []int) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestConstructAssignmentIsSingleton(t *testing.T) {
	ds := twoHoleSpace(t)
	assignment := ds.Holes.ConstructAssignment([]int{1, 2})
	require.Equal(t, int64(1), assignment.Size())
	assert.Equal(t, []int{1}, assignment[0].Options())
	assert.Equal(t, []int{2}, assignment[1].Options())
}

func TestRefinementContraction(t *testing.T) {
	ds := twoHoleSpace(t)
	parent := ds.CollectParentInfo(nil)
	childA := NewChildDesignSpace(ds.Holes.Subholes(0, []int{0}), parent)
	childA.AssumeHoleOptions(0, []int{0})
	childB := NewChildDesignSpace(ds.Holes.Subholes(0, []int{1}), parent)
	childB.AssumeHoleOptions(0, []int{1})

	union := map[int]bool{}
	for _, o := range childA.Holes[0].Options() {
		union[o] = true
	}
	for _, o := range childB.Holes[0].Options() {
		union[o] = true
	}
	assert.Len(t, union, 2)
	assert.Equal(t, ds.Holes[1].Options(), childA.Holes[1].Options())
	assert.Equal(t, ds.Holes[1].Options(), childB.Holes[1].Options())
	assert.Equal(t, childA.Size()+childB.Size(), ds.Size())
	assert.Equal(t, 1, childA.RefinementDepth)
}

func TestTranslateHintDegradesGracefullyOnNil(t *testing.T) {
	assert.Nil(t, TranslateHint(nil, []int{0, 1}))
}

func TestGeneralizeAndTranslateHintRoundTrip(t *testing.T) {
	// quotient has 4 global states; a sub-MDP sees states [1,3] locally as [0,1]
	stateMap := []int{1, 3}
	local := []float64{10, 30}
	global := GeneralizeHint(local, stateMap, 4)
	assert.Equal(t, []float64{0, 10, 0, 30}, global)

	roundTrip := TranslateHint(global, stateMap)
	assert.Equal(t, local, roundTrip)
}

func TestCombinationColoringRoundTrip(t *testing.T) {
	c := NewCombinationColoring(2)
	combos := []Combination{
		{0, AnyOption},
		{1, 2},
		{AnyOption, 0},
	}
	colorOf := make(map[int]int)
	for i, combo := range combos {
		color, err := c.GetOrMakeColor(combo)
		require.NoError(t, err)
		colorOf[i] = color
		// round trip: requesting the same combination again returns the
		// same color.
		again, err := c.GetOrMakeColor(combo)
		require.NoError(t, err)
		assert.Equal(t, color, again)
	}
	assert.Equal(t, 3, c.Colors())
	assert.NotEqual(t, colorOf[0], colorOf[1])
}

func TestSubcolorsProper(t *testing.T) {
	c := NewCombinationColoring(2)
	c1, err := c.GetOrMakeColor(Combination{0, AnyOption})
	require.NoError(t, err)
	c2, err := c.GetOrMakeColor(Combination{1, AnyOption})
	require.NoError(t, err)

	colors := c.SubcolorsProper(0, []int{0})
	assert.Contains(t, colors, c1)
	assert.NotContains(t, colors, c2)
}

func TestHoleAssignmentsExcludesColorZero(t *testing.T) {
	c := NewCombinationColoring(1)
	color, err := c.GetOrMakeColor(Combination{2})
	require.NoError(t, err)
	assignments := c.HoleAssignments([]int{0, color})
	require.Len(t, assignments, 1)
	assert.Equal(t, []int{2}, assignments[0])
}
