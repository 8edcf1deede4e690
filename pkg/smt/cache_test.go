package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCheckFamilySatisfiableBeforeAnyConflict(t *testing.T) {
	c, err := NewCache(NewBruteForceBackend([]int{2, 2}), []int{2, 2})
	require.NoError(t, err)

	sat, err := c.CheckFamily(map[int][]int{0: {0, 1}, 1: {0, 1}})
	require.NoError(t, err)
	assert.True(t, sat)
}

func TestCacheExcludeRemovesAssignment(t *testing.T) {
	c, err := NewCache(NewBruteForceBackend([]int{1, 2}), []int{1, 2})
	require.NoError(t, err)
	c.EnterFamily(1)

	// Hole 0 only has one option, so excluding (hole1=0) leaves only
	// (hole0=0, hole1=1) satisfiable. Hole 0 is not in the conflict, so the
	// pruning estimate is its catalog size, 1.
	pruned, err := c.Exclude(map[int]int{1: 0}, []int{1}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	assignment, sat, err := c.PickAssignment(map[int][]int{0: {0}, 1: {0, 1}})
	require.NoError(t, err)
	require.True(t, sat)
	assert.Equal(t, 1, assignment[1])
}

func TestCacheExcludeBacktracksOnEnterFamily(t *testing.T) {
	c, err := NewCache(NewBruteForceBackend([]int{2}), []int{2})
	require.NoError(t, err)

	c.EnterFamily(1)
	_, err = c.Exclude(map[int]int{0: 0}, []int{0}, 1)
	require.NoError(t, err)
	sat, err := c.CheckFamily(map[int][]int{0: {0}})
	require.NoError(t, err)
	assert.False(t, sat, "option 0 should be excluded while still inside the family that excluded it")

	// Leaving back to the root (depth 0) forgets the conflict learned at
	// depth 1.
	c.EnterFamily(0)
	sat, err = c.CheckFamily(map[int][]int{0: {0}})
	require.NoError(t, err)
	assert.True(t, sat, "conflict learned at depth 1 must not survive backtracking to the root")
}

func TestCacheExcludeRejectsUnknownHole(t *testing.T) {
	c, err := NewCache(NewBruteForceBackend([]int{2}), []int{2})
	require.NoError(t, err)
	c.EnterFamily(1)
	_, err = c.Exclude(map[int]int{0: 0}, []int{5}, 1)
	assert.Error(t, err)
}

func TestCacheUnsatisfiableFamilyReportsNoModel(t *testing.T) {
	c, err := NewCache(NewBruteForceBackend([]int{1}), []int{1})
	require.NoError(t, err)
	c.EnterFamily(1)
	_, err = c.Exclude(map[int]int{0: 0}, []int{0}, 1)
	require.NoError(t, err)

	_, sat, err := c.PickAssignment(map[int][]int{0: {0}})
	require.NoError(t, err)
	assert.False(t, sat)
}
