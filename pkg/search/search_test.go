package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paynt-synth/synthcore/pkg/family"
	"github.com/paynt-synth/synthcore/pkg/quotient"
	"github.com/paynt-synth/synthcore/pkg/scheduler"
	"github.com/paynt-synth/synthcore/pkg/smt"
	"github.com/paynt-synth/synthcore/pkg/spec"
	"github.com/paynt-synth/synthcore/pkg/verifier"
)

// fakeBuilder never actually restricts anything: Restrict returns the base
// model unchanged with an identity state map, which is enough for a
// fakeVerifier that keys its canned results off the formula alone, not the
// model it is handed (same simplification quotient_test.go's fakeBuilder
// uses).
type fakeBuilder struct{}

func (fakeBuilder) Restrict(base verifier.Model, selected []bool) (verifier.SubModel, error) {
	var actionMap []int
	for a, ok := range selected {
		if ok {
			actionMap = append(actionMap, a)
		}
	}
	stateMap := []int{0}
	if tm, ok := base.(verifier.TransitionModel); ok {
		stateMap = make([]int, tm.NumStates())
		for i := range stateMap {
			stateMap[i] = i
		}
	}
	return verifier.SubModel{Model: base, StateMap: stateMap, ActionMap: actionMap}, nil
}

func (fakeBuilder) ToChain(mdp verifier.Model) (verifier.Model, error) { return mdp, nil }

// fakeVerifier returns a canned CheckResult per formula, ignoring the model
// it's handed -- the chain/sub-MDP distinction is exercised by the loop, not
// by this fake.
type fakeVerifier struct {
	values map[verifier.Formula][]float64
	sched  map[verifier.Formula]*verifier.Scheduler
	visits []float64
}

func (v fakeVerifier) Check(model verifier.Model, formula verifier.Formula, hint []float64) (verifier.CheckResult, error) {
	return verifier.CheckResult{Values: v.values[formula], Scheduler: v.sched[formula]}, nil
}

func (v fakeVerifier) ExpectedVisits(chain verifier.Model) ([]float64, error) {
	return v.visits, nil
}

func newHole(t *testing.T, name string, labels ...string) *family.Hole {
	t.Helper()
	h, err := family.NewHole(name, labels)
	require.NoError(t, err)
	return h
}

// TestSynthesizeSingletonFeasibleSkipsMDP covers spec.md §8's boundary case:
// a root design space whose only hole already admits a single option is a
// singleton from the start, so the loop performs exactly one iteration and
// checks it as a chain directly, never entering the MDP branch.
func TestSynthesizeSingletonFeasibleSkipsMDP(t *testing.T) {
	h0 := newHole(t, "h0", "a")
	root, err := family.NewRootDesignSpace(family.Holes{h0})
	require.NoError(t, err)

	c, err := quotient.New(fakeBuilder{}, "model", 1, []quotient.ActionLabel{{}})
	require.NoError(t, err)

	v := fakeVerifier{values: map[verifier.Formula][]float64{"c1": {1.0}}}
	e := spec.NewEvaluator(v, 1e-6)
	s, err := spec.New([]spec.Property{{Primary: "c1", Threshold: 0.5, InitialState: 0}}, []spec.Group{{0}}, nil)
	require.NoError(t, err)

	backend := smt.NewBruteForceBackend([]int{1})
	loop := New(c, fakeBuilder{}, e, s, WithBackend(backend))

	result, err := loop.Synthesize(root)
	require.NoError(t, err)
	assert.True(t, result.Feasible)
	assert.False(t, result.Unknown)
	assert.Equal(t, int64(1), result.Stats.Explored)
	assert.Equal(t, int64(0), result.Stats.Discarded)
	assert.Equal(t, 1, result.Stats.IterationsDTMC)
	assert.Equal(t, 0, result.Stats.IterationsMDP)
}

// TestSynthesizeSingletonInfeasibleDiscards covers the mirror case: the
// singleton fails its only constraint, so it is excluded from the SMT cache
// and accounted as discarded, and an empty frontier reports infeasible.
func TestSynthesizeSingletonInfeasibleDiscards(t *testing.T) {
	h0 := newHole(t, "h0", "a")
	root, err := family.NewRootDesignSpace(family.Holes{h0})
	require.NoError(t, err)

	c, err := quotient.New(fakeBuilder{}, "model", 1, []quotient.ActionLabel{{}})
	require.NoError(t, err)

	v := fakeVerifier{values: map[verifier.Formula][]float64{"c1": {0.1}}}
	e := spec.NewEvaluator(v, 1e-6)
	s, err := spec.New([]spec.Property{{Primary: "c1", Threshold: 0.5, InitialState: 0}}, []spec.Group{{0}}, nil)
	require.NoError(t, err)

	backend := smt.NewBruteForceBackend([]int{1})
	loop := New(c, fakeBuilder{}, e, s, WithBackend(backend))

	result, err := loop.Synthesize(root)
	require.NoError(t, err)
	assert.False(t, result.Feasible)
	assert.Equal(t, int64(0), result.Stats.Explored)
	assert.Equal(t, int64(1), result.Stats.Discarded)
}

// fakeDecisionModel is a 3-state transition system: state 0 has two
// choices, a (->state 1) and b (->state 2); states 1 and 2 each have a
// single default self-loop choice. Choices 0 (a) and 1 (b) are labeled
// h0=a and h0=b by the test's ActionLabels; choices 2-3 are default.
type fakeDecisionModel struct{}

func (fakeDecisionModel) NumStates() int  { return 3 }
func (fakeDecisionModel) NumChoices() int { return 4 }
func (fakeDecisionModel) RowGroupStart(s int) int {
	switch s {
	case 0:
		return 0
	case 1:
		return 2
	default:
		return 3
	}
}
func (fakeDecisionModel) RowGroupEnd(s int) int {
	switch s {
	case 0:
		return 2
	case 1:
		return 3
	default:
		return 4
	}
}
func (fakeDecisionModel) Successors(choice int) []verifier.Transition {
	switch choice {
	case 0:
		return []verifier.Transition{{State: 1, Prob: 1}}
	case 1:
		return []verifier.Transition{{State: 2, Prob: 1}}
	case 2:
		return []verifier.Transition{{State: 1, Prob: 1}}
	default:
		return []verifier.Transition{{State: 2, Prob: 1}}
	}
}

// TestSynthesizeMDPPromotesConsistentSelection exercises the full
// undecided-family path: a 2-option hole whose MDP-regime evaluation is
// neither clearly true nor false folds into a consistent scheduler
// selection (only option "a" is ever chosen), which is promoted to a
// singleton candidate and double-checked as a chain before being reported
// feasible.
func TestSynthesizeMDPPromotesConsistentSelection(t *testing.T) {
	h0 := newHole(t, "h0", "a", "b")
	root, err := family.NewRootDesignSpace(family.Holes{h0})
	require.NoError(t, err)

	labels := []quotient.ActionLabel{
		{Options: map[int]int{0: 0}}, // choice 0: h0=a
		{Options: map[int]int{0: 1}}, // choice 1: h0=b
		{},                           // choice 2: default
		{},                           // choice 3: default
	}
	c, err := quotient.New(fakeBuilder{}, fakeDecisionModel{}, 1, labels)
	require.NoError(t, err)

	v := fakeVerifier{
		values: map[verifier.Formula][]float64{
			"primary":   {1, 1, 0},
			"secondary": {0, 1, 0},
			// the double-check against the promoted singleton's own chain
			// (built from the same model/builder) reuses the primary
			// formula's values.
		},
		sched: map[verifier.Formula]*verifier.Scheduler{
			"primary": {Choice: []int{0, 2, 3}},
		},
		visits: []float64{1, 0, 0},
	}
	e := spec.NewEvaluator(v, 1e-6)
	s, err := spec.New([]spec.Property{
		{Primary: "primary", Secondary: "secondary", Threshold: 0.5, InitialState: 0},
	}, []spec.Group{{0}}, nil)
	require.NoError(t, err)

	backend := smt.NewBruteForceBackend([]int{2})
	loop := New(c, fakeBuilder{}, e, s, WithBackend(backend))

	result, err := loop.Synthesize(root)
	require.NoError(t, err)
	require.True(t, result.Feasible)
	assert.Equal(t, []int{0}, result.Assignment.Holes[0].Options())
	assert.Equal(t, int64(1), result.Stats.Explored)
	assert.Equal(t, 1, result.Stats.IterationsMDP)
	assert.Equal(t, 1, result.Stats.IterationsDTMC)
}

func TestPromoteFixesSelectedHolesAndLeavesOthersAtFirstOption(t *testing.T) {
	h0 := newHole(t, "h0", "a", "b")
	h1 := newHole(t, "h1", "x", "y")
	root, err := family.NewRootDesignSpace(family.Holes{h0, h1})
	require.NoError(t, err)

	candidate := promote(root, map[int][]int{0: {1}})
	assert.Equal(t, []int{1}, candidate.Holes[0].Options())
	assert.Equal(t, []int{0}, candidate.Holes[1].Options())
	assert.True(t, candidate.IsSingleton())
	assert.Equal(t, root.RefinementDepth+1, candidate.RefinementDepth)
}

// TestResolvedOptionsOnlyReportsHolesWithASingleCombinedOption exercises the
// incomplete-search collapsing helper used by pushSplit: a hole is resolved
// only once every property's scheduler selection agrees on exactly one
// option for it.
func TestResolvedOptionsOnlyReportsHolesWithASingleCombinedOption(t *testing.T) {
	results := []spec.MDPPropertyResult{
		{Analysis: scheduler.Result{Selection: scheduler.Selection{0: {1}, 1: {0, 1}}}},
		{Analysis: scheduler.Result{Selection: scheduler.Selection{0: {1}}}},
	}
	resolved := resolvedOptions(results, []int{0, 1})
	if diff := cmp.Diff(map[int]int{0: 1}, resolved); diff != "" {
		t.Errorf("resolvedOptions mismatch (-want +got):\n%s", diff)
	}
}
