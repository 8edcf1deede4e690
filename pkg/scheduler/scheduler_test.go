package scheduler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paynt-synth/synthcore/pkg/verifier"
)

// fakeTM: 2 states; state 0 has choices {0 (h0=a), 1 (h0=b)}; state 1 has
// choice {2 (default)}.
type fakeTM struct{}

func (fakeTM) NumStates() int  { return 2 }
func (fakeTM) NumChoices() int { return 3 }
func (fakeTM) RowGroupStart(s int) int {
	if s == 0 {
		return 0
	}
	return 2
}
func (fakeTM) RowGroupEnd(s int) int {
	if s == 0 {
		return 2
	}
	return 3
}
func (fakeTM) Successors(choice int) []verifier.Transition {
	switch choice {
	case 0:
		return []verifier.Transition{{State: 0, Prob: 1}}
	case 1:
		return []verifier.Transition{{State: 1, Prob: 1}}
	default:
		return []verifier.Transition{{State: 1, Prob: 1}}
	}
}

func fakeLabel(choice int) map[int]int {
	switch choice {
	case 0:
		return map[int]int{0: 0}
	case 1:
		return map[int]int{0: 1}
	default:
		return nil
	}
}

func TestQualitativeSelectionConsistentWhenSingleOption(t *testing.T) {
	sel := qualitativeSelection(fakeLabel, verifier.Scheduler{Choice: []int{0, 2}})
	assert.True(t, sel.Consistent())
	assert.Equal(t, map[int]int{0: 0}, sel.Assignment())
}

func TestQualitativeSelectionInconsistentAcrossStates(t *testing.T) {
	// A single scheduler whose chosen actions at two different states
	// mention hole 0 with two different options is inconsistent.
	label := func(choice int) map[int]int {
		switch choice {
		case 0:
			return map[int]int{0: 0}
		case 2:
			return map[int]int{0: 1}
		}
		return nil
	}
	sel := qualitativeSelection(label, verifier.Scheduler{Choice: []int{0, 2}})
	assert.False(t, sel.Consistent())
}

func TestSanitizeReplacesInfMinimizing(t *testing.T) {
	out := sanitize([]float64{1, 3, math.Inf(1)}, true)
	assert.Equal(t, []float64{1, 3, 2}, out)
}

func TestSanitizeReplacesInfMaximizingWithZero(t *testing.T) {
	out := sanitize([]float64{1, 3, math.Inf(-1)}, false)
	assert.Equal(t, []float64{1, 3, 0}, out)
}

func TestAnalyzeScoresInconsistentHole(t *testing.T) {
	// Choice 2 (state 1) is labeled h0=b here, so the scheduler picking
	// choice 0 at state 0 and choice 2 at state 1 uses both options of h0.
	label := func(choice int) map[int]int {
		if choice == 0 {
			return map[int]int{0: 0}
		}
		return map[int]int{0: 1}
	}
	values := []float64{0, 10}
	visits := []float64{1, 1}
	result := Analyze(fakeTM{}, nil, "", label, verifier.Scheduler{Choice: []int{0, 2}}, values, visits, false)
	assert.False(t, result.Selection.Consistent())
	assert.Contains(t, result.HoleScores, 0)
	// state 0: choice 0 -> value 0 (state0->state0), choice 1 -> value 10
	// (state0->state1), so (max-min)*visits = 10. state 1: only choice 2
	// (value 10), so 0. Averaged over the 2 contributing states: 5.
	assert.Equal(t, 5.0, result.HoleScores[0])
}

func TestAnalyzeConsistentHasNoScores(t *testing.T) {
	// Scheduler picks choice 0 at state 0 and the unlabeled choice 2 at
	// state 1: hole 0 resolves to exactly one option, so there is nothing
	// to score.
	label := func(choice int) map[int]int {
		if choice == 0 {
			return map[int]int{0: 0}
		}
		return nil
	}
	values := []float64{0, 10}
	visits := []float64{1, 1}
	result := Analyze(fakeTM{}, nil, "", label, verifier.Scheduler{Choice: []int{0, 2}}, values, visits, false)
	assert.True(t, result.Selection.Consistent())
	assert.Nil(t, result.HoleScores)
}
