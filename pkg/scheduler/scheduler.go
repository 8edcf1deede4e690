// Package scheduler implements the scheduler-selection analyzer (spec.md
// §4.3): given a sub-MDP and a verifier-produced memoryless deterministic
// scheduler, it folds the scheduler's chosen actions' hole-option labelings
// into a per-hole qualitative selection, decides consistency, and -- when
// inconsistent -- computes choice values, expected visits, and a per-hole
// inconsistency score used to drive splitter choice.
package scheduler

import (
	"math"
	"sort"

	"github.com/paynt-synth/synthcore/pkg/verifier"
)

// Selection maps hole index -> sorted, deduplicated options used by the
// scheduler's chosen actions (the "qualitative selection" of spec.md §4.3).
type Selection map[int][]int

// Consistent reports whether every hole maps to at most one option: the
// family can be resolved without further splitting with respect to this
// property.
func (s Selection) Consistent() bool {
	for _, opts := range s {
		if len(opts) > 1 {
			return false
		}
	}
	return true
}

// Assignment returns the single option chosen per hole. Only meaningful
// when Consistent(); holes never mentioned by any scheduler-chosen action
// are absent.
func (s Selection) Assignment() map[int]int {
	out := make(map[int]int, len(s))
	for h, opts := range s {
		if len(opts) == 1 {
			out[h] = opts[0]
		}
	}
	return out
}

// Labeling resolves the hole-option labeling of a global choice index. The
// quotient coordinator is the usual implementation (ActionLabel.Options).
type Labeling func(choice int) map[int]int

// Result bundles the outputs of analyzing one property's scheduler against
// one sub-MDP.
type Result struct {
	Selection      Selection
	ChoiceValues   []float64 // per choice, sanitized
	ExpectedVisits []float64 // per state, sanitized
	HoleScores     map[int]float64
}

// Analyze runs the full §4.3 pipeline:
//  1. fold the scheduler's chosen actions into a qualitative selection;
//  2. (caller checks Result.Selection.Consistent());
//  3. compute choice values c(a) = Σ P(s,a,s')·V(s'), plus state-action
//     reward when rm is non-nil, sanitizing ±∞;
//  4. sanitize the caller-supplied expected-visits vector the same way;
//  5. if inconsistent, score each inconsistent hole.
//
// visits must already be the scheduler-induced chain's expected visits
// projected onto tm's state space (computed by the caller via
// quotient.Coordinator.Restrict + Builder.ToChain +
// verifier.Verifier.ExpectedVisits -- this package does no model checking).
func Analyze(tm verifier.TransitionModel, rm verifier.RewardModel, rewardName string, label Labeling, sched verifier.Scheduler, values, visits []float64, minimizing bool) Result {
	selection := qualitativeSelection(label, sched)
	choiceValues := sanitize(foldChoiceValues(tm, rm, rewardName, values), minimizing)
	sanitizedVisits := sanitize(visits, minimizing)

	var scores map[int]float64
	if !selection.Consistent() {
		scores = scoreInconsistentHoles(tm, label, selection, choiceValues, sanitizedVisits)
	}
	return Result{
		Selection:      selection,
		ChoiceValues:   choiceValues,
		ExpectedVisits: sanitizedVisits,
		HoleScores:     scores,
	}
}

func qualitativeSelection(label Labeling, sched verifier.Scheduler) Selection {
	sets := make(map[int]map[int]bool)
	for _, choice := range sched.Choice {
		if choice < 0 {
			continue
		}
		for h, o := range label(choice) {
			if sets[h] == nil {
				sets[h] = make(map[int]bool)
			}
			sets[h][o] = true
		}
	}
	sel := make(Selection, len(sets))
	for h, set := range sets {
		opts := make([]int, 0, len(set))
		for o := range set {
			opts = append(opts, o)
		}
		sort.Ints(opts)
		sel[h] = opts
	}
	return sel
}

func foldChoiceValues(tm verifier.TransitionModel, rm verifier.RewardModel, rewardName string, values []float64) []float64 {
	out := make([]float64, tm.NumChoices())
	for a := 0; a < tm.NumChoices(); a++ {
		var v float64
		for _, t := range tm.Successors(a) {
			v += t.Prob * values[t.State]
		}
		if rm != nil {
			if r, ok := rm.StateActionReward(a, rewardName); ok {
				v += r
			}
		}
		out[a] = v
	}
	return out
}

// sanitize replaces ±∞ with the mean of the finite values when minimizing,
// else with 0, per spec.md §4.3.
func sanitize(xs []float64, minimizing bool) []float64 {
	if xs == nil {
		return nil
	}
	var sum float64
	var count int
	for _, x := range xs {
		if !math.IsInf(x, 0) {
			sum += x
			count++
		}
	}
	var fallback float64
	if minimizing && count > 0 {
		fallback = sum / float64(count)
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		if math.IsInf(x, 0) {
			out[i] = fallback
		} else {
			out[i] = x
		}
	}
	return out
}

// scoreInconsistentHoles estimates, for each inconsistent hole, the
// scheduler's value sensitivity to that hole's currently-used options:
// for each state and each such hole, it brackets the choice values of
// actions that fix the hole to one of its used options and accumulates
// (max-min)·visits(s), averaged over the contributing states.
func scoreInconsistentHoles(tm verifier.TransitionModel, label Labeling, selection Selection, choiceValues, visits []float64) map[int]float64 {
	scores := make(map[int]float64)
	for h, opts := range selection {
		if len(opts) <= 1 {
			continue
		}
		used := make(map[int]bool, len(opts))
		for _, o := range opts {
			used[o] = true
		}
		var total float64
		var contributing int
		for s := 0; s < tm.NumStates(); s++ {
			var min, max float64
			found := false
			for ch := tm.RowGroupStart(s); ch < tm.RowGroupEnd(s); ch++ {
				o, mentions := label(ch)[h]
				if !mentions || !used[o] {
					continue
				}
				v := choiceValues[ch]
				if !found || v < min {
					min = v
				}
				if !found || v > max {
					max = v
				}
				found = true
			}
			if !found {
				continue
			}
			var visit float64
			if s < len(visits) {
				visit = visits[s]
			}
			total += (max - min) * visit
			contributing++
		}
		if contributing > 0 {
			scores[h] = total / float64(contributing)
		}
	}
	return scores
}
