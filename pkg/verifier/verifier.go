// Package verifier declares the collaborators the family search engine
// consumes but does not implement: the model checker and the
// transition-system builder. Nothing in this package performs sketch
// parsing or numerical model checking; it only names the shapes the core
// needs from whoever does.
package verifier

// Model is an opaque transition system handle. The core never inspects a
// Model's contents directly except through the narrow TransitionModel and
// RewardModel accessors below; everything else about it belongs to the
// builder/verifier that produced it.
type Model interface{}

// Transition is one outgoing edge of a choice.
type Transition struct {
	State int
	Prob  float64
}

// TransitionModel is implemented by Models that expose enough raw structure
// for the scheduler-selection analyzer (choice values, row groups) to fold
// over them directly. This is structural enumeration, not model checking:
// the core never solves anything against it.
type TransitionModel interface {
	NumStates() int
	NumChoices() int
	// RowGroupStart and RowGroupEnd bound the choices available at state s:
	// [RowGroupStart(s), RowGroupEnd(s)).
	RowGroupStart(state int) int
	RowGroupEnd(state int) int
	Successors(choice int) []Transition
}

// RewardModel is optionally implemented by a Model alongside TransitionModel
// when a property being checked is a reward property.
type RewardModel interface {
	// StateActionReward returns the reward attached to a choice, and
	// whether this model has state-action (as opposed to state-only)
	// rewards for the named reward structure.
	StateActionReward(choice int, rewardName string) (float64, bool)
}

// SubModel is the result of restricting a Model to a subset of its choices.
type SubModel struct {
	Model Model
	// StateMap maps a local (restricted) state index to its index in the
	// model that was restricted.
	StateMap []int
	// ActionMap maps a local (restricted) choice index to its index in the
	// model that was restricted.
	ActionMap []int
}

// Builder produces the quotient transition system and knows how to restrict
// any Model it produced to a subset of admitted actions, and how to collapse
// an MDP with a trivial action space into a DTMC.
type Builder interface {
	// Restrict returns the submodel of base reachable using only the
	// choices marked true in selected (indexed by global choice index).
	Restrict(base Model, selected []bool) (SubModel, error)
	// ToChain collapses an MDP all of whose states have exactly one
	// available action into a DTMC representation of the same Model type.
	ToChain(mdp Model) (Model, error)
}

// Scheduler is a memoryless deterministic scheduler for an MDP: Choice[s] is
// the global choice index (as returned by RowGroupStart/RowGroupEnd, not a
// per-state offset) selected at state s, or -1 if state s has no choice
// under this scheduler (unreachable, or outside the model the scheduler was
// computed for).
type Scheduler struct {
	Choice []int
}

// Support returns, for every state with a chosen choice, whether that
// choice is selected (used to build the induced chain's action bitset via
// Builder.Restrict).
func (s Scheduler) Support(numChoices int) []bool {
	selected := make([]bool, numChoices)
	for _, c := range s.Choice {
		if c >= 0 && c < numChoices {
			selected[c] = true
		}
	}
	return selected
}

// Formula is an opaque model-checking query. Its concrete shape (the
// property being checked, its optimization direction, reward name, and so
// on) belongs to the specification evaluator (pkg/spec), not to this
// package: the verifier only needs to be handed one and to check it.
type Formula interface{}

// CheckResult is what a Verifier reports for one Formula against one Model.
type CheckResult struct {
	// Values holds the model-checking result at every state.
	Values []float64
	// Scheduler is non-nil when Model was an MDP and the formula's
	// optimization direction produced a memoryless deterministic
	// scheduler. Absent for DTMCs and for properties without one.
	Scheduler *Scheduler
}

// Verifier is the external model checker. Check is synchronous: the core
// never suspends waiting for it, per the single-threaded cooperative
// concurrency model.
type Verifier interface {
	// Check model-checks formula against model. hint, when non-nil, is a
	// prior value vector used to warm-start iterative solvers; it is
	// ignored for DTMCs.
	Check(model Model, formula Formula, hint []float64) (CheckResult, error)
	// ExpectedVisits computes the expected number of visits to each state
	// of chain, a DTMC Model produced via Builder.ToChain.
	ExpectedVisits(chain Model) ([]float64, error)
}
