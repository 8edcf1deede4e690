// Package spec implements the specification evaluator (spec.md §4.5): it
// wraps constraint and optimality properties, aggregates per-property
// verifier results into family-level sat/unsat/undecided verdicts honoring
// a CNF-of-disjunctions grouping, and tracks optimality improvement.
package spec

import (
	"sort"

	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/paynt-synth/synthcore/pkg/errs"
	"github.com/paynt-synth/synthcore/pkg/scheduler"
	"github.com/paynt-synth/synthcore/pkg/verifier"
)

// ErrNotImplemented is returned for the scheduler-optimality hyperproperty
// kind, which spec.md §9 declares but explicitly leaves unimplemented in
// this core (open question, resolved as "not-implemented" rather than a
// silent pass).
var ErrNotImplemented = errors.New("spec: scheduler-optimality hyperproperty evaluation is not implemented")

// Kind distinguishes the three ways a Property computes its threshold and
// whether it needs two initial states (spec.md §9 "polymorphism over
// property kinds").
type Kind int

const (
	// KindConstraint is a plain property checked against a fixed Threshold.
	KindConstraint Kind = iota
	// KindOptimality additionally reports improvement over a running best.
	KindOptimality
	// KindHyper compares the value at InitialState against the value at
	// OtherInitialState of the same chain/model.
	KindHyper
	// KindSchedulerHyperOptimality is declared but not implemented; see
	// ErrNotImplemented.
	KindSchedulerHyperOptimality
)

// Feasibility is the True/False/None trichotomy of spec.md §4.5 and §9,
// modeled as a sum type with three arms rather than boolean-with-sentinel.
type Feasibility int

const (
	FeasibilityNone Feasibility = iota
	FeasibilityTrue
	FeasibilityFalse
)

func (f Feasibility) String() string {
	switch f {
	case FeasibilityTrue:
		return "true"
	case FeasibilityFalse:
		return "false"
	default:
		return "none"
	}
}

// Property is one constraint, optimality, or hyperproperty entry. Primary
// and Secondary are the direction-flipped verifier.Formula variants
// supplied by the caller (spec.md §6): the evaluator only interprets their
// results, it never constructs formulas itself.
type Property struct {
	Kind       Kind
	Primary    verifier.Formula
	Secondary  verifier.Formula
	Minimize   bool
	Threshold  float64
	Strict     bool
	RewardName string

	// InitialState is the state a plain/optimality property's value is
	// read from; for hyperproperties it is the compared state and
	// OtherInitialState is the state supplying the threshold.
	InitialState      int
	OtherInitialState int
}

func (p Property) isHyper() bool {
	return p.Kind == KindHyper || p.Kind == KindSchedulerHyperOptimality
}

// effectiveThreshold resolves the value a property's own-state value is
// compared against: the fixed Threshold for plain/optimality properties,
// or the chain value at OtherInitialState for hyperproperties.
func (p Property) effectiveThreshold(values []float64) float64 {
	if p.isHyper() {
		return values[p.OtherInitialState]
	}
	return p.Threshold
}

// meets reports whether value satisfies p's threshold in p's optimization
// sense, loosened by precision to absorb numerical noise from the verifier,
// matching the original's meets_op/precision-tolerance idiom.
func meets(value, threshold float64, p Property, precision float64) bool {
	if p.Minimize {
		if p.Strict {
			return value < threshold+precision
		}
		return value <= threshold+precision
	}
	if p.Strict {
		return value > threshold-precision
	}
	return value >= threshold-precision
}

// Group is a set of constraint indices whose disjunction must hold. A
// top-level "no grouping" specification is one singleton group per
// constraint.
type Group []int

// Specification is a list of constraints plus the CNF grouping, an optional
// optimality property, and an optional (declared, unimplemented)
// scheduler-optimality hyperproperty.
type Specification struct {
	Constraints              []Property
	Groups                   []Group
	Optimality               *Property
	SchedulerHyperOptimality *Property
}

// New validates and constructs a Specification. Every group must reference
// only valid constraint indices and every constraint must belong to
// exactly one group.
func New(constraints []Property, groups []Group, optimality *Property) (*Specification, error) {
	var validationErrs []error
	covered := make(map[int]int, len(constraints))
	for gi, g := range groups {
		if len(g) == 0 {
			validationErrs = append(validationErrs, errors.Errorf("group %d is empty", gi))
		}
		for _, idx := range g {
			if idx < 0 || idx >= len(constraints) {
				validationErrs = append(validationErrs, errors.Errorf("group %d references unknown constraint index %d", gi, idx))
				continue
			}
			covered[idx]++
		}
	}
	for i := range constraints {
		switch covered[i] {
		case 0:
			validationErrs = append(validationErrs, errors.Errorf("constraint %d belongs to no group", i))
		case 1:
		default:
			validationErrs = append(validationErrs, errors.Errorf("constraint %d belongs to %d groups, expected exactly one", i, covered[i]))
		}
	}
	if err := utilerrors.NewAggregate(validationErrs); err != nil {
		return nil, errs.InputInvalid(err)
	}
	return &Specification{Constraints: constraints, Groups: groups, Optimality: optimality}, nil
}

// Evaluator model-checks a Specification's properties and folds the results
// into family-level verdicts.
type Evaluator struct {
	Verifier  verifier.Verifier
	Precision float64
}

// NewEvaluator constructs an Evaluator bound to a verifier and precision.
func NewEvaluator(v verifier.Verifier, precision float64) *Evaluator {
	return &Evaluator{Verifier: v, Precision: precision}
}

// CheckResult is one property's DTMC-level outcome.
type CheckResult struct {
	Satisfied bool
	Value     float64
}

// EvaluateDTMC model-checks every constraint against a singleton family's
// chain and folds per-group disjunction: the specification is satisfied iff
// every group has at least one satisfied member.
func (e *Evaluator) EvaluateDTMC(s *Specification, chain verifier.Model) (bool, []CheckResult, error) {
	results := make([]CheckResult, len(s.Constraints))
	for i, p := range s.Constraints {
		res, err := e.Verifier.Check(chain, p.Primary, nil)
		if err != nil {
			return false, nil, errors.Wrapf(err, "spec: checking constraint %d against chain", i)
		}
		value := res.Values[p.InitialState]
		threshold := p.effectiveThreshold(res.Values)
		results[i] = CheckResult{Satisfied: meets(value, threshold, p, e.Precision), Value: value}
	}
	satisfied := true
	for _, g := range s.Groups {
		if !anySatisfied(g, results) {
			satisfied = false
			break
		}
	}
	return satisfied, results, nil
}

func anySatisfied(g Group, results []CheckResult) bool {
	for _, idx := range g {
		if results[idx].Satisfied {
			return true
		}
	}
	return false
}

// SchedulerAnalyzer folds a verifier-produced scheduler for one property's
// primary direction into a scheduler.Result, via the quotient coordinator's
// action labeling and the verifier's expected-visits computation. Injected
// by the caller so this package does not depend on quotient directly.
type SchedulerAnalyzer func(sub verifier.SubModel, sched verifier.Scheduler, values []float64, minimizing bool) (scheduler.Result, error)

// MDPPropertyResult is one property's §4.5 MDP-regime outcome.
type MDPPropertyResult struct {
	Feasibility    Feasibility
	PrimaryValue   float64
	SecondaryValue float64
	Analysis       scheduler.Result
	Improves       bool
}

// EvaluateMDP model-checks every constraint's primary and secondary
// direction against a family's sub-MDP, computing per-property feasibility
// and (for the primary direction) a scheduler analysis. hints supplies a
// per-property prior value vector (nil entries fall back to a cold
// verifier call).
func (e *Evaluator) EvaluateMDP(s *Specification, sub verifier.SubModel, hints map[int][]float64, analyze SchedulerAnalyzer) ([]MDPPropertyResult, error) {
	if s.SchedulerHyperOptimality != nil {
		return nil, ErrNotImplemented
	}
	results := make([]MDPPropertyResult, len(s.Constraints))
	for i, p := range s.Constraints {
		if p.Kind == KindSchedulerHyperOptimality {
			return nil, ErrNotImplemented
		}

		var hint []float64
		if hints != nil {
			hint = hints[i]
		}
		primary, err := e.Verifier.Check(sub.Model, p.Primary, hint)
		if err != nil {
			return nil, errors.Wrapf(err, "spec: checking constraint %d primary direction", i)
		}
		if primary.Scheduler == nil {
			return nil, errs.VerifierFailure(errors.Errorf("spec: verifier returned no scheduler for constraint %d", i))
		}
		secondary, err := e.Verifier.Check(sub.Model, p.Secondary, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "spec: checking constraint %d secondary direction", i)
		}

		primaryValue := primary.Values[p.InitialState]
		secondaryValue := secondary.Values[p.InitialState]
		primaryThreshold := p.effectiveThreshold(primary.Values)
		secondaryThreshold := p.effectiveThreshold(secondary.Values)

		feasibility := FeasibilityNone
		if meets(secondaryValue, secondaryThreshold, p, e.Precision) {
			feasibility = FeasibilityTrue
		} else if !meets(primaryValue, primaryThreshold, p, e.Precision) {
			feasibility = FeasibilityFalse
		}

		analysis, err := analyze(sub, *primary.Scheduler, primary.Values, p.Minimize)
		if err != nil {
			return nil, errors.Wrapf(err, "spec: analyzing scheduler for constraint %d", i)
		}

		results[i] = MDPPropertyResult{
			Feasibility:    feasibility,
			PrimaryValue:   primaryValue,
			SecondaryValue: secondaryValue,
			Analysis:       analysis,
		}
	}
	return results, nil
}

// FoldGroups aggregates per-constraint MDP feasibility into a family-level
// verdict: a group is True iff any member is True, False iff every member
// is False, else None; the family is True iff every group is True, False
// iff any group is False, else None.
func FoldGroups(groups []Group, results []MDPPropertyResult) Feasibility {
	overall := FeasibilityTrue
	for _, g := range groups {
		anyTrue, allFalse := false, true
		for _, idx := range g {
			switch results[idx].Feasibility {
			case FeasibilityTrue:
				anyTrue = true
				allFalse = false
			case FeasibilityFalse:
			default:
				allFalse = false
			}
		}
		switch {
		case anyTrue:
			// group true, doesn't change overall unless already downgraded
		case allFalse:
			return FeasibilityFalse
		default:
			overall = FeasibilityNone
		}
	}
	return overall
}

// MergeSelections merges the primary qualitative selections of every
// constraint property into one family-wide selection (spec.md §9 resolved
// open question). Two properties' per-hole option lists are compatible iff
// they are set-equal; an incompatible pair means distinct constraints
// genuinely disagree on that hole's option, so the merge fails and the
// family cannot be promoted to a candidate witness without further
// splitting. Compatible lists are merged by positional concatenation, then
// deduplicated.
func MergeSelections(results []MDPPropertyResult) (scheduler.Selection, bool) {
	merged := make(scheduler.Selection)
	for _, r := range results {
		for h, opts := range r.Analysis.Selection {
			existing, ok := merged[h]
			if !ok {
				cp := make([]int, len(opts))
				copy(cp, opts)
				merged[h] = cp
				continue
			}
			if !setEqual(existing, opts) {
				return nil, false
			}
			merged[h] = append(append([]int{}, existing...), opts...)
		}
	}
	for h, opts := range merged {
		merged[h] = dedupeSorted(opts)
	}
	return merged, true
}

func setEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if !set[x] {
			return false
		}
	}
	return true
}

func dedupeSorted(xs []int) []int {
	seen := make(map[int]bool, len(xs))
	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}

// Improves reports whether value strictly improves over currentBest beyond
// the evaluator's configured precision, in p's optimization sense. A nil
// currentBest (no witness found yet) always improves.
func (e *Evaluator) Improves(p Property, value float64, currentBest *float64) bool {
	if currentBest == nil {
		return true
	}
	if p.Minimize {
		return value < *currentBest-e.Precision
	}
	return value > *currentBest+e.Precision
}
