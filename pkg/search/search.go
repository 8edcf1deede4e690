// Package search implements the AR refinement loop (spec.md §4.4): the
// outer loop that pops a family from a LIFO frontier, consults the SMT
// conflict cache, builds and evaluates its sub-MDP (or, for singletons, its
// chain), interprets the verdict, and either reports a feasible witness,
// discards an infeasible family, or splits an undecided one.
package search

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/paynt-synth/synthcore/pkg/errs"
	"github.com/paynt-synth/synthcore/pkg/family"
	"github.com/paynt-synth/synthcore/pkg/quotient"
	"github.com/paynt-synth/synthcore/pkg/scheduler"
	"github.com/paynt-synth/synthcore/pkg/smt"
	"github.com/paynt-synth/synthcore/pkg/spec"
	"github.com/paynt-synth/synthcore/pkg/verifier"
)

// Loop owns everything the refinement loop needs across its lifetime: the
// quotient coordinator, the raw transition-system builder (needed to
// restrict and chain-collapse the scheduler-induced sub-sub-MDPs the
// scheduler-selection analyzer works over, which are not the quotient's own
// top-level model), the specification evaluator, and the SMT cache.
type Loop struct {
	coordinator   *quotient.Coordinator
	builder       verifier.Builder
	evaluator     *spec.Evaluator
	specification *spec.Specification

	backend          smt.Backend
	tracer           Tracer
	reporter         Reporter
	reportEvery      int
	logger           logrus.FieldLogger
	incompleteSearch bool
	cancelled        func() bool
}

// Option configures a Loop at construction time, mirroring the teacher's
// functional-options constructor idiom.
type Option func(*Loop)

// WithBackend overrides the SMT cache's solver backend (default
// smt.NewGiniBackend()).
func WithBackend(b smt.Backend) Option { return func(l *Loop) { l.backend = b } }

// WithTracer attaches a progress tracer, called once per family popped.
func WithTracer(t Tracer) Option { return func(l *Loop) { l.tracer = t } }

// WithReporter attaches a periodic statistics reporter, invoked every
// reportEvery iterations.
func WithReporter(r Reporter, reportEvery int) Option {
	return func(l *Loop) {
		l.reporter = r
		l.reportEvery = reportEvery
	}
}

// WithLogger injects a structured logger.
func WithLogger(log logrus.FieldLogger) Option { return func(l *Loop) { l.logger = log } }

// WithIncompleteSearch enables simple-hole collapsing (spec.md §4.4 step 5);
// the volume it removes is always accounted as discarded, never feasible.
func WithIncompleteSearch(enabled bool) Option {
	return func(l *Loop) { l.incompleteSearch = enabled }
}

// WithDeadline installs a cancellation predicate, polled between refinement
// steps only (spec.md §5: no verifier call is ever interrupted).
func WithDeadline(cancelled func() bool) Option {
	return func(l *Loop) { l.cancelled = cancelled }
}

// New builds a refinement loop bound to a quotient coordinator, the raw
// builder, and a specification evaluator.
func New(coordinator *quotient.Coordinator, builder verifier.Builder, evaluator *spec.Evaluator, specification *spec.Specification, opts ...Option) *Loop {
	l := &Loop{
		coordinator:   coordinator,
		builder:       builder,
		evaluator:     evaluator,
		specification: specification,
		backend:       smt.NewGiniBackend(),
		tracer:        DefaultTracer{},
		reporter:      NoopReporter{},
		reportEvery:   1000,
		logger:        logrus.StandardLogger(),
		cancelled:     func() bool { return false },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is the §6 "synthesize" return shape.
type Result struct {
	Feasible   bool
	Unknown    bool // true on cancellation: Assignment/Stats reflect the partial run
	Assignment *family.DesignSpace
	Stats      Statistics

	// FrontierSize is the remaining frontier size, meaningful only when
	// Unknown is true (spec.md §7 kind 5, cancellation).
	FrontierSize int
}

// Synthesize runs the AR loop to completion (or cancellation) starting from
// root, which must be a fresh root design space (refinement depth 0).
func (l *Loop) Synthesize(root *family.DesignSpace) (Result, error) {
	cache, err := smt.NewCache(l.backend, catalogSizes(root.Holes))
	if err != nil {
		return Result{}, errors.Wrap(err, "search: building SMT cache")
	}

	stats := Statistics{RootSize: root.Holes.Size()}
	stats.start()

	var bestValue *float64
	var bestAssignment *family.DesignSpace

	frontier := []*family.DesignSpace{root}
	iteration := 0

	checkpoint := func(f *family.DesignSpace) {
		l.tracer.Trace(searchPosition{family: f, frontierSize: len(frontier), stats: stats})
		if l.reportEvery > 0 && iteration%l.reportEvery == 0 {
			l.reporter.Report(stats)
		}
	}

	for len(frontier) > 0 {
		if l.cancelled() {
			stats.finish()
			return Result{Unknown: true, Assignment: bestAssignment, Stats: stats, FrontierSize: len(frontier)}, nil
		}

		f := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		iteration++

		cache.EnterFamily(f.RefinementDepth)

		sat, err := cache.CheckFamily(currentHoleOptions(f.Holes))
		if err != nil {
			return Result{}, errors.Wrap(err, "search: checking family satisfiability against the SMT cache")
		}
		if !sat {
			stats.discard(f.Holes.Size())
			checkpoint(f)
			continue
		}

		perHole, flat, bitset := l.coordinator.SelectActions(f)
		f.SelectedActions = flat
		f.HoleSelectedActions = perHole

		sub, err := l.coordinator.Restrict(bitset)
		if err != nil {
			return Result{}, errors.Wrap(err, "search: restricting sub-MDP")
		}

		if f.IsSingleton() {
			stats.recordDTMCIteration()

			chain, _, err := l.coordinator.BuildChain(f)
			if err != nil {
				return Result{}, errors.Wrap(err, "search: building singleton chain")
			}
			satisfied, _, err := l.evaluator.EvaluateDTMC(l.specification, chain)
			if err != nil {
				return Result{}, errors.Wrap(err, "search: evaluating singleton chain")
			}

			if !satisfied {
				assigned := singletonAssignment(f.Holes)
				conflict := f.Holes.HoleIndices()
				if _, err := cache.Exclude(assigned, conflict, len(f.Holes)); err != nil {
					return Result{}, errors.Wrap(err, "search: learning conflict")
				}
				stats.discard(f.Holes.Size())
				checkpoint(f)
				continue
			}

			stats.explore(f.Holes.Size())

			if l.specification.Optimality == nil {
				stats.finish()
				checkpoint(f)
				return Result{Feasible: true, Assignment: f, Stats: stats}, nil
			}

			value, err := l.optimalityValue(chain, l.specification.Optimality.InitialState, nil)
			if err != nil {
				return Result{}, errors.Wrap(err, "search: evaluating optimality on singleton")
			}
			if l.evaluator.Improves(*l.specification.Optimality, value, bestValue) {
				v := value
				bestValue = &v
				bestAssignment = f
			}
			checkpoint(f)
			continue
		}

		stats.recordMDPIteration(numStates(sub))

		primaryHints := make(map[int][]float64)
		var optimalityHint []float64
		for idx, hint := range f.TranslateHints(sub.StateMap) {
			if hint.Primary == nil {
				continue
			}
			if idx == -1 {
				optimalityHint = hint.Primary
				continue
			}
			primaryHints[idx] = hint.Primary
		}

		results, err := l.evaluator.EvaluateMDP(l.specification, sub, primaryHints, l.analyzeScheduler)
		if err != nil {
			return Result{}, errors.Wrap(err, "search: evaluating MDP family")
		}

		familyFeasibility := spec.FoldGroups(l.specification.Groups, results)

		switch familyFeasibility {
		case spec.FeasibilityFalse:
			stats.discard(f.Holes.Size())
			checkpoint(f)
			continue

		case spec.FeasibilityTrue:
			if l.specification.Optimality == nil {
				stats.explore(f.Holes.Size())
				stats.finish()
				checkpoint(f)
				return Result{Feasible: true, Assignment: f.PickAny(), Stats: stats}, nil
			}
			// All constraints hold throughout f; only the optimality
			// property can still distinguish assignments within it, so
			// fall through to the undecided-handling path using the
			// optimality scheduler instead of the constraint schedulers.
			optResult, err := l.analyzeOptimality(sub, optimalityHint)
			if err != nil {
				return Result{}, errors.Wrap(err, "search: analyzing optimality scheduler")
			}
			if optResult.selection.Consistent() {
				candidate := promote(f, optResult.selection)
				frontier = append(frontier, candidate)
				checkpoint(f)
				continue
			}
			hole, ok := chooseSplitter(optResult.scores)
			if !ok {
				// No hole distinguishes the optimum further; treat every
				// remaining option as equally good and pick one.
				stats.explore(f.Holes.Size())
				stats.finish()
				checkpoint(f)
				return Result{Feasible: true, Assignment: f.PickAny(), Stats: stats}, nil
			}
			l.pushSplit(&frontier, f, sub, hole, optResult.selection[hole], nil, &stats)
			checkpoint(f)
			continue

		default: // FeasibilityNone: undecided
			merged, consistent := spec.MergeSelections(results)
			if consistent && merged.Consistent() {
				candidate := promote(f, merged)
				frontier = append(frontier, candidate)
				checkpoint(f)
				continue
			}

			scores := combinedHoleScores(results)
			hole, ok := chooseSplitter(scores)
			if !ok {
				return Result{}, errs.InvariantViolation(errors.New("search: family undecided but no inconsistent hole reported a score"))
			}
			used := combinedUsedOptions(results, hole)
			l.pushSplit(&frontier, f, sub, hole, used, results, &stats)
			checkpoint(f)
			continue
		}
	}

	stats.finish()
	if bestAssignment != nil {
		return Result{Feasible: true, Assignment: bestAssignment, Stats: stats}, nil
	}
	return Result{Feasible: false, Stats: stats}, nil
}

// pushSplit partitions f on hole (whose used options are `used`), applies
// incomplete-search simple-hole collapsing if enabled, and pushes the
// children onto *frontier in reverse order so the first-listed child (a
// core branch, when used has more than one option) is explored first.
func (l *Loop) pushSplit(frontier *[]*family.DesignSpace, f *family.DesignSpace, sub verifier.SubModel, hole int, used []int, results []spec.MDPPropertyResult, stats *Statistics) {
	groups := splitOptions(f.Holes[hole].Options(), used)
	// Per-property analysis hints are keyed by full state-indexed value
	// vectors that spec.MDPPropertyResult does not retain (only the
	// InitialState scalar survives evaluation); children fall back to a
	// cold verifier call, which TranslateHint/TranslateHints already
	// degrade to gracefully on a nil hint.
	children := splitFamily(f, hole, groups, nil)

	var simpleHoles []int
	var resolved map[int]int
	if l.incompleteSearch {
		simpleHoles = l.coordinator.SimpleHoles(sub)
		if results != nil {
			resolved = resolvedOptions(results, simpleHoles)
		}
	}

	for _, child := range children {
		if simpleHoles != nil && resolved != nil {
			removed := collapseSimpleHoles(child.Holes, simpleHoles, hole, resolved)
			if removed > 0 {
				stats.discard(removed)
			}
		}
	}

	for i := len(children) - 1; i >= 0; i-- {
		*frontier = append(*frontier, children[i])
	}
}

// promote builds a fully-resolved child design space from a consistent
// selection: every hole the selection mentions is pinned to its single
// option; every other hole keeps its first current option (spec.md §4.4
// step 4's "promote to a candidate witness," double-checked by the loop's
// own singleton-handling path on its next pop).
func promote(f *family.DesignSpace, selection scheduler.Selection) *family.DesignSpace {
	candidate := f.PickAny()
	for h, opt := range selection.Assignment() {
		candidate.Holes.AssumeHoleOptions(h, []int{opt})
	}
	parent := f.CollectParentInfo(nil)
	child := family.NewChildDesignSpace(candidate.Holes, parent)
	return child
}

func catalogSizes(holes family.Holes) []int {
	out := make([]int, len(holes))
	for i, h := range holes {
		out[i] = len(h.Labels())
	}
	return out
}

func currentHoleOptions(holes family.Holes) map[int][]int {
	out := make(map[int][]int, len(holes))
	for i, h := range holes {
		out[i] = h.Options()
	}
	return out
}

func singletonAssignment(holes family.Holes) map[int]int {
	out := make(map[int]int, len(holes))
	for i, h := range holes {
		out[i] = h.Options()[0]
	}
	return out
}

func numStates(sub verifier.SubModel) int {
	if tm, ok := sub.Model.(verifier.TransitionModel); ok {
		return tm.NumStates()
	}
	return 0
}

// optimalityValue model-checks the optimality property's primary direction
// against model and reads back its value at initialState.
func (l *Loop) optimalityValue(model verifier.Model, initialState int, hint []float64) (float64, error) {
	res, err := l.evaluator.Verifier.Check(model, l.specification.Optimality.Primary, hint)
	if err != nil {
		return 0, err
	}
	return res.Values[initialState], nil
}

// schedulerAnalysis bundles a scheduler-selection result alongside the
// per-hole scores needed for splitter choice, for use outside the
// constraint-property loop (i.e. for the optimality property itself).
type schedulerAnalysis struct {
	selection scheduler.Selection
	scores    map[int]float64
}

// analyzeOptimality runs the §4.3 pipeline against the optimality
// property's own primary direction.
func (l *Loop) analyzeOptimality(sub verifier.SubModel, hint []float64) (schedulerAnalysis, error) {
	res, err := l.evaluator.Verifier.Check(sub.Model, l.specification.Optimality.Primary, hint)
	if err != nil {
		return schedulerAnalysis{}, err
	}
	if res.Scheduler == nil {
		return schedulerAnalysis{}, errs.VerifierFailure(errors.New("search: verifier returned no scheduler for the optimality property"))
	}
	result, err := l.analyzeScheduler(sub, *res.Scheduler, res.Values, l.specification.Optimality.Minimize)
	if err != nil {
		return schedulerAnalysis{}, err
	}
	return schedulerAnalysis{selection: result.Selection, scores: result.HoleScores}, nil
}

// analyzeScheduler implements spec.SchedulerAnalyzer: it restricts sub.Model
// to the scheduler's supported actions, collapses the result into a chain,
// computes that chain's expected visits, and folds everything through
// pkg/scheduler's §4.3 pipeline. This is the one place search depends on
// the raw verifier.Builder directly rather than through the quotient
// coordinator, because the model being restricted here is already a
// family's sub-MDP, not the quotient's top-level model.
func (l *Loop) analyzeScheduler(sub verifier.SubModel, sched verifier.Scheduler, values []float64, minimizing bool) (scheduler.Result, error) {
	tm, ok := sub.Model.(verifier.TransitionModel)
	if !ok {
		return scheduler.Result{}, errs.InvariantViolation(errors.New("search: sub-MDP does not expose transition structure for scheduler analysis"))
	}
	rm, _ := sub.Model.(verifier.RewardModel)

	label := func(choice int) map[int]int {
		if choice < 0 || choice >= len(sub.ActionMap) {
			return nil
		}
		return l.coordinator.ActionLabel(sub.ActionMap[choice]).Options
	}

	induced, err := l.builder.Restrict(sub.Model, sched.Support(tm.NumChoices()))
	if err != nil {
		return scheduler.Result{}, errors.Wrap(err, "search: restricting scheduler-induced sub-chain")
	}
	chain, err := l.builder.ToChain(induced.Model)
	if err != nil {
		return scheduler.Result{}, errors.Wrap(err, "search: collapsing scheduler-induced chain")
	}
	localVisits, err := l.evaluator.Verifier.ExpectedVisits(chain)
	if err != nil {
		return scheduler.Result{}, errors.Wrap(err, "search: computing expected visits")
	}
	visits := family.GeneralizeHint(localVisits, induced.StateMap, tm.NumStates())

	var rewardName string
	if l.specification.Optimality != nil {
		rewardName = l.specification.Optimality.RewardName
	}
	return scheduler.Analyze(tm, rm, rewardName, label, sched, values, visits, minimizing), nil
}
