// Package quotient implements the quotient coordinator (spec.md §4.2, §3):
// the single process-wide abstracted transition system that contains every
// action any instantiation of the design space could take, the
// action->hole-option labeling, and the two-regime projection of a family
// onto a restricted sub-MDP for the verifier.
package quotient

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/paynt-synth/synthcore/pkg/errs"
	"github.com/paynt-synth/synthcore/pkg/family"
	"github.com/paynt-synth/synthcore/pkg/verifier"
)

// ActionLabel is the hole-option labeling of one quotient action: a
// (possibly empty) map from hole index to the specific option that action
// presupposes. An action with an empty map is default.
type ActionLabel struct {
	Options map[int]int
}

// IsDefault reports whether this action presupposes no hole option at all.
func (l ActionLabel) IsDefault() bool { return len(l.Options) == 0 }

// Coordinator owns the quotient MDP, the action->hole-option map, the
// default-action bitset, and the combination coloring used to project a
// family onto its admitted actions without a full per-action scan.
type Coordinator struct {
	logger  logrus.FieldLogger
	builder verifier.Builder
	model   verifier.Model

	numHoles   int
	numActions int

	actionLabels   []ActionLabel
	defaultActions []bool

	coloring     *family.CombinationColoring
	actionColor  []int
	colorActions map[int][]int

	// stateHoles[s] is the set of holes whose options appear on any action
	// outgoing from state s, computed once if model implements
	// verifier.TransitionModel.
	stateHoles [][]int
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithLogger injects a structured logger, mirroring the teacher's
// constructor-injected logrus.FieldLogger idiom.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New builds a Coordinator over an already-constructed quotient model.
// actionLabels must have exactly one entry per action in model (global
// action indices 0..numActions-1).
func New(builder verifier.Builder, model verifier.Model, numHoles int, actionLabels []ActionLabel, opts ...Option) (*Coordinator, error) {
	if builder == nil {
		return nil, errors.New("quotient: builder must not be nil")
	}
	c := &Coordinator{
		logger:       logrus.StandardLogger(),
		builder:      builder,
		model:        model,
		numHoles:     numHoles,
		numActions:   len(actionLabels),
		actionLabels: actionLabels,
		coloring:     family.NewCombinationColoring(numHoles),
		colorActions: make(map[int][]int),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.defaultActions = make([]bool, c.numActions)
	c.actionColor = make([]int, c.numActions)
	for a, label := range actionLabels {
		if label.IsDefault() {
			c.defaultActions[a] = true
			continue
		}
		combo := make(family.Combination, numHoles)
		for i := range combo {
			combo[i] = family.AnyOption
		}
		for h, o := range label.Options {
			if h < 0 || h >= numHoles {
				return nil, errs.InvariantViolation(errors.Errorf("quotient: action %d labels unknown hole %d", a, h))
			}
			combo[h] = o
		}
		color, err := c.coloring.GetOrMakeColor(combo)
		if err != nil {
			return nil, errors.Wrapf(err, "quotient: coloring action %d", a)
		}
		c.actionColor[a] = color
		c.colorActions[color] = append(c.colorActions[color], a)
	}

	if tm, ok := model.(verifier.TransitionModel); ok {
		c.stateHoles = make([][]int, tm.NumStates())
		for s := 0; s < tm.NumStates(); s++ {
			seen := make(map[int]bool)
			for ch := tm.RowGroupStart(s); ch < tm.RowGroupEnd(s); ch++ {
				if ch >= len(actionLabels) {
					continue
				}
				for h := range actionLabels[ch].Options {
					seen[h] = true
				}
			}
			holes := make([]int, 0, len(seen))
			for h := range seen {
				holes = append(holes, h)
			}
			sort.Ints(holes)
			c.stateHoles[s] = holes
		}
	}

	c.logger.WithFields(logrus.Fields{
		"actions": c.numActions,
		"colors":  c.coloring.Colors(),
		"holes":   numHoles,
	}).Debug("quotient coordinator built")

	return c, nil
}

// NumActions is the size of the quotient action space.
func (c *Coordinator) NumActions() int { return c.numActions }

// Model returns the process-wide quotient model this coordinator owns.
func (c *Coordinator) Model() verifier.Model { return c.model }

// ActionLabel returns the hole-option labeling of a global action index.
func (c *Coordinator) ActionLabel(action int) ActionLabel { return c.actionLabels[action] }

// StateHoles returns the holes whose options appear on any action outgoing
// from state s in the process-wide quotient model, or nil if the model
// doesn't expose row-group structure.
func (c *Coordinator) StateHoles(state int) []int {
	if c.stateHoles == nil || state >= len(c.stateHoles) {
		return nil
	}
	return c.stateHoles[state]
}

// SelectActions projects ds onto the quotient: it returns the admitted
// global action indices (flat, sorted), a bitset over the full action
// space, and the per-hole lists of non-default admitted actions mentioning
// that hole (seeded for ds's own children via DesignSpace.CollectParentInfo).
//
// Two regimes (spec.md §4.2): a root family scans every quotient action via
// the combination coloring's Subcolors query; a non-root family with
// ParentInfo scans only the parent's already-selected actions, which is the
// incremental fast path essential for scaling.
func (c *Coordinator) SelectActions(ds *family.DesignSpace) (perHole [][]int, flat []int, bitset []bool) {
	if ds.ParentInfo == nil || ds.ParentInfo.Splitter < 0 {
		// No single-hole split produced ds (e.g. a promoted multi-hole
		// candidate witness): the incremental path assumes exactly one
		// hole narrowed since the parent, which doesn't hold here.
		flat = c.selectActionsRoot(ds)
	} else {
		flat = c.selectActionsChild(ds)
	}

	bitset = make([]bool, c.numActions)
	perHole = make([][]int, c.numHoles)
	for _, a := range flat {
		bitset[a] = true
		label := c.actionLabels[a]
		for h := range label.Options {
			perHole[h] = append(perHole[h], a)
		}
	}
	return perHole, flat, bitset
}

func (c *Coordinator) selectActionsRoot(ds *family.DesignSpace) []int {
	var flat []int
	for a, isDefault := range c.defaultActions {
		if isDefault {
			flat = append(flat, a)
		}
	}
	for _, color := range c.coloring.Subcolors(ds.Holes) {
		flat = append(flat, c.colorActions[color]...)
	}
	sort.Ints(flat)
	return flat
}

func (c *Coordinator) selectActionsChild(ds *family.DesignSpace) []int {
	parent := ds.ParentInfo
	keepColor := make(map[int]bool)
	for _, color := range c.coloring.SubcolorsProper(parent.Splitter, ds.Holes[parent.Splitter].Options()) {
		keepColor[color] = true
	}

	var flat []int
	for _, a := range parent.SelectedActions {
		color := c.actionColor[a]
		if color == 0 {
			flat = append(flat, a)
			continue
		}
		combo := c.coloring.Combination(color)
		if combo[parent.Splitter] == family.AnyOption || keepColor[color] {
			flat = append(flat, a)
		}
	}
	sort.Ints(flat)
	return flat
}

// Restrict builds the sub-MDP a family admits from its selected-action
// bitset, preserving the sub->super state and action maps so scheduler
// results and hints can be re-projected onto the quotient's global index
// space.
func (c *Coordinator) Restrict(bitset []bool) (verifier.SubModel, error) {
	sub, err := c.builder.Restrict(c.model, bitset)
	if err != nil {
		return verifier.SubModel{}, errors.Wrap(err, "quotient: restrict")
	}
	return sub, nil
}

// BuildChain constructs a deterministic sub-chain (DTMC) from a
// fully-resolved singleton family, used to double-check a candidate witness
// against the full specification before reporting feasibility.
func (c *Coordinator) BuildChain(singleton *family.DesignSpace) (verifier.Model, verifier.SubModel, error) {
	if !singleton.IsSingleton() {
		return nil, verifier.SubModel{}, errs.InvariantViolation(errors.New("quotient: BuildChain requires a singleton family"))
	}
	_, _, bitset := c.SelectActions(singleton)
	sub, err := c.Restrict(bitset)
	if err != nil {
		return nil, verifier.SubModel{}, err
	}
	chain, err := c.builder.ToChain(sub.Model)
	if err != nil {
		return nil, verifier.SubModel{}, errors.Wrap(err, "quotient: building chain")
	}
	return chain, sub, nil
}

// SimpleHoles returns the hole indices whose mentioning actions, within
// sub's transition structure, all occur in a single state's row group.
// These are candidates for incomplete-search collapsing (spec.md §4.4 step
// 5): provably sound for the current sub-MDP but not the super-family.
// Returns nil if sub.Model does not expose row-group structure.
func (c *Coordinator) SimpleHoles(sub verifier.SubModel) []int {
	tm, ok := sub.Model.(verifier.TransitionModel)
	if !ok {
		return nil
	}
	holeStates := make(map[int]map[int]bool)
	for s := 0; s < tm.NumStates(); s++ {
		for ch := tm.RowGroupStart(s); ch < tm.RowGroupEnd(s); ch++ {
			if ch >= len(sub.ActionMap) {
				continue
			}
			global := sub.ActionMap[ch]
			for h := range c.actionLabels[global].Options {
				if holeStates[h] == nil {
					holeStates[h] = make(map[int]bool)
				}
				holeStates[h][s] = true
			}
		}
	}
	var simple []int
	for h, states := range holeStates {
		if len(states) == 1 {
			simple = append(simple, h)
		}
	}
	sort.Ints(simple)
	return simple
}
