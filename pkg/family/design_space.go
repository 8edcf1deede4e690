package family

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/pkg/errors"

	"github.com/paynt-synth/synthcore/pkg/errs"
)

// Hint is a pair of prior value vectors (primary/secondary direction) for
// one property, used to warm-start the verifier. Either side may be nil
// when unavailable; hints are always best-effort.
type Hint struct {
	Primary   []float64
	Secondary []float64
}

// ParentInfo is an immutable snapshot taken at the moment a family is
// split, attached to each child so they can incrementalize their own
// sub-MDP construction and verification without retaining a reference to
// the (no-longer-needed) parent family.
type ParentInfo struct {
	// PropertyIndices are the constraint indices still undecided in the
	// parent at the time of the split.
	PropertyIndices []int
	// AnalysisHints carries, for each undecided property index (and -1 for
	// the optimality property, if any), the parent's analysis result
	// generalized onto the quotient's global state space.
	AnalysisHints map[int]Hint
	// RefinementDepth is the parent's own depth.
	RefinementDepth int
	// SelectedActions is the parent's explicit list of non-default
	// quotient actions.
	SelectedActions []int
	// HoleSelectedActions holds, per hole, the list of non-default
	// quotient actions whose labeling mentions that hole.
	HoleSelectedActions [][]int
	// Splitter is the hole index used to split the parent.
	Splitter int
}

// DesignSpace is a list of holes augmented with refinement bookkeeping: the
// still-undecided constraint indices inherited from the parent, refinement
// depth, the parent-info snapshot, and the splitter hole chosen when this
// family is itself partitioned.
type DesignSpace struct {
	Holes

	PropertyIndices []int
	RefinementDepth int
	ParentInfo      *ParentInfo
	Splitter        int // -1 when not yet split

	// SelectedActions/HoleSelectedActions cache the result of the
	// quotient coordinator's most recent select_actions call for this
	// family; they seed ParentInfo for this family's own children.
	SelectedActions     []int
	HoleSelectedActions [][]int

	// SubMDP is an opaque handle to the realized sub-MDP once this family
	// has been built by the quotient coordinator. It is nil until then.
	// Its concrete type belongs to package quotient; family does not
	// interpret it, only carries it (avoids an import cycle).
	SubMDP any
}

// NewRootDesignSpace validates holes and wraps them into a fresh root
// design space (refinement depth 0, no parent).
func NewRootDesignSpace(holes Holes) (*DesignSpace, error) {
	var validationErrs []error
	seen := make(map[string]bool, len(holes))
	for i, h := range holes {
		if h == nil {
			validationErrs = append(validationErrs, errors.Errorf("hole at position %d is nil", i))
			continue
		}
		if len(h.options) == 0 {
			validationErrs = append(validationErrs, errors.Errorf("hole %q: current option set is empty", h.name))
		}
		if seen[h.name] {
			validationErrs = append(validationErrs, errors.Errorf("duplicate hole name %q", h.name))
		}
		seen[h.name] = true
	}
	if err := utilerrors.NewAggregate(validationErrs); err != nil {
		return nil, errs.InputInvalid(err)
	}
	return &DesignSpace{Holes: holes, Splitter: -1}, nil
}

// newChildDesignSpace builds a child from its holes and the parent snapshot,
// inheriting refinement depth and the still-undecided property indices.
func newChildDesignSpace(holes Holes, parent *ParentInfo) *DesignSpace {
	return &DesignSpace{
		Holes:           holes,
		PropertyIndices: parent.PropertyIndices,
		RefinementDepth: parent.RefinementDepth + 1,
		ParentInfo:      parent,
		Splitter:        -1,
	}
}

// NewChildDesignSpace is the exported constructor used by the quotient
// coordinator's split operation.
func NewChildDesignSpace(holes Holes, parent *ParentInfo) *DesignSpace {
	return newChildDesignSpace(holes, parent)
}

// Copy returns a design space with its holes shallow-copied and all other
// fields shared by value (refinement bookkeeping is set explicitly by
// callers that mutate it, e.g. PickAny clearing SubMDP).
func (ds *DesignSpace) Copy() *DesignSpace {
	cp := *ds
	cp.Holes = ds.Holes.Copy()
	return &cp
}

// PickAny returns a singleton design space selecting the first current
// option of every hole; metadata (depth, parent info, property indices) is
// carried over unchanged.
func (ds *DesignSpace) PickAny() *DesignSpace {
	cp := ds.Copy()
	cp.Holes = ds.Holes.PickAny()
	cp.SubMDP = nil
	return cp
}

// IsSingleton reports whether every hole has exactly one current option.
func (ds *DesignSpace) IsSingleton() bool {
	return ds.Holes.Size() == 1
}

// CollectParentInfo snapshots the fields a child needs from ds at the
// moment ds is split. analysisHints must already be generalized onto the
// quotient's global state space (see GeneralizeHint).
func (ds *DesignSpace) CollectParentInfo(analysisHints map[int]Hint) *ParentInfo {
	return &ParentInfo{
		PropertyIndices:     ds.PropertyIndices,
		AnalysisHints:       analysisHints,
		RefinementDepth:     ds.RefinementDepth,
		SelectedActions:     ds.SelectedActions,
		HoleSelectedActions: ds.HoleSelectedActions,
		Splitter:            ds.Splitter,
	}
}

// GeneralizeHint scatters a sub-MDP-local value vector onto the quotient's
// global state index space, using stateMap (local -> global). globalSize is
// the number of states in the quotient MDP.
func GeneralizeHint(localValues []float64, stateMap []int, globalSize int) []float64 {
	global := make([]float64, globalSize)
	for local, value := range localValues {
		global[stateMap[local]] = value
	}
	return global
}

// TranslateHint reprojects a hint vector keyed by global state index onto a
// child's local state space via its own stateMap (local -> global). Hints
// are best-effort: a nil input degrades gracefully to nil (forcing a cold
// verifier call for that property).
func TranslateHint(globalValues []float64, stateMap []int) []float64 {
	if globalValues == nil {
		return nil
	}
	local := make([]float64, len(stateMap))
	for i, g := range stateMap {
		local[i] = globalValues[g]
	}
	return local
}

// TranslateHints reprojects every hint inherited via ParentInfo onto this
// family's own sub-MDP state space, given that sub-MDP's stateMap. Returns
// nil if hints are unavailable (no parent, e.g. root family).
func (ds *DesignSpace) TranslateHints(stateMap []int) map[int]Hint {
	if ds.ParentInfo == nil || ds.ParentInfo.AnalysisHints == nil {
		return nil
	}
	out := make(map[int]Hint, len(ds.ParentInfo.AnalysisHints))
	for prop, hint := range ds.ParentInfo.AnalysisHints {
		out[prop] = Hint{
			Primary:   TranslateHint(hint.Primary, stateMap),
			Secondary: TranslateHint(hint.Secondary, stateMap),
		}
	}
	return out
}
