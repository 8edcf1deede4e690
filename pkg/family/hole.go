// Package family implements the hole/design-space data model: holes with
// option catalogs, the design space (family) they compose into, the
// parent-info snapshot carried across refinement, and the combination
// coloring used to tag quotient-MDP substructures.
package family

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Hole is a named parameter with a finite, ordered, immutable catalog of
// option labels and a current option set (a subset of catalog indices).
// Option identity is the catalog index; order within Options is irrelevant
// to semantics but is preserved for reproducibility.
type Hole struct {
	name    string
	labels  []string // immutable catalog, shared across copies
	options []int    // current option indices into labels
}

// NewHole constructs a hole whose current option set is its full catalog.
func NewHole(name string, labels []string) (*Hole, error) {
	if len(labels) == 0 {
		return nil, errors.Errorf("hole %q: option catalog must not be empty", name)
	}
	options := make([]int, len(labels))
	for i := range labels {
		options[i] = i
	}
	return &Hole{name: name, labels: labels, options: options}, nil
}

func (h *Hole) Name() string { return h.name }

// Labels returns the immutable catalog of option labels.
func (h *Hole) Labels() []string { return h.labels }

// Options returns the hole's current option set. Callers must not mutate
// the returned slice.
func (h *Hole) Options() []int { return h.options }

// Size is the number of options currently assumed.
func (h *Hole) Size() int { return len(h.options) }

// IsTrivial is true when the hole has exactly one current option.
func (h *Hole) IsTrivial() bool { return h.Size() == 1 }

// IsUnrefined is true when the current option set equals the full catalog.
func (h *Hole) IsUnrefined() bool { return h.Size() == len(h.labels) }

// HasOption reports whether option is currently assumed.
func (h *Hole) HasOption(option int) bool {
	for _, o := range h.options {
		if o == option {
			return true
		}
	}
	return false
}

// AssumeOptions restricts the hole's current option set. Assuming options
// outside the catalog is a programming error and panics: the spec treats
// this as a condition that must never be silently recovered from.
func (h *Hole) AssumeOptions(options []int) {
	for _, o := range options {
		if o < 0 || o >= len(h.labels) {
			panic(fmt.Sprintf("hole %q: option %d outside catalog of size %d", h.name, o, len(h.labels)))
		}
	}
	if len(options) == 0 {
		panic(fmt.Sprintf("hole %q: option set must not be empty", h.name))
	}
	h.options = options
}

// Copy returns a shallow copy: the immutable label catalog is shared, the
// current option slice is the same backing slice (AssumeOptions always
// replaces it wholesale rather than mutating in place, so aliasing it here
// is safe until the next AssumeOptions call on either copy).
func (h *Hole) Copy() *Hole {
	return &Hole{name: h.name, labels: h.labels, options: h.options}
}

func (h *Hole) String() string {
	labels := make([]string, len(h.options))
	for i, o := range h.options {
		labels[i] = h.labels[o]
	}
	if len(labels) == 1 {
		return fmt.Sprintf("%s=%s", h.name, labels[0])
	}
	return fmt.Sprintf("%s: {%s}", h.name, joinStrings(labels))
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// sortedCopy returns a sorted copy of options, used where determinism in
// iteration order matters (e.g. suboption distribution, color enumeration).
func sortedCopy(options []int) []int {
	out := make([]int, len(options))
	copy(out, options)
	sort.Ints(out)
	return out
}
