package smt

import (
	"github.com/pkg/errors"

	"github.com/paynt-synth/synthcore/pkg/errs"
)

// Cache is the SMT conflict cache of spec.md §4.6: one EqLit per (hole,
// option) pair, a permanent encoding of "every hole picks exactly one of
// its admitted options," and a scope stack mirroring the refinement tree's
// depth so that conflicts learned while exploring a family are forgotten
// again once the search backtracks past that family's parent.
//
// Every Backend.Push and every Backend.Assert call opens exactly one frame
// that a later Backend.Pop call closes (see Backend's doc comment); Cache
// tracks how many such frames belong to each family-tree depth so
// EnterFamily can unwind precisely the right number of them.
type Cache struct {
	backend       Backend
	eq            [][]Var // eq[hole][option]
	catalogSizes  []int
	framesAtDepth []int // framesAtDepth[i] = #frames opened at depth i+1
}

// NewCache builds a cache whose holes admit catalogSizes[hole] options
// each, asserting the "exactly one option per hole" encoding once and
// permanently (outside any family scope, so it is never popped).
func NewCache(backend Backend, catalogSizes []int) (*Cache, error) {
	c := &Cache{
		backend:      backend,
		eq:           make([][]Var, len(catalogSizes)),
		catalogSizes: catalogSizes,
	}
	for h, n := range catalogSizes {
		lits := make([]Var, n)
		for o := 0; o < n; o++ {
			lits[o] = backend.EqLit(h, o)
		}
		c.eq[h] = lits
		if err := backend.Assert(backend.Or(lits...)); err != nil {
			return nil, errors.Wrapf(err, "smt: asserting hole %d domain", h)
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if err := backend.Assert(backend.Or(backend.Not(lits[i]), backend.Not(lits[j]))); err != nil {
					return nil, errors.Wrapf(err, "smt: asserting hole %d exclusivity", h)
				}
			}
		}
	}
	return c, nil
}

func (c *Cache) currentDepth() int {
	return len(c.framesAtDepth)
}

// EnterFamily moves the cache's scope to the family at the given
// refinement-tree depth (the root family is depth 0 and is never pushed:
// conflicts learned there are permanent for the run). Popping back past a
// shallower depth than the current one discards every frame opened at the
// depths in between, matching the teacher's depth-tracked Gini scope.
func (c *Cache) EnterFamily(depth int) {
	for c.currentDepth() > 0 && c.currentDepth() >= depth {
		n := c.framesAtDepth[len(c.framesAtDepth)-1]
		for i := 0; i < n; i++ {
			c.backend.Pop()
		}
		c.framesAtDepth = c.framesAtDepth[:len(c.framesAtDepth)-1]
	}
	if depth == 0 {
		return
	}
	c.backend.Push()
	c.framesAtDepth = append(c.framesAtDepth, 1)
}

// countFrame records that one more Push/Assert-consuming frame was opened
// at the current depth, so a later EnterFamily pops it along with the rest.
func (c *Cache) countFrame() {
	if c.currentDepth() == 0 {
		return
	}
	top := len(c.framesAtDepth) - 1
	c.framesAtDepth[top]++
}

// Exclude learns a conflict clause: assigned is the partial hole-option
// assignment that was found infeasible, and conflict is the subset of its
// holes actually responsible (spec.md §4.6's generalized conflict,
// typically produced by the verifier/quotient projection rather than the
// raw assignment, so later families sharing only the irrelevant holes are
// pruned too). The clause is asserted in the cache's current family scope.
// holes restricts which hole indices EqLit was built for (defensive bound
// check); a conflict entry outside that range is a caller error.
//
// Exclude additionally returns an estimate of the number of full
// assignments the clause rules out: the product of catalog sizes over
// every hole NOT named in conflict, since those holes are free to vary
// while the clause's holes stay pinned (paynt's `exclude_assignment`
// pruning-estimate idiom, SPEC_FULL.md §D.4), used by search.Loop to
// maintain its discarded-volume statistic.
func (c *Cache) Exclude(assigned map[int]int, conflict []int, holes int) (int64, error) {
	lits := make([]Var, 0, len(conflict))
	inConflict := make(map[int]bool, len(conflict))
	for _, h := range conflict {
		if h < 0 || h >= holes {
			return 0, errs.InvariantViolation(errors.Errorf("smt: conflict references unknown hole %d", h))
		}
		opt, ok := assigned[h]
		if !ok {
			return 0, errs.InvariantViolation(errors.Errorf("smt: conflict references hole %d with no assignment", h))
		}
		lits = append(lits, c.backend.Not(c.eq[h][opt]))
		inConflict[h] = true
	}
	if err := c.backend.Assert(c.backend.Or(lits...)); err != nil {
		return 0, errors.Wrap(err, "smt: asserting conflict clause")
	}
	c.countFrame()

	var pruned int64 = 1
	for h := 0; h < holes && h < len(c.catalogSizes); h++ {
		if !inConflict[h] {
			pruned *= int64(c.catalogSizes[h])
		}
	}
	return pruned, nil
}

// CheckFamily reports whether some assignment restricting each hole in
// holes to its admitted options (and satisfying every previously learned
// conflict clause still in scope) is still satisfiable.
func (c *Cache) CheckFamily(holes map[int][]int) (bool, error) {
	assumptions := c.domainAssumptions(holes)
	return c.backend.CheckSatAssuming(assumptions...)
}

// PickAssignment behaves like CheckFamily but, on success, additionally
// reads back a full hole assignment from the backend's model -- used to
// produce a concrete candidate witness (spec.md §4.4's "pick any remaining
// assignment" step) without a second, independent enumeration.
func (c *Cache) PickAssignment(holes map[int][]int) (map[int]int, bool, error) {
	sat, err := c.CheckFamily(holes)
	if err != nil || !sat {
		return nil, sat, err
	}
	assignment := make(map[int]int, len(c.eq))
	for h, lits := range c.eq {
		for o, lit := range lits {
			ok, err := c.backend.ModelValue(lit)
			if err != nil {
				return nil, false, errors.Wrapf(err, "smt: reading model value for hole %d option %d", h, o)
			}
			if ok {
				assignment[h] = o
				break
			}
		}
	}
	return assignment, true, nil
}

// domainAssumptions builds, for every restricted hole, the disjunction of
// its admitted options' literals (a hole absent from holes is left
// unrestricted).
func (c *Cache) domainAssumptions(holes map[int][]int) []Var {
	assumptions := make([]Var, 0, len(holes))
	for h, options := range holes {
		lits := make([]Var, len(options))
		for i, o := range options {
			lits[i] = c.eq[h][o]
		}
		assumptions = append(assumptions, c.backend.Or(lits...))
	}
	return assumptions
}
