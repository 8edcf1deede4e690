package smt

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

const (
	giniSat   = 1
	giniUnsat = -1
)

// GiniBackend is the production SMT backend: hole-option equality is a
// fresh boolean literal built in a logic.C circuit (the same idiom the
// teacher's litMapping uses to build its CNF circuit via
// logic.NewCCap/ToCnf), family scope is an incremental Assume+Test/Untest
// push/pop exactly like the teacher's depthTrackingGini.
type GiniBackend struct {
	base inter.S
	c    *logic.C
}

var _ Backend = (*GiniBackend)(nil)

// NewGiniBackend constructs an empty gini-backed SMT context.
func NewGiniBackend() *GiniBackend {
	return &GiniBackend{
		base: gini.New(),
		c:    logic.NewCCap(64),
	}
}

func (b *GiniBackend) flush() {
	b.c.ToCnf(b.base)
}

func (b *GiniBackend) EqLit(hole, option int) Var {
	return b.c.Lit()
}

func (b *GiniBackend) Or(lits ...Var) Var {
	return b.c.Ors(toZLits(lits)...)
}

func (b *GiniBackend) And(lits ...Var) Var {
	return b.c.Ands(toZLits(lits)...)
}

func (b *GiniBackend) Not(lit Var) Var {
	return lit.(z.Lit).Not()
}

// Assert commits lit as a permanent assumption: Assume followed by Test
// commits it to the solver's trail until the matching Untest (Pop) call.
func (b *GiniBackend) Assert(lit Var) error {
	b.flush()
	b.base.Assume(lit.(z.Lit))
	b.base.Test(nil)
	return nil
}

// Push opens a new, empty scope: Assume with no literals, then Test, so
// the frame exists to be popped even though it asserts nothing.
func (b *GiniBackend) Push() {
	b.flush()
	b.base.Test(nil)
}

func (b *GiniBackend) Pop() {
	b.base.Untest()
}

func (b *GiniBackend) CheckSatAssuming(assumptions ...Var) (bool, error) {
	b.flush()
	b.base.Assume(toZLits(assumptions)...)
	switch b.base.Solve() {
	case giniSat:
		return true, nil
	case giniUnsat:
		return false, nil
	default:
		return false, errors.New("smt: gini backend returned an indeterminate result")
	}
}

func (b *GiniBackend) ModelValue(lit Var) (bool, error) {
	return b.base.Value(lit.(z.Lit)), nil
}

func toZLits(vars []Var) []z.Lit {
	out := make([]z.Lit, len(vars))
	for i, v := range vars {
		out[i] = v.(z.Lit)
	}
	return out
}
