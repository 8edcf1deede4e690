// Package smt implements the SMT conflict cache (spec.md §4.6): a single
// integer-variable SMT context with one variable per hole, used to encode a
// family's current scope via push/pop and to accumulate generalized
// conflict clauses that prune the remaining search space.
//
// The cache is expressed over an abstract Backend so that two solver
// implementations -- a gini-backed incremental SAT context (the production
// backend, grounded on the teacher's resolver/solver package) and a
// brute-force enumerator (the fallback/verification backend) -- can sit
// behind the same interface, per spec.md §4.6's explicit requirement.
package smt

import "github.com/pkg/errors"

// Var is an opaque backend-specific literal handle: a gini z.Lit for
// GiniBackend, a small boolean-expression node for BruteForceBackend.
// Values are only ever passed back into the Backend that produced them.
type Var interface{}

// Backend is the logical interface spec.md §4.6 asks for: "make integer
// variable, equality literal, conjunction, disjunction, negation, assert,
// push, pop, check-sat under assumptions, model value." The cache makes
// integer variables and equality literals once at construction (EqLit);
// everything else is exposed directly.
type Backend interface {
	// EqLit returns the (stable) literal representing hole==option.
	EqLit(hole, option int) Var
	// Or builds the disjunction of lits.
	Or(lits ...Var) Var
	// And builds the conjunction of lits.
	And(lits ...Var) Var
	// Not negates lit.
	Not(lit Var) Var
	// Assert makes lit permanently true in the current scope. Its effect
	// is undone by exactly one subsequent Pop call: every Assert call
	// consumes one pop, the same as Push, so a caller tracking how many
	// Assert/Push calls it made at a given scope depth knows exactly how
	// many Pop calls undo them.
	Assert(lit Var) error
	// Push opens a new, empty scope.
	Push()
	// Pop closes the most recently opened scope (whether opened by Push or
	// by an Assert call), undoing everything asserted since.
	Pop()
	// CheckSatAssuming tests satisfiability of everything currently
	// asserted conjoined with assumptions, without making assumptions
	// permanent.
	CheckSatAssuming(assumptions ...Var) (bool, error)
	// ModelValue reports lit's truth value in the model found by the last
	// satisfiable CheckSatAssuming call. Its result is undefined if the
	// last call was unsatisfiable or none has been made yet.
	ModelValue(lit Var) (bool, error)
}

// errNoModel is returned by ModelValue implementations when no satisfying
// model is available.
var errNoModel = errors.New("smt: no model available (last check was unsatisfiable or none has run)")
