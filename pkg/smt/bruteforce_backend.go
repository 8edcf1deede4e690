package smt

// bfKind distinguishes the node shapes of a small boolean-expression tree.
type bfKind int

const (
	bfEq bfKind = iota
	bfAnd
	bfOr
	bfNot
)

// bfNode is a boolean-expression-tree node: the BruteForceBackend's
// fallback/verification counterpart to GiniBackend's CNF circuit. Built the
// same way (EqLit leaves combined by And/Or/Not) but evaluated by brute
// force rather than compiled to CNF, so it needs no incremental SAT solver
// at all -- useful when gini is unavailable or as an independent check on
// GiniBackend's answers.
type bfNode struct {
	kind         bfKind
	hole, option int
	children     []*bfNode
}

func (n *bfNode) eval(assignment []int) bool {
	switch n.kind {
	case bfEq:
		return assignment[n.hole] == n.option
	case bfAnd:
		for _, c := range n.children {
			if !c.eval(assignment) {
				return false
			}
		}
		return true
	case bfOr:
		for _, c := range n.children {
			if c.eval(assignment) {
				return true
			}
		}
		return false
	case bfNot:
		return !n.children[0].eval(assignment)
	}
	return false
}

// BruteForceBackend implements Backend by exhaustive enumeration over the
// hole catalog rather than SAT solving: asserted/pushed formulas accumulate
// as a stack of frames, and CheckSatAssuming walks the full cartesian
// product of option indices looking for one assignment that satisfies every
// frame plus the assumptions. Intended for small catalogs (tests, or a
// verification cross-check against GiniBackend), not for production search.
type BruteForceBackend struct {
	catalogSizes []int
	frames       [][]*bfNode // frames[i] = conjuncts asserted at scope depth i
	lastModel    []int
}

var _ Backend = (*BruteForceBackend)(nil)

// NewBruteForceBackend constructs a backend over holes whose option counts
// are catalogSizes[hole].
func NewBruteForceBackend(catalogSizes []int) *BruteForceBackend {
	return &BruteForceBackend{
		catalogSizes: catalogSizes,
		frames:       [][]*bfNode{{}},
	}
}

func (b *BruteForceBackend) EqLit(hole, option int) Var {
	return &bfNode{kind: bfEq, hole: hole, option: option}
}

func (b *BruteForceBackend) Or(lits ...Var) Var {
	return &bfNode{kind: bfOr, children: toBfNodes(lits)}
}

func (b *BruteForceBackend) And(lits ...Var) Var {
	return &bfNode{kind: bfAnd, children: toBfNodes(lits)}
}

func (b *BruteForceBackend) Not(lit Var) Var {
	return &bfNode{kind: bfNot, children: []*bfNode{lit.(*bfNode)}}
}

func (b *BruteForceBackend) Assert(lit Var) error {
	b.frames = append(b.frames, []*bfNode{lit.(*bfNode)})
	return nil
}

func (b *BruteForceBackend) Push() {
	b.frames = append(b.frames, nil)
}

func (b *BruteForceBackend) Pop() {
	b.frames = b.frames[:len(b.frames)-1]
}

func (b *BruteForceBackend) CheckSatAssuming(assumptions ...Var) (bool, error) {
	conjuncts := make([]*bfNode, 0)
	for _, f := range b.frames {
		conjuncts = append(conjuncts, f...)
	}
	conjuncts = append(conjuncts, toBfNodes(assumptions)...)

	assignment := make([]int, len(b.catalogSizes))
	if b.search(conjuncts, assignment, 0) {
		b.lastModel = append([]int(nil), assignment...)
		return true, nil
	}
	b.lastModel = nil
	return false, nil
}

func (b *BruteForceBackend) search(conjuncts []*bfNode, assignment []int, hole int) bool {
	if hole == len(assignment) {
		for _, c := range conjuncts {
			if !c.eval(assignment) {
				return false
			}
		}
		return true
	}
	for opt := 0; opt < b.catalogSizes[hole]; opt++ {
		assignment[hole] = opt
		if b.search(conjuncts, assignment, hole+1) {
			return true
		}
	}
	return false
}

func (b *BruteForceBackend) ModelValue(lit Var) (bool, error) {
	if b.lastModel == nil {
		return false, errNoModel
	}
	return lit.(*bfNode).eval(b.lastModel), nil
}

func toBfNodes(vars []Var) []*bfNode {
	out := make([]*bfNode, len(vars))
	for i, v := range vars {
		out[i] = v.(*bfNode)
	}
	return out
}
