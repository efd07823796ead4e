// Package plan implements the plan tree and its two optimizer passes: the
// join-order DP planner and the rule-based rewrite driver, operating over
// PredicateVec conjuncts.
//
// Plan nodes are modeled as tagged variants behind a single Node interface
// (a type switch at each dispatch site), not a class hierarchy; the tree
// is a pure tree with no parent pointers, and every rewrite builds new
// nodes rather than mutating in place to avoid cyclic plan references.
package plan

import (
	"vecql/expr"
)

// Node is one plan tree node.
type Node interface {
	// TableBitset is the OR of every base table this subtree scans.
	TableBitset() expr.Bitset
	// Children returns this node's direct children, in evaluation order.
	Children() []Node
	// WithChildren returns a shallow copy of this node with its children
	// replaced, used by the rewrite driver to rebuild a tree bottom-up
	// without mutating the original.
	WithChildren(children []Node) Node
}

// Scan is a base-table access.
type Scan struct {
	Table  string
	Bitset expr.Bitset
}

func (s Scan) TableBitset() expr.Bitset          { return s.Bitset }
func (s Scan) Children() []Node                  { return nil }
func (s Scan) WithChildren(children []Node) Node { return s }

// Join is an unordered nested-loop join annotated with the PredicateVec
// elements that first become applicable at this node.
type Join struct {
	Left, Right Node
	Predicates  []Element
}

func (j Join) TableBitset() expr.Bitset { return j.Left.TableBitset() | j.Right.TableBitset() }
func (j Join) Children() []Node         { return []Node{j.Left, j.Right} }
func (j Join) WithChildren(children []Node) Node {
	j.Left, j.Right = children[0], children[1]
	return j
}

// HashJoin is a Join rewritten by ConvertToHashJoinRule once an equality
// predicate straddling its two sides was found.
type HashJoin struct {
	Left, Right Node
	Predicates  []Element
	// EqualityIndex names the Predicates element driving the hash key (the
	// first straddling equality found); residual predicates are re-checked
	// after the probe, same as HashJoinVecExecutor's Residual.
	EqualityIndex int
}

func (h HashJoin) TableBitset() expr.Bitset { return h.Left.TableBitset() | h.Right.TableBitset() }
func (h HashJoin) Children() []Node         { return []Node{h.Left, h.Right} }
func (h HashJoin) WithChildren(children []Node) Node {
	h.Left, h.Right = children[0], children[1]
	return h
}

// Project evaluates Exprs over its child, producing Aliases-named columns.
type Project struct {
	Child   Node
	Exprs   []expr.Expr
	Aliases []string
}

func (p Project) TableBitset() expr.Bitset { return p.Child.TableBitset() }
func (p Project) Children() []Node         { return []Node{p.Child} }
func (p Project) WithChildren(children []Node) Node {
	p.Child = children[0]
	return p
}

// Aggregate is a minimal group-by/aggregate node — enough shape to be a
// valid DP-planner root, full aggregate execution is out of scope.
type Aggregate struct {
	Child      Node
	GroupBy    []expr.Expr
	Aggregates []expr.Expr
}

func (a Aggregate) TableBitset() expr.Bitset { return a.Child.TableBitset() }
func (a Aggregate) Children() []Node         { return []Node{a.Child} }
func (a Aggregate) WithChildren(children []Node) Node {
	a.Child = children[0]
	return a
}

// PredicateTransfer is the optional root wrapper: a
// passthrough slot standing in for the out-of-scope predicate-transfer
// optimization (per-edge Bloom sketch semi-join filtering), inserted so the
// plan tree shape matches the reference implementation and a real
// optimization can be plugged in later without a plan-node migration.
type PredicateTransfer struct {
	Child Node
}

func (p PredicateTransfer) TableBitset() expr.Bitset { return p.Child.TableBitset() }
func (p PredicateTransfer) Children() []Node         { return []Node{p.Child} }
func (p PredicateTransfer) WithChildren(children []Node) Node {
	p.Child = children[0]
	return p
}

// IsDML reports whether root is an Insert/Delete/Update-shaped plan; a
// minimal stand-in since DML plan nodes are out of this core's scope.
// Always false here, as only read plans are constructed by this package.
func IsDML(root Node) bool { return false }
