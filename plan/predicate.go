package plan

import (
	"vecql/exec/batch"
	"vecql/expr"
)

// Element is one conjunctive clause of a decomposed boolean expression: a
// binary condition plus the table bitsets its left and right
// sub-expressions reference.
type Element struct {
	Expr      expr.Expr
	LeftMask  expr.Bitset
	RightMask expr.Bitset
}

// IsHashJoinApplicable reports whether e is an equality whose two sides lie
// wholly within {t, s}, straddling the partition in either orientation.
func (e Element) IsHashJoinApplicable(t, s expr.Bitset) bool {
	b, ok := e.Expr.(expr.Binary)
	if !ok || b.Operator != expr.OpEq {
		return false
	}
	straddlesOneWay := subsetOf(e.LeftMask, t) && subsetOf(e.RightMask, s)
	straddlesOtherWay := subsetOf(e.LeftMask, s) && subsetOf(e.RightMask, t)
	return straddlesOneWay || straddlesOtherWay
}

func subsetOf(mask, of expr.Bitset) bool { return mask&^of == 0 }

// Decompose walks e's top-level AND structure into a flat vector of binary-
// condition clauses. Non-binary atoms are wrapped as
// `expr != 0` with an empty right-side bitset.
func Decompose(e expr.Expr, tableIndex map[string]int) []Element {
	var out []Element
	var walk func(expr.Expr)
	walk = func(n expr.Expr) {
		if b, ok := n.(expr.Binary); ok && b.Operator == expr.OpAnd {
			walk(b.Left)
			walk(b.Right)
			return
		}
		out = append(out, elementOf(n, tableIndex))
	}
	walk(e)
	return out
}

func elementOf(n expr.Expr, tableIndex map[string]int) Element {
	if b, ok := n.(expr.Binary); ok && b.Operator != expr.OpAnd {
		return Element{
			Expr:      n,
			LeftMask:  b.Left.TableMask(tableIndex),
			RightMask: b.Right.TableMask(tableIndex),
		}
	}
	// Non-binary atom: wrap as `expr != 0`, empty right-side bitset.
	wrapped := expr.Binary{Operator: expr.OpNe, Left: n, Right: expr.Literal{Value: batch.Int64Scalar(0)}}
	return Element{Expr: wrapped, LeftMask: n.TableMask(tableIndex), RightMask: 0}
}

// Clone returns a deep-enough copy of els: a new backing array holding a
// copy of each Element, so changing an element of the clone leaves els
// untouched. The Expr trees themselves are shared, since Decompose builds
// them as immutable values.
func Clone(els []Element) []Element {
	out := make([]Element, len(els))
	copy(out, els)
	return out
}

// Concatenate appends b's elements after a's, returning a fresh slice.
func Concatenate(a, b []Element) []Element {
	out := make([]Element, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// ProjectThroughRemap rewrites every column reference in els via remap,
// recomputing each element's bitsets against the new tableIndex.
func ProjectThroughRemap(els []Element, remap func(expr.ColumnRef) expr.ColumnRef, tableIndex map[string]int) []Element {
	out := make([]Element, len(els))
	for i, e := range els {
		b := e.Expr.(expr.Binary)
		newExpr := expr.Binary{
			Operator: b.Operator,
			Left:     expr.Remap(b.Left, remap),
			Right:    expr.Remap(b.Right, remap),
		}
		out[i] = Element{
			Expr:      newExpr,
			LeftMask:  newExpr.Left.TableMask(tableIndex),
			RightMask: newExpr.Right.TableMask(tableIndex),
		}
	}
	return out
}
