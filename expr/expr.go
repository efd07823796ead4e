// Package expr implements a minimal scalar expression evaluator: just
// enough of a tagged-variant expression tree to drive and test the
// planner and vectorized operators, standing in for a full expression
// language.
//
// Modeled as tagged variants, not a class hierarchy: each variant
// implements Eval and TableMask itself, and Refs and Remap dispatch with a
// type switch.
package expr

import (
	"vecql/exec/batch"
)

// Bitset is a per-table membership mask: bit i set means table i is
// referenced.
type Bitset uint64

// Op names a binary comparison or boolean operator.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpAnd Op = "AND"
)

// Expr is a scalar expression node: a column reference, a literal, or a
// binary operation over two sub-expressions.
type Expr interface {
	// Eval computes one column of results against b, one entry per row of
	// b. It does not consult b's selection bitmap: deselected rows are
	// evaluated like any other, and callers skip them.
	Eval(b *batch.Batch) batch.Column
	// TableMask ORs together the table bits of every column this expression
	// (transitively) references.
	TableMask(tableIndex map[string]int) Bitset
}

// ColumnRef names one column by (table, column).
type ColumnRef struct {
	Table  string
	Column string
}

func (c ColumnRef) Eval(b *batch.Batch) batch.Column {
	col, ok := b.ColumnByName(c.Table, c.Column)
	if !ok {
		return batch.Column{Type: batch.TypeNull}
	}
	return col
}

func (c ColumnRef) TableMask(tableIndex map[string]int) Bitset {
	if i, ok := tableIndex[c.Table]; ok {
		return 1 << uint(i)
	}
	return 0
}

// Literal is a constant value, broadcast across every row on Eval.
type Literal struct {
	Value batch.Scalar
}

func (l Literal) Eval(b *batch.Batch) batch.Column {
	return batch.BroadcastColumn(l.Value, b.NumRows())
}

func (l Literal) TableMask(map[string]int) Bitset { return 0 }

// Binary applies Op to two sub-expressions, row by row.
type Binary struct {
	Operator Op
	Left     Expr
	Right    Expr
}

func (b2 Binary) Eval(b *batch.Batch) batch.Column {
	l := b2.Left.Eval(b)
	r := b2.Right.Eval(b)
	return batch.ApplyBinary(string(b2.Operator), l, r)
}

func (b2 Binary) TableMask(tableIndex map[string]int) Bitset {
	return b2.Left.TableMask(tableIndex) | b2.Right.TableMask(tableIndex)
}

// IsEquality reports whether e is a top-level equality comparison, the
// shape the DP planner and PredicateVec look for when deciding hash-join
// applicability.
func IsEquality(e Expr) bool {
	b, ok := e.(Binary)
	return ok && b.Operator == OpEq
}

// Refs walks e collecting every ColumnRef it contains, in left-to-right
// order; used by PredicateVec's schema-remap projection.
func Refs(e Expr) []ColumnRef {
	switch n := e.(type) {
	case ColumnRef:
		return []ColumnRef{n}
	case Binary:
		return append(Refs(n.Left), Refs(n.Right)...)
	default:
		return nil
	}
}

// Remap returns a copy of e with every ColumnRef rewritten by f.
func Remap(e Expr, f func(ColumnRef) ColumnRef) Expr {
	switch n := e.(type) {
	case ColumnRef:
		return f(n)
	case Binary:
		return Binary{Operator: n.Operator, Left: Remap(n.Left, f), Right: Remap(n.Right, f)}
	default:
		return e
	}
}
