package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/exec/batch"
	"vecql/expr"
)

func tableIdx() map[string]int { return map[string]int{"a": 0, "b": 1} }

func TestDecomposeSplitsOnTopLevelAnd(t *testing.T) {
	// WHERE a.x = b.y AND a.z > 0.
	eq := expr.Binary{
		Operator: expr.OpEq,
		Left:     expr.ColumnRef{Table: "a", Column: "x"},
		Right:    expr.ColumnRef{Table: "b", Column: "y"},
	}
	gt := expr.Binary{
		Operator: expr.OpGt,
		Left:     expr.ColumnRef{Table: "a", Column: "z"},
		Right:    expr.Literal{Value: batch.Int64Scalar(0)},
	}
	and := expr.Binary{Operator: expr.OpAnd, Left: eq, Right: gt}

	els := Decompose(and, tableIdx())
	require.Len(t, els, 2)

	tA := expr.Bitset(1)
	tB := expr.Bitset(2)
	require.True(t, els[0].IsHashJoinApplicable(tA, tB))
	require.False(t, els[1].IsHashJoinApplicable(tA, tB))
}

func TestDecomposeWrapsNonBinaryAtom(t *testing.T) {
	atom := expr.ColumnRef{Table: "a", Column: "flag"}
	els := Decompose(atom, tableIdx())
	require.Len(t, els, 1)
	require.Equal(t, expr.Bitset(1), els[0].LeftMask)
	require.Equal(t, expr.Bitset(0), els[0].RightMask)
}

func TestIsHashJoinApplicableChecksBothOrientations(t *testing.T) {
	eq := expr.Binary{
		Operator: expr.OpEq,
		Left:     expr.ColumnRef{Table: "b", Column: "y"},
		Right:    expr.ColumnRef{Table: "a", Column: "x"},
	}
	els := Decompose(eq, tableIdx())
	require.True(t, els[0].IsHashJoinApplicable(1, 2))
	require.True(t, els[0].IsHashJoinApplicable(2, 1))
	require.False(t, els[0].IsHashJoinApplicable(1, 1))
}

func TestCloneIsIndependentSlice(t *testing.T) {
	eq := expr.Binary{Operator: expr.OpEq, Left: expr.ColumnRef{Table: "a", Column: "x"}, Right: expr.ColumnRef{Table: "b", Column: "y"}}
	orig := Decompose(eq, tableIdx())
	cloned := Clone(orig)
	cloned[0].LeftMask = 99
	require.NotEqual(t, cloned[0].LeftMask, orig[0].LeftMask)
}

func TestConcatenateAppendsBothSlices(t *testing.T) {
	eq := expr.Binary{Operator: expr.OpEq, Left: expr.ColumnRef{Table: "a", Column: "x"}, Right: expr.ColumnRef{Table: "b", Column: "y"}}
	a := Decompose(eq, tableIdx())
	b := Decompose(eq, tableIdx())
	out := Concatenate(a, b)
	require.Len(t, out, 2)
}

func TestProjectThroughRemapRewritesColumnsAndBitsets(t *testing.T) {
	eq := expr.Binary{
		Operator: expr.OpEq,
		Left:     expr.ColumnRef{Table: "a", Column: "x"},
		Right:    expr.ColumnRef{Table: "b", Column: "y"},
	}
	els := Decompose(eq, tableIdx())

	remap := func(c expr.ColumnRef) expr.ColumnRef {
		if c.Table == "a" {
			return expr.ColumnRef{Table: "ab", Column: c.Column}
		}
		return expr.ColumnRef{Table: "ab", Column: c.Column}
	}
	newIdx := map[string]int{"ab": 0}
	out := ProjectThroughRemap(els, remap, newIdx)
	require.Len(t, out, 1)
	require.Equal(t, expr.Bitset(1), out[0].LeftMask)
	require.Equal(t, expr.Bitset(1), out[0].RightMask)
}
