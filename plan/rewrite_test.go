package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/catalog"
	"vecql/config"
	"vecql/expr"
)

func TestConvertToHashJoinRuleMatchesStraddlingEquality(t *testing.T) {
	idx := map[string]int{"a": 0, "b": 1}
	j := Join{
		Left:       Scan{Table: "a", Bitset: 1},
		Right:      Scan{Table: "b", Bitset: 2},
		Predicates: []Element{eqPred("a", "b", idx)},
	}
	out, ok := ConvertToHashJoinRule(j)
	require.True(t, ok)
	hj, ok := out.(HashJoin)
	require.True(t, ok)
	require.Equal(t, 0, hj.EqualityIndex)
}

func TestConvertToHashJoinRuleSkipsNonEqualityJoin(t *testing.T) {
	idx := map[string]int{"a": 0, "b": 1}
	gt := expr.Binary{
		Operator: expr.OpGt,
		Left:     expr.ColumnRef{Table: "a", Column: "x"},
		Right:    expr.ColumnRef{Table: "b", Column: "y"},
	}
	el := Element{Expr: gt, LeftMask: gt.Left.TableMask(idx), RightMask: gt.Right.TableMask(idx)}
	j := Join{Left: Scan{Table: "a", Bitset: 1}, Right: Scan{Table: "b", Bitset: 2}, Predicates: []Element{el}}

	_, ok := ConvertToHashJoinRule(j)
	require.False(t, ok)
}

func TestApplyRulesRecursesBottomUp(t *testing.T) {
	idx := map[string]int{"a": 0, "b": 1, "c": 2}
	inner := Join{
		Left:       Scan{Table: "a", Bitset: 1},
		Right:      Scan{Table: "b", Bitset: 2},
		Predicates: []Element{eqPred("a", "b", idx)},
	}
	outer := Join{Left: inner, Right: Scan{Table: "c", Bitset: 4}}

	rewritten := ApplyRules(outer, DefaultRules)
	outerJoin := rewritten.(Join)
	_, innerIsHash := outerJoin.Left.(HashJoin)
	require.True(t, innerIsHash)
}

func TestInsertPredicateTransferGatedByOptionAndDML(t *testing.T) {
	root := Scan{Table: "a", Bitset: 1}

	disabled := InsertPredicateTransfer(root, config.OptimizerOptions{EnablePredicateTransfer: false})
	require.Equal(t, root, disabled)

	enabled := InsertPredicateTransfer(root, config.OptimizerOptions{EnablePredicateTransfer: true})
	_, ok := enabled.(PredicateTransfer)
	require.True(t, ok)
}

func TestRewriteRunsDPThenRulesThenPredicateTransfer(t *testing.T) {
	idx := map[string]int{"a": 0, "b": 1}
	root := Project{
		Child: Join{
			Left:       Scan{Table: "a", Bitset: 1},
			Right:      Scan{Table: "b", Bitset: 2},
			Predicates: []Element{eqPred("a", "b", idx)},
		},
	}
	cat := catalog.New(config.OptimizerOptions{})
	cat.RegisterTable(catalog.TableSchema{Name: "a"}, 10)
	cat.RegisterTable(catalog.TableSchema{Name: "b"}, 100)

	opts := config.OptimizerOptions{
		EnableCostBased:         true,
		ScanCost:                1.0,
		HashJoinCost:            1.0,
		EnablePredicateTransfer: true,
	}

	out := Rewrite(root, opts, cat)
	pt, ok := out.(PredicateTransfer)
	require.True(t, ok)
	proj, ok := pt.Child.(Project)
	require.True(t, ok)
	_, ok = proj.Child.(HashJoin)
	require.True(t, ok)
}
