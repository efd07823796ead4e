package plan

import (
	"vecql/catalog"
	"vecql/config"
)

// Rule rewrites a single node, given its already-rewritten children. ok is
// false if the rule does not apply; n is returned unchanged in that case.
type Rule func(n Node) (rewritten Node, ok bool)

// ApplyRules walks root bottom-up (it rewrites the children first, then
// tries the rules at the current node), trying each rule
// at every node in order. The first rule that matches a node wins for that
// node — matches do not cascade within the same pass, so a node rewritten
// by one rule is not immediately re-offered to the rest of the list.
func ApplyRules(root Node, rules []Rule) Node {
	children := root.Children()
	if len(children) > 0 {
		newChildren := make([]Node, len(children))
		for i, c := range children {
			newChildren[i] = ApplyRules(c, rules)
		}
		root = root.WithChildren(newChildren)
	}

	for _, r := range rules {
		if rewritten, ok := r(root); ok {
			return rewritten
		}
	}
	return root
}

// ConvertToHashJoinRule turns any Join carrying a predicate equality that
// straddles its two children into a HashJoin. Unlike the DP planner, this
// rule is always on: it runs whether or not cost-based
// optimization is enabled, since a hash join is strictly an execution
// strategy and never changes the join's result set.
func ConvertToHashJoinRule(n Node) (Node, bool) {
	j, ok := n.(Join)
	if !ok {
		return n, false
	}
	left, right := j.Left.TableBitset(), j.Right.TableBitset()
	for i, p := range j.Predicates {
		if p.IsHashJoinApplicable(left, right) {
			return HashJoin{
				Left:          j.Left,
				Right:         j.Right,
				Predicates:    j.Predicates,
				EqualityIndex: i,
			}, true
		}
	}
	return n, false
}

// DefaultRules is the rewrite pass applied to every plan regardless of
// whether the DP planner ran.
var DefaultRules = []Rule{ConvertToHashJoinRule}

// InsertPredicateTransfer wraps root in a PredicateTransfer node when
// enabled and root is not a DML plan.
func InsertPredicateTransfer(root Node, opts config.OptimizerOptions) Node {
	if !opts.EnablePredicateTransfer || IsDML(root) {
		return root
	}
	return PredicateTransfer{Child: root}
}

// Rewrite runs the full optimization pipeline over root: the join-order DP
// planner when applicable, the always-on rule pass, and finally the
// optional PredicateTransfer wrapper.
func Rewrite(root Node, opts config.OptimizerOptions, cat *catalog.Catalog) Node {
	if dp, ok := Optimize(root, opts, cat); ok {
		root = dp
	}
	root = ApplyRules(root, DefaultRules)
	return InsertPredicateTransfer(root, opts)
}
