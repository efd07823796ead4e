package plan

import (
	"vecql/catalog"
	"vecql/config"
	"vecql/expr"
)

// MaxDPTables is the join-order DP planner's table-count ceiling.
const MaxDPTables = 20

// Applicable reports whether the DP planner's preconditions hold for root:
// cost-based optimization is enabled, root is Project or Aggregate over a
// subtree of only Joins and Scans, the table count is within bounds, and
// cardinality information exists for every base table.
func Applicable(root Node, opts config.OptimizerOptions, cat *catalog.Catalog) bool {
	if !opts.EnableCostBased {
		return false
	}
	var child Node
	switch n := root.(type) {
	case Project:
		child = n.Child
	case Aggregate:
		child = n.Child
	default:
		return false
	}
	tables, _, ok := extractGraph(child)
	if !ok || len(tables) == 0 || len(tables) > MaxDPTables {
		return false
	}
	names := make([]string, len(tables))
	for i, s := range tables {
		names[i] = s.Table
	}
	return cat.HasStatsFor(names)
}

// extractGraph walks n depth-first, collecting each
// SeqScan's Scan node and every Join's predicate elements. ok is false if n
// contains anything other than Scan/Join (the DP planner only applies over
// a pure join/scan subtree).
func extractGraph(n Node) (tables []Scan, preds []Element, ok bool) {
	switch v := n.(type) {
	case Scan:
		return []Scan{v}, nil, true
	case Join:
		lt, lp, lok := extractGraph(v.Left)
		rt, rp, rok := extractGraph(v.Right)
		if !lok || !rok {
			return nil, nil, false
		}
		tables = append(tables, lt...)
		tables = append(tables, rt...)
		preds = append(preds, lp...)
		preds = append(preds, rp...)
		preds = append(preds, v.Predicates...)
		return tables, preds, true
	default:
		return nil, nil, false
	}
}

// dpState is the per-engine-call working set for one DP invocation: the
// cost/choice/cardinality tables indexed by table-subset bitmask.
//
// choose[S] always holds a nonempty, proper submask of S once computed (a
// split's T side can never be the empty bitmask) — but dp.go still tracks
// hasChoice[S] explicitly, rather than testing choose[S]==0, to keep mask 0
// and "not yet computed" textually distinct: an integer sentinel conflating
// the two is a common source of off-by-one planner bugs.
type dpState struct {
	tables   []Scan
	preds    []Element
	tableIdx map[string]int
	scanCost float64
	hjCost   float64
	cat      *catalog.Catalog

	dp        map[expr.Bitset]float64
	choose    map[expr.Bitset]expr.Bitset
	hasChoice map[expr.Bitset]bool
	isHJ      map[expr.Bitset]bool
	card      map[expr.Bitset]float64
}

// Optimize runs the DP join-order planner over root and returns the
// rewritten plan; ok is false if Applicable(root, ...) was false, in which
// case root is returned unchanged.
func Optimize(root Node, opts config.OptimizerOptions, cat *catalog.Catalog) (Node, bool) {
	if !Applicable(root, opts, cat) {
		return root, false
	}

	var child Node
	rebuild := func(newChild Node) Node { return newChild }
	switch n := root.(type) {
	case Project:
		child = n.Child
		rebuild = func(newChild Node) Node { n.Child = newChild; return n }
	case Aggregate:
		child = n.Child
		rebuild = func(newChild Node) Node { n.Child = newChild; return n }
	}

	tables, preds, _ := extractGraph(child)
	idx := make(map[string]int, len(tables))
	for i, s := range tables {
		idx[s.Table] = i
	}

	st := &dpState{
		tables:    tables,
		preds:     preds,
		tableIdx:  idx,
		scanCost:  opts.ScanCost,
		hjCost:    opts.HashJoinCost,
		cat:       cat,
		dp:        make(map[expr.Bitset]float64),
		choose:    make(map[expr.Bitset]expr.Bitset),
		hasChoice: make(map[expr.Bitset]bool),
		isHJ:      make(map[expr.Bitset]bool),
		card:      make(map[expr.Bitset]float64),
	}
	full := expr.Bitset(1)<<uint(len(tables)) - 1
	st.solve(full)

	newChild := st.reconstruct(full)
	return rebuild(newChild), true
}

func (st *dpState) tableNamesOf(mask expr.Bitset) []string {
	var names []string
	for i, s := range st.tables {
		if mask&(1<<uint(i)) != 0 {
			names = append(names, s.Table)
		}
	}
	return names
}

func (st *dpState) cardOf(mask expr.Bitset) float64 {
	if v, ok := st.card[mask]; ok {
		return v
	}
	if v, ok := st.cat.CardinalityHint(st.tableNamesOf(mask)); ok {
		st.card[mask] = v
		return v
	}
	// Popcount 1: a base table's cardinality comes straight from catalog
	// stats. Popcount > 1 with no matching hint: fall back to an
	// independence-assumption product over an arbitrary split, since there
	// is no other source for a joined subset's cardinality.
	if isPow2(mask) {
		i := bitIndex(mask)
		v, _ := st.cat.Cardinality(st.tables[i].Table)
		st.card[mask] = v
		return v
	}
	lo := mask & (-mask) // lowest set bit
	rest := mask &^ lo
	v := st.cardOf(lo) * st.cardOf(rest)
	st.card[mask] = v
	return v
}

func isPow2(m expr.Bitset) bool { return m != 0 && m&(m-1) == 0 }

func bitIndex(m expr.Bitset) int {
	i := 0
	for m > 1 {
		m >>= 1
		i++
	}
	return i
}

// solve fills dp/choose/isHJ for every submask of full, bottom-up by
// increasing popcount implicit in the numeric mask ordering used below.
func (st *dpState) solve(full expr.Bitset) {
	n := len(st.tables)
	for i := 0; i < n; i++ {
		mask := expr.Bitset(1) << uint(i)
		st.dp[mask] = st.scanCost * st.cardOf(mask)
	}

	for mask := expr.Bitset(1); mask <= full; mask++ {
		if isPow2(mask) || mask&full != mask {
			continue
		}
		if popcount(mask) < 2 {
			continue
		}
		st.solveSubset(mask)
	}
}

func (st *dpState) solveSubset(mask expr.Bitset) {
	best := -1.0
	var bestT expr.Bitset
	var bestHJ bool

	// Enumerate each unordered bipartition {T, mask\T} exactly once:
	// iterate every nonempty proper submask T and keep only the
	// representative where T's integer value is >= its complement's.
	for t := (mask - 1) & mask; t != 0; t = (t - 1) & mask {
		complement := mask ^ t
		if t < complement {
			continue
		}
		cost, hj := st.pairCost(mask, t, complement)
		total := st.dp[t] + st.dp[complement] + cost
		if best < 0 || total < best {
			best = total
			bestT = t
			bestHJ = hj
		}
	}

	st.dp[mask] = best
	st.choose[mask] = bestT
	st.hasChoice[mask] = true
	st.isHJ[mask] = bestHJ
}

func (st *dpState) pairCost(mask, t, complement expr.Bitset) (cost float64, isHJ bool) {
	cardT, cardC := st.cardOf(t), st.cardOf(complement)
	cartesian := st.scanCost * cardT * cardC

	hashJoinable := false
	for _, p := range st.preds {
		if p.IsHashJoinApplicable(t, complement) {
			hashJoinable = true
			break
		}
	}
	if !hashJoinable {
		return cartesian, false
	}

	hashed := st.hjCost*(cardT+cardC) + st.scanCost*st.cardOf(mask)
	if hashed < cartesian {
		return hashed, true
	}
	return cartesian, false
}

func popcount(m expr.Bitset) int {
	n := 0
	for m != 0 {
		m &= m - 1
		n++
	}
	return n
}

// reconstruct rebuilds the plan subtree for mask by recursing on choose,
// assigning to each new Join the predicate elements whose left/right
// bitsets are both contained in mask but not both contained in either
// child.
func (st *dpState) reconstruct(mask expr.Bitset) Node {
	if isPow2(mask) {
		i := bitIndex(mask)
		return Scan{Table: st.tables[i].Table, Bitset: mask}
	}

	t := st.choose[mask]
	complement := mask ^ t
	left := st.reconstruct(t)
	right := st.reconstruct(complement)

	var assigned []Element
	for _, p := range st.preds {
		both := subsetOf(p.LeftMask, mask) && subsetOf(p.RightMask, mask)
		if !both {
			continue
		}
		firstHere := !(subsetOf(p.LeftMask, t) && subsetOf(p.RightMask, t)) &&
			!(subsetOf(p.LeftMask, complement) && subsetOf(p.RightMask, complement))
		if firstHere {
			assigned = append(assigned, p)
		}
	}

	return Join{Left: left, Right: right, Predicates: assigned}
}
