package vec

import (
	"math"

	"vecql/exec/batch"
	"vecql/expr"
	"vecql/hashutil"
)

type buildEntry struct {
	batchIdx int
	rowIdx   int
}

// HashJoinVecExecutor implements the vectorized hash join: a
// build phase inside Init() drains the left child into a bucket map keyed
// by a seed-chained hash of the left hash expressions, and a probe phase
// in Next() streams the right child, looking up matches per row and
// materializing [build_cols..., probe_cols...] rows, buffering any output
// batches beyond the first produced per probe batch.
type HashJoinVecExecutor struct {
	Left, Right    Executor
	LeftHashExprs  []expr.Expr
	RightHashExprs []expr.Expr
	Residual       expr.Expr
	OutSpecs       []batch.ColumnSpec
	BatchSize      int

	buildBatches []*batch.Batch
	buildKeyCols [][]batch.Column
	buckets      map[uint64][]buildEntry
	buffer       []*batch.Batch
	stats        Stats
}

func (h *HashJoinVecExecutor) Init() error {
	if err := h.Left.Init(); err != nil {
		return err
	}
	if err := h.Right.Init(); err != nil {
		return err
	}
	h.buckets = make(map[uint64][]buildEntry)

	for {
		b, err := h.Left.Next()
		if err != nil {
			return err
		}
		if b.NumRows() == 0 {
			break
		}
		batchIdx := len(h.buildBatches)
		h.buildBatches = append(h.buildBatches, b)

		cols := make([]batch.Column, len(h.LeftHashExprs))
		for i, e := range h.LeftHashExprs {
			cols[i] = e.Eval(b)
		}
		h.buildKeyCols = append(h.buildKeyCols, cols)
		for r := 0; r < b.NumRows(); r++ {
			if !b.IsValid(r) {
				continue
			}
			key := chainHash(cols, r)
			h.buckets[key] = append(h.buckets[key], buildEntry{batchIdx: batchIdx, rowIdx: r})
		}
	}
	return nil
}

func (h *HashJoinVecExecutor) OutputSchema() []batch.ColumnSpec { return h.OutSpecs }

func (h *HashJoinVecExecutor) GetTotalOutputSize() int64 {
	return h.stats.Total() + sumChildren(h.Left, h.Right)
}

// chainHash combines one row's worth of hash-expression results into a
// single bucket key: seed chaining starting at hashutil.JoinSeed, string
// columns hashed via the 64-bit variant seeded by the previous hash, numeric
// columns via the 8-byte scalar hash.
func chainHash(cols []batch.Column, row int) uint64 {
	h := hashutil.JoinSeed
	for _, c := range cols {
		v := c.Get(row)
		if v.Type == batch.TypeString {
			h = hashutil.Hash64A(v.Str, h)
		} else {
			h = hashutil.Hash64A8(scalarBits(v), h)
		}
	}
	return h
}

func scalarBits(v batch.Scalar) uint64 {
	switch v.Type {
	case batch.TypeFloat64:
		return math.Float64bits(v.Float64)
	case batch.TypeBool:
		if v.Bool {
			return 1
		}
		return 0
	default:
		return uint64(v.Int64)
	}
}

func (h *HashJoinVecExecutor) Next() (*batch.Batch, error) {
	if len(h.buffer) > 0 {
		b := h.buffer[0]
		h.buffer = h.buffer[1:]
		return b, nil
	}

	for {
		probe, err := h.Right.Next()
		if err != nil {
			return nil, err
		}
		if probe.NumRows() == 0 {
			empty := &batch.Batch{}
			empty.Init(h.OutSpecs, h.BatchSize)
			return empty, nil
		}

		outputs := h.probeOneBatch(probe)
		if len(outputs) == 0 {
			continue
		}
		h.buffer = outputs[1:]
		h.stats.Add(outputs[0].NumValid())
		for _, b := range h.buffer {
			h.stats.Add(b.NumValid())
		}
		return outputs[0], nil
	}
}

func (h *HashJoinVecExecutor) probeOneBatch(probe *batch.Batch) []*batch.Batch {
	cols := make([]batch.Column, len(h.RightHashExprs))
	for i, e := range h.RightHashExprs {
		cols[i] = e.Eval(probe)
	}

	var outputs []*batch.Batch
	cur := &batch.Batch{}
	cur.Init(h.OutSpecs, h.BatchSize)

	flush := func() {
		if h.Residual != nil {
			mask := h.Residual.Eval(cur)
			for i := 0; i < cur.NumRows(); i++ {
				if i < len(mask.Bools) && !mask.Bools[i] {
					cur.SetValid(i, false)
				}
			}
		}
		outputs = append(outputs, cur)
		cur = &batch.Batch{}
		cur.Init(h.OutSpecs, h.BatchSize)
	}

	for r := 0; r < probe.NumRows(); r++ {
		if !probe.IsValid(r) {
			continue
		}
		key := chainHash(cols, r)
		for _, e := range h.buckets[key] {
			if !h.keysEqual(e, cols, r) {
				continue
			}
			buildBatch := h.buildBatches[e.batchIdx]
			row := concatRow(buildBatch, e.rowIdx, probe, r, len(h.OutSpecs))
			cur.Append(row)
			cur.SetValid(cur.NumRows()-1, true)
			if cur.Full() {
				flush()
			}
		}
	}
	if cur.NumRows() > 0 {
		flush()
	}
	return outputs
}

// keysEqual re-verifies the join equality for a candidate build entry
// against the probe row's key columns. chainHash is advisory only — a
// 64-bit hash collision between unrelated keys must never produce an
// output row, so every bucket hit is checked column-by-column before it is
// emitted.
func (h *HashJoinVecExecutor) keysEqual(e buildEntry, probeCols []batch.Column, probeRow int) bool {
	buildCols := h.buildKeyCols[e.batchIdx]
	for i := range probeCols {
		if !batch.ScalarsEqual(buildCols[i].Get(e.rowIdx), probeCols[i].Get(probeRow)) {
			return false
		}
	}
	return true
}

// concatRow builds one output row as [build_cols..., probe_cols...],
// positionally matching OutSpecs (build columns first, in build schema
// order, then probe columns in probe schema order).
func concatRow(build *batch.Batch, buildRow int, probe *batch.Batch, probeRow int, width int) []batch.Scalar {
	row := make([]batch.Scalar, 0, width)
	for _, c := range build.Columns {
		row = append(row, c.Get(buildRow))
	}
	for _, c := range probe.Columns {
		row = append(row, c.Get(probeRow))
	}
	return row
}
