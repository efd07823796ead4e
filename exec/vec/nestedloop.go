package vec

import (
	"vecql/exec/batch"
	"vecql/expr"
)

// JoinVecExecutor is the nested-loop fallback used when no equality
// predicate straddles the join's two sides: the left child is
// materialized fully during Init(); each Next() resumes from
// (probeIndex, buildBatchIdx, buildRowIdx) so that exactly BatchSize output
// rows are yielded per call regardless of how many probe/build rows that
// spans.
type JoinVecExecutor struct {
	Left, Right Executor
	Predicate   expr.Expr
	OutSpecs    []batch.ColumnSpec
	BatchSize   int

	buildBatches []*batch.Batch

	probeBatch    *batch.Batch
	probeIndex    int
	buildBatchIdx int
	buildRowIdx   int
	rightDone     bool

	stats Stats
}

func (j *JoinVecExecutor) Init() error {
	if err := j.Left.Init(); err != nil {
		return err
	}
	for {
		b, err := j.Left.Next()
		if err != nil {
			return err
		}
		if b.NumRows() == 0 {
			break
		}
		j.buildBatches = append(j.buildBatches, b)
	}
	return j.Right.Init()
}

func (j *JoinVecExecutor) OutputSchema() []batch.ColumnSpec { return j.OutSpecs }

func (j *JoinVecExecutor) GetTotalOutputSize() int64 {
	return j.stats.Total() + sumChildren(j.Left, j.Right)
}

func (j *JoinVecExecutor) fetchProbeBatch() error {
	b, err := j.Right.Next()
	if err != nil {
		return err
	}
	if b.NumRows() == 0 {
		j.rightDone = true
		j.probeBatch = nil
		return nil
	}
	j.probeBatch = b
	j.probeIndex = 0
	j.buildBatchIdx = 0
	j.buildRowIdx = 0
	return nil
}

func (j *JoinVecExecutor) Next() (*batch.Batch, error) {
	out := &batch.Batch{}
	out.Init(j.OutSpecs, j.BatchSize)

	for !out.Full() {
		if j.probeBatch == nil {
			if j.rightDone {
				break
			}
			if err := j.fetchProbeBatch(); err != nil {
				return nil, err
			}
			if j.probeBatch == nil {
				break
			}
		}

		if j.probeIndex >= j.probeBatch.NumRows() {
			j.probeBatch = nil
			continue
		}
		if !j.probeBatch.IsValid(j.probeIndex) {
			j.probeIndex++
			j.buildBatchIdx, j.buildRowIdx = 0, 0
			continue
		}
		if j.buildBatchIdx >= len(j.buildBatches) {
			j.probeIndex++
			j.buildBatchIdx, j.buildRowIdx = 0, 0
			continue
		}

		build := j.buildBatches[j.buildBatchIdx]
		if j.buildRowIdx >= build.NumRows() {
			j.buildBatchIdx++
			j.buildRowIdx = 0
			continue
		}

		mask := evalAgainstProbeRow(j.Predicate, build, j.probeBatch, j.probeIndex)
		for ; j.buildRowIdx < build.NumRows() && !out.Full(); j.buildRowIdx++ {
			if !build.IsValid(j.buildRowIdx) {
				continue
			}
			if j.buildRowIdx < len(mask.Bools) && mask.Bools[j.buildRowIdx] {
				row := concatRow(build, j.buildRowIdx, j.probeBatch, j.probeIndex, len(j.OutSpecs))
				out.Append(row)
				out.SetValid(out.NumRows()-1, true)
			}
		}
		if j.buildRowIdx >= build.NumRows() {
			j.buildBatchIdx++
			j.buildRowIdx = 0
			if j.buildBatchIdx >= len(j.buildBatches) {
				j.probeIndex++
				j.buildBatchIdx, j.buildRowIdx = 0, 0
			}
		}
	}

	j.stats.Add(out.NumValid())
	return out, nil
}

// evalAgainstProbeRow broadcasts one probe row as a constant vector,
// concatenates it with the build batch's columns, and evaluates predicate
// once over the build batch's length.
func evalAgainstProbeRow(predicate expr.Expr, build *batch.Batch, probe *batch.Batch, probeRow int) batch.Column {
	n := build.NumRows()
	concat := &batch.Batch{}
	specs := make([]batch.ColumnSpec, 0, len(build.Columns)+len(probe.Columns))
	for _, c := range build.Columns {
		specs = append(specs, batch.ColumnSpec{Table: c.Table, Name: c.Name, Type: c.Type})
	}
	for _, c := range probe.Columns {
		specs = append(specs, batch.ColumnSpec{Table: c.Table, Name: c.Name, Type: c.Type})
	}
	concat.Init(specs, n)
	for r := 0; r < n; r++ {
		row := make([]batch.Scalar, 0, len(specs))
		for _, c := range build.Columns {
			row = append(row, c.Get(r))
		}
		for _, c := range probe.Columns {
			row = append(row, c.Get(probeRow))
		}
		concat.Append(row)
	}
	return predicate.Eval(concat)
}
