// Package vec implements the vectorized pull-model execution operators:
// SeqScan/RangeScan, Filter, Project, HashJoinVecExecutor and the
// nested-loop JoinVecExecutor, each exposing Init() once and Next()
// returning a batch.Batch, with an empty batch signaling end-of-stream.
package vec

import (
	"vecql/exec/batch"
	"vecql/expr"
	"vecql/storage"
)

// Executor is the pull-model operator contract.
type Executor interface {
	Init() error
	Next() (*batch.Batch, error)
	OutputSchema() []batch.ColumnSpec
	// GetTotalOutputSize recursively aggregates the cumulative output row
	// count of this operator and every descendant.
	GetTotalOutputSize() int64
}

// Stats tracks one operator's cumulative emitted row count.
type Stats struct {
	total int64
}

// Add records n additional output rows.
func (s *Stats) Add(n int) { s.total += int64(n) }

// Total returns this operator's own cumulative output row count.
func (s *Stats) Total() int64 { return s.total }

func sumChildren(children ...Executor) int64 {
	var total int64
	for _, c := range children {
		if c != nil {
			total += c.GetTotalOutputSize()
		}
	}
	return total
}

// RowDecoder turns a storage (key, value) pair into one logical row's worth
// of Scalars, in the order of the scan's OutputSchema. Decoding a table's
// wire encoding into typed columns is left to the catalog/row-codec layer
// (an external collaborator per ); this keeps SeqScan storage-
// agnostic.
type RowDecoder func(key, value []byte) []batch.Scalar

// SeqScanExecutor pulls every row of a table through the storage facade in
// primary-key order.
type SeqScanExecutor struct {
	Table     string
	Schema    []batch.ColumnSpec
	Facade    storage.Facade
	Decode    RowDecoder
	BatchSize int

	it    storage.Iterator
	stats Stats
}

func (s *SeqScanExecutor) Init() error {
	it, err := s.Facade.Iterator(s.Table)
	if err != nil {
		return err
	}
	s.it = it
	return nil
}

func (s *SeqScanExecutor) OutputSchema() []batch.ColumnSpec { return s.Schema }

func (s *SeqScanExecutor) GetTotalOutputSize() int64 { return s.stats.Total() }

func (s *SeqScanExecutor) Next() (*batch.Batch, error) {
	b := &batch.Batch{}
	b.Init(s.Schema, s.BatchSize)
	for !b.Full() && s.it.Valid() {
		b.Append(s.Decode(s.it.Key(), s.it.Value()))
		s.it.Next()
	}
	if err := s.it.Err(); err != nil {
		return nil, err
	}
	s.stats.Add(b.NumRows())
	return b, nil
}

// RangeScanExecutor is SeqScanExecutor bounded to [lo, hi].
type RangeScanExecutor struct {
	Table     string
	Schema    []batch.ColumnSpec
	Facade    storage.Facade
	Lo, Hi    storage.RangeBound
	Decode    RowDecoder
	BatchSize int

	it    storage.Iterator
	stats Stats
}

func (s *RangeScanExecutor) Init() error {
	it, err := s.Facade.RangeIterator(s.Table, s.Lo, s.Hi)
	if err != nil {
		return err
	}
	s.it = it
	return nil
}

func (s *RangeScanExecutor) OutputSchema() []batch.ColumnSpec { return s.Schema }

func (s *RangeScanExecutor) GetTotalOutputSize() int64 { return s.stats.Total() }

func (s *RangeScanExecutor) Next() (*batch.Batch, error) {
	b := &batch.Batch{}
	b.Init(s.Schema, s.BatchSize)
	for !b.Full() && s.it.Valid() {
		b.Append(s.Decode(s.it.Key(), s.it.Value()))
		s.it.Next()
	}
	if err := s.it.Err(); err != nil {
		return nil, err
	}
	s.stats.Add(b.NumRows())
	return b, nil
}

// FilterExecutor masks out rows failing Predicate, without shrinking the
// batch: it clears selection bits rather than compacting.
type FilterExecutor struct {
	Child     Executor
	Predicate expr.Expr

	stats Stats
}

func (f *FilterExecutor) Init() error { return f.Child.Init() }

func (f *FilterExecutor) OutputSchema() []batch.ColumnSpec { return f.Child.OutputSchema() }

func (f *FilterExecutor) GetTotalOutputSize() int64 { return f.stats.Total() + sumChildren(f.Child) }

func (f *FilterExecutor) Next() (*batch.Batch, error) {
	b, err := f.Child.Next()
	if err != nil {
		return nil, err
	}
	mask := f.Predicate.Eval(b)
	valid := 0
	for i := 0; i < b.NumRows(); i++ {
		keep := b.IsValid(i) && i < len(mask.Bools) && mask.Bools[i]
		b.SetValid(i, keep)
		if keep {
			valid++
		}
	}
	f.stats.Add(valid)
	return b, nil
}

// ProjectExecutor evaluates a list of output expressions over each child
// batch, producing a new batch with the projected schema.
type ProjectExecutor struct {
	Child   Executor
	Exprs   []expr.Expr
	Aliases []batch.ColumnSpec // output column identity, parallel to Exprs

	stats Stats
}

func (p *ProjectExecutor) Init() error { return p.Child.Init() }

func (p *ProjectExecutor) OutputSchema() []batch.ColumnSpec { return p.Aliases }

func (p *ProjectExecutor) GetTotalOutputSize() int64 { return p.stats.Total() + sumChildren(p.Child) }

func (p *ProjectExecutor) Next() (*batch.Batch, error) {
	in, err := p.Child.Next()
	if err != nil {
		return nil, err
	}
	out := &batch.Batch{}
	out.Init(p.Aliases, in.NumRows())
	cols := make([]batch.Column, len(p.Exprs))
	for i, e := range p.Exprs {
		cols[i] = e.Eval(in)
	}
	for r := 0; r < in.NumRows(); r++ {
		row := make([]batch.Scalar, len(cols))
		for c := range cols {
			row[c] = cols[c].Get(r)
		}
		out.Append(row)
		out.SetValid(r, in.IsValid(r))
	}
	p.stats.Add(out.NumValid())
	return out, nil
}
