// Package run implements the sorted-run and level abstractions:
// a SortedRun is an ordered, non-overlapping sequence of SSTs; a Level is a
// collection of sorted runs at one depth, newest run first for reads.
//
// Grounded on lsm.LSM level-scanning logic (lsm/lsm.go) for
// the newest-to-oldest read order, adapted from index-only
// level bookkeeping to wrap live *sstable.Reader handles directly.
package run

import (
	"sort"

	"vecql/ikey"
	"vecql/lsm/sstable"
)

// SST pairs an open reader with its sidecar info for convenient access to
// bounds without re-parsing them.
type SST struct {
	Info   sstable.Info
	Reader *sstable.Reader
}

// SortedRun is an ordered, non-overlapping sequence of SSTs.
type SortedRun struct {
	ssts []*SST
}

// New builds a SortedRun from ssts, which must already be sorted by
// ascending key range and non-overlapping.
func New(ssts []*SST) *SortedRun { return &SortedRun{ssts: ssts} }

// SSTs returns the run's member tables, oldest-range first.
func (r *SortedRun) SSTs() []*SST { return r.ssts }

// Size returns the run's total on-disk size in bytes.
func (r *SortedRun) Size() uint64 {
	var total uint64
	for _, s := range r.ssts {
		total += s.Info.Size
	}
	return total
}

// find returns the index of the SST whose [smallest,largest] range may
// contain userKey, or -1 if none does.
func (r *SortedRun) find(userKey []byte) int {
	i := sort.Search(len(r.ssts), func(i int) bool {
		return string(r.ssts[i].Info.Largest.UserKey) >= string(userKey)
	})
	if i >= len(r.ssts) {
		return -1
	}
	if string(r.ssts[i].Info.Smallest.UserKey) > string(userKey) {
		return -1
	}
	return i
}

// Get delegates to the single SST whose range may cover userKey; returns
// sstable.NotFound if no SST in the run covers it.
func (r *SortedRun) Get(userKey []byte, seq ikey.Seq) ([]byte, sstable.GetResult, error) {
	i := r.find(userKey)
	if i < 0 {
		return nil, sstable.NotFound, nil
	}
	return r.ssts[i].Reader.Get(userKey, seq)
}

// Seek returns an iterator positioned at the first record >= (userKey, seq,
// Value), advancing across SST boundaries within the run as needed.
func (r *SortedRun) Seek(userKey []byte, seq ikey.Seq) *Iterator {
	it := &Iterator{run: r}
	it.Seek(userKey, seq)
	return it
}

// SeekToFirst returns an iterator positioned at the run's first record.
func (r *SortedRun) SeekToFirst() *Iterator {
	it := &Iterator{run: r}
	it.SeekToFirst()
	return it
}

// Iterator walks a SortedRun's records across its member SSTs in order.
type Iterator struct {
	run   *SortedRun
	idx   int
	inner *sstable.Iterator
	err   error
}

func (it *Iterator) advanceToValid() {
	for it.inner != nil && !it.inner.Valid() {
		if err := it.inner.Err(); err != nil {
			it.err = err
			it.inner = nil
			return
		}
		it.idx++
		it.loadAt(it.idx)
	}
}

func (it *Iterator) loadAt(i int) {
	if i < 0 || i >= len(it.run.ssts) {
		it.inner = nil
		return
	}
	it.idx = i
	it.inner = it.run.ssts[i].Reader.Iterator()
	it.inner.SeekToFirst()
}

// SeekToFirst repositions at the run's first record.
func (it *Iterator) SeekToFirst() {
	it.err = nil
	it.loadAt(0)
	it.advanceToValid()
}

// Seek repositions at the first record >= (userKey, seq, Value).
func (it *Iterator) Seek(userKey []byte, seq ikey.Seq) {
	it.err = nil
	i := it.run.find(userKey)
	if i < 0 {
		// userKey falls before the run's first covering SST, or after its
		// last: position at the first SST whose range starts at or after
		// userKey.
		i = sort.Search(len(it.run.ssts), func(i int) bool {
			return string(it.run.ssts[i].Info.Largest.UserKey) >= string(userKey)
		})
	}
	it.loadAt(i)
	if it.inner != nil {
		it.inner.Seek(userKey, seq)
	}
	it.advanceToValid()
}

// Valid reports whether the iterator is positioned at a record.
func (it *Iterator) Valid() bool { return it.err == nil && it.inner != nil && it.inner.Valid() }

// Err returns the first error encountered while reading SSTs, if any.
func (it *Iterator) Err() error { return it.err }

// Key returns the current record's internal key.
func (it *Iterator) Key() ikey.Key { return it.inner.Key() }

// Value returns the current record's value.
func (it *Iterator) Value() []byte { return it.inner.Value() }

// Next advances to the following record, crossing SST boundaries.
func (it *Iterator) Next() {
	it.inner.Next()
	it.advanceToValid()
}

// Level holds the sorted runs at one depth, ordered oldest-first; reads
// scan newest-to-oldest so that a more recent run's tombstone or value
// shadows an older run's record for the same key.
type Level struct {
	Runs []*SortedRun
}

// Get scans runs from newest (last) to oldest (first), returning the first
// non-NotFound result. A Deleted result from a newer run suppresses any
// value an older run might hold for the same key.
func (l *Level) Get(userKey []byte, seq ikey.Seq) ([]byte, sstable.GetResult, error) {
	for i := len(l.Runs) - 1; i >= 0; i-- {
		v, res, err := l.Runs[i].Get(userKey, seq)
		if err != nil {
			return nil, sstable.NotFound, err
		}
		if res != sstable.NotFound {
			return v, res, nil
		}
	}
	return nil, sstable.NotFound, nil
}

// Size returns the level's total on-disk size across all its runs.
func (l *Level) Size() uint64 {
	var total uint64
	for _, r := range l.Runs {
		total += r.Size()
	}
	return total
}
