// Package merge implements the multi-way merge heap used by
// compaction and by full-snapshot scans: a min-heap keyed by internal-key
// ordering over a set of child iterators.
//
// Grounded on compaction merge loop style (lsm/lsm.go flush
// and compaction helpers use a similar repeated-pick-smallest scan); here
// it is generalized into a reusable container/heap-based component
// parameterized over vecql/lsm/iter.Iterator, note that the
// merge heap should avoid virtual dispatch by being parameterized over a
// concrete iterator type rather than an interface hierarchy of operators.
package merge

import (
	"container/heap"

	"vecql/ikey"
	"vecql/lsm/iter"
)

type entry struct {
	it  iter.Iterator
	idx int // source index, for stability when keys are otherwise equal
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	c := ikey.Compare(h[i].it.Key(), h[j].it.Key())
	if c != 0 {
		return c < 0
	}
	return h[i].idx < h[j].idx
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Heap merges a set of already-sorted iterators into one ascending stream
// of internal keys. Ordering ties (same user_key, same seq) never arise
// under the sequence-allocation contract; ties broken here by
// source index are purely a defensive fallback.
type Heap struct {
	h   entryHeap
	err error
}

// New builds a Heap over its, each already positioned (SeekToFirst or Seek
// already called) or empty.
func New(its []iter.Iterator) *Heap {
	m := &Heap{}
	for i, it := range its {
		if it.Err() != nil {
			m.err = it.Err()
			continue
		}
		if it.Valid() {
			m.h = append(m.h, entry{it: it, idx: i})
		}
	}
	heap.Init(&m.h)
	return m
}

// Valid reports whether the heap has a current record.
func (m *Heap) Valid() bool { return m.err == nil && len(m.h) > 0 }

// Err returns the first error surfaced by any child iterator.
func (m *Heap) Err() error { return m.err }

// Key returns the current smallest record's internal key across all
// children. Valid must be true.
func (m *Heap) Key() ikey.Key { return m.h[0].it.Key() }

// Value returns the current smallest record's value. Valid must be true.
func (m *Heap) Value() []byte { return m.h[0].it.Value() }

// Next pops the current smallest entry, advances its source iterator, and
// re-inserts it if still valid.
func (m *Heap) Next() {
	if len(m.h) == 0 {
		return
	}
	top := m.h[0]
	top.it.Next()
	if err := top.it.Err(); err != nil {
		m.err = err
		heap.Pop(&m.h)
		return
	}
	if top.it.Valid() {
		m.h[0] = top
		heap.Fix(&m.h, 0)
	} else {
		heap.Pop(&m.h)
	}
}
