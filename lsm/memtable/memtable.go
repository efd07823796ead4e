// Package memtable implements the in-memory ordered structure that
// receives current writes: it
// supports concurrent reads and a single writer, appends monotonically
// increasing seq per write, and is walked skip-list-style in ordered key
// layout.
//
// Grounded on structures/memtable/skip_list package for the
// probabilistic-height skip list shape (random level roll, per-level
// forward pointers, level-descending search), adapted from // update-in-place single-record-per-key design to the design's append-only
// multiversion design: every Put inserts a new node ordered by the full
// internal key (user_key, seq, type), never overwriting an existing node,
// so concurrent readers walking the list never observe a write in
// progress as a torn record.
package memtable

import (
	"math/rand"
	"sync"

	"vecql/ikey"
)

const maxHeight = 16

type node struct {
	key   ikey.Key
	value []byte
	next  []*node
}

// MemTable is a skip list ordered by internal key, guarded by an RWMutex:
// Put takes the write lock, so writers are serialized and readers wait for
// an in-flight insert to finish; reads share the read lock.
type MemTable struct {
	mu     sync.RWMutex
	head   *node
	height int
	rng    *rand.Rand
	size   int // approximate bytes held, for write-buffer rotation
	count  int
}

// New creates an empty MemTable.
func New() *MemTable {
	return &MemTable{
		head:   &node{next: make([]*node, maxHeight)},
		height: 1,
		rng:    rand.New(rand.NewSource(0xC0FFEE)),
	}
}

func (m *MemTable) roll() int {
	h := 1
	for m.rng.Intn(2) == 1 && h < maxHeight {
		h++
	}
	return h
}

// Put appends a record at the given internal key. key.Seq must be strictly
// greater than any seq previously used for key.UserKey within this table
// instance (enforced by the caller's sequence allocator, not by MemTable).
func (m *MemTable) Put(key ikey.Key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	update := make([]*node, maxHeight)
	cur := m.head
	for lvl := m.height - 1; lvl >= 0; lvl-- {
		for cur.next[lvl] != nil && ikey.Less(cur.next[lvl].key, key) {
			cur = cur.next[lvl]
		}
		update[lvl] = cur
	}

	h := m.roll()
	if h > m.height {
		for i := m.height; i < h; i++ {
			update[i] = m.head
		}
		m.height = h
	}
	n := &node{key: key, value: value, next: make([]*node, h)}
	for i := 0; i < h; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	m.size += key.Size() + len(value)
	m.count++
}

// Get returns the newest record for userKey visible at seq: the first
// record at or after (userKey, seq, Value) in ascending internal-key order
// (the highest seq <= seq), provided its user_key matches. Mirrors sstable.Reader.Get's
// semantics so callers can treat MemTable and SST lookups uniformly.
func (m *MemTable) Get(userKey []byte, seq ikey.Seq) (value []byte, found bool, deleted bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	target := ikey.QueryKey(userKey, seq)
	cur := m.head
	for lvl := m.height - 1; lvl >= 0; lvl-- {
		for cur.next[lvl] != nil && ikey.Less(cur.next[lvl].key, target) {
			cur = cur.next[lvl]
		}
	}
	n := cur.next[0]
	if n == nil || string(n.key.UserKey) != string(userKey) {
		return nil, false, false
	}
	if n.key.Type == ikey.Deletion {
		return nil, false, true
	}
	return n.value, true, false
}

// Size returns the approximate number of bytes held, used to decide when
// to rotate the active memtable.
func (m *MemTable) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Count returns the number of records held (including all versions and
// tombstones).
func (m *MemTable) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// Iterator walks a MemTable's records in ascending internal-key order.
type Iterator struct {
	m   *MemTable
	cur *node
}

// Iterator returns a fresh iterator, positioned before the first record.
func (m *MemTable) Iterator() *Iterator { return &Iterator{m: m} }

// SeekToFirst repositions the iterator at the first record.
func (it *Iterator) SeekToFirst() {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	it.cur = it.m.head.next[0]
}

// Seek repositions the iterator at the first record >= (userKey, seq,
// Value).
func (it *Iterator) Seek(userKey []byte, seq ikey.Seq) {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	target := ikey.QueryKey(userKey, seq)
	cur := it.m.head
	for lvl := it.m.height - 1; lvl >= 0; lvl-- {
		for cur.next[lvl] != nil && ikey.Less(cur.next[lvl].key, target) {
			cur = cur.next[lvl]
		}
	}
	it.cur = cur.next[0]
}

// Valid reports whether the iterator is positioned at a record.
func (it *Iterator) Valid() bool { return it.cur != nil }

// Err is always nil; MemTable iteration cannot fail.
func (it *Iterator) Err() error { return nil }

// Key returns the current record's internal key.
func (it *Iterator) Key() ikey.Key { return it.cur.key }

// Value returns the current record's value.
func (it *Iterator) Value() []byte { return it.cur.value }

// Next advances to the following record.
func (it *Iterator) Next() {
	it.m.mu.RLock()
	defer it.m.mu.RUnlock()
	it.cur = it.cur.next[0]
}
