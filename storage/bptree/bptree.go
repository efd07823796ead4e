// Package bptree implements the B+tree storage backend:
// parameterized by one of three key comparators (integer, float,
// lex-string) chosen by the primary-key column type. All nodes are held in
// memory; there is no page pool, and the buf_pool_max_page value passed to
// New is stored but bounds nothing.
//
// Grounded on structures/btree.BTree (node split/search/
// compaction shape), generalized from a fixed byte-lexicographic compare
// to a pluggable Comparator, and simplified from physical
// tombstone-ratio compaction to the design's uniform storage-facade Delete
// semantics ("remove" rather than "tombstone", since a B+tree backend has
// no LSM-style deferred reclamation to perform).
package bptree

import (
	"encoding/binary"
	"math"
	"sort"

	"vecql/dberrors"
)

// Comparator orders two primary-key encodings.
type Comparator func(a, b []byte) int

// IntComparator decodes 4-byte or 8-byte big-endian integers to the
// canonical 64-bit width before comparing.
func IntComparator(a, b []byte) int {
	ai, bi := decodeInt(a), decodeInt(b)
	switch {
	case ai < bi:
		return -1
	case ai > bi:
		return 1
	default:
		return 0
	}
}

func decodeInt(b []byte) int64 {
	switch len(b) {
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b)))
	case 8:
		return int64(binary.BigEndian.Uint64(b))
	default:
		var v int64
		for _, c := range b {
			v = v<<8 | int64(c)
		}
		return v
	}
}

// FloatComparator compares 8-byte big-endian IEEE-754 doubles.
func FloatComparator(a, b []byte) int {
	af := math.Float64frombits(binary.BigEndian.Uint64(a))
	bf := math.Float64frombits(binary.BigEndian.Uint64(b))
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// LexStringComparator compares keys byte-lexicographically.
func LexStringComparator(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

const defaultOrder = 64

type node struct {
	keys     [][]byte
	values   [][]byte
	children []*node
	leaf     bool
}

// BTree is an in-memory B+tree keyed by Comparator. maxPages is recorded
// but not enforced or counted: nodes are never paged out or evicted.
type BTree struct {
	cmp      Comparator
	order    int
	root     *node
	count    int
	maxPages int
}

// New creates a BTree using cmp for ordering. maxPages (buf_pool_max_page,
// 1024 when not positive) is stored only; it limits nothing.
func New(cmp Comparator, maxPages int) *BTree {
	if maxPages <= 0 {
		maxPages = 1024
	}
	return &BTree{cmp: cmp, order: defaultOrder, maxPages: maxPages}
}

func (t *BTree) findIndex(n *node, key []byte) int {
	return sort.Search(len(n.keys), func(i int) bool { return t.cmp(n.keys[i], key) >= 0 })
}

// Get returns the value for key, or (nil, false) if absent.
func (t *BTree) Get(key []byte) ([]byte, bool) {
	n := t.root
	for n != nil {
		i := t.findIndex(n, key)
		if i < len(n.keys) && t.cmp(n.keys[i], key) == 0 {
			return n.values[i], true
		}
		if n.leaf {
			return nil, false
		}
		n = n.children[i]
	}
	return nil, false
}

// Put inserts or replaces the value at key.
func (t *BTree) Put(key, value []byte) {
	if t.root == nil {
		t.root = &node{leaf: true, keys: [][]byte{key}, values: [][]byte{value}}
		t.count++
		return
	}
	if existing, ok := t.Get(key); ok {
		_ = existing
		t.replace(t.root, key, value)
		return
	}
	t.insert(t.root, key, value)
	t.count++
	if len(t.root.keys) >= t.order {
		t.splitRoot()
	}
}

func (t *BTree) replace(n *node, key, value []byte) {
	i := t.findIndex(n, key)
	if i < len(n.keys) && t.cmp(n.keys[i], key) == 0 {
		n.values[i] = value
		return
	}
	t.replace(n.children[i], key, value)
}

func (t *BTree) insert(n *node, key, value []byte) {
	i := t.findIndex(n, key)
	if n.leaf {
		n.keys = append(n.keys, nil)
		n.values = append(n.values, nil)
		copy(n.keys[i+1:], n.keys[i:])
		copy(n.values[i+1:], n.values[i:])
		n.keys[i] = key
		n.values[i] = value
		return
	}
	childIdx := i
	if childIdx >= len(n.children) {
		childIdx = len(n.children) - 1
	}
	t.insert(n.children[childIdx], key, value)
	if len(n.children[childIdx].keys) >= t.order {
		t.splitChild(n, childIdx)
	}
}

func (t *BTree) splitChild(parent *node, idx int) {
	child := parent.children[idx]
	mid := len(child.keys) / 2
	midKey, midVal := child.keys[mid], child.values[mid]

	right := &node{leaf: child.leaf}
	right.keys = append(right.keys, child.keys[mid+1:]...)
	right.values = append(right.values, child.values[mid+1:]...)
	if !child.leaf {
		right.children = append(right.children, child.children[mid+1:]...)
		child.children = child.children[:mid+1]
	}
	child.keys = child.keys[:mid]
	child.values = child.values[:mid]

	parent.keys = append(parent.keys, nil)
	parent.values = append(parent.values, nil)
	copy(parent.keys[idx+1:], parent.keys[idx:])
	copy(parent.values[idx+1:], parent.values[idx:])
	parent.keys[idx] = midKey
	parent.values[idx] = midVal

	parent.children = append(parent.children, nil)
	copy(parent.children[idx+2:], parent.children[idx+1:])
	parent.children[idx+1] = right
}

func (t *BTree) splitRoot() {
	old := t.root
	mid := len(old.keys) / 2
	midKey, midVal := old.keys[mid], old.values[mid]

	right := &node{leaf: old.leaf}
	right.keys = append(right.keys, old.keys[mid+1:]...)
	right.values = append(right.values, old.values[mid+1:]...)
	if !old.leaf {
		right.children = append(right.children, old.children[mid+1:]...)
		old.children = old.children[:mid+1]
	}
	old.keys = old.keys[:mid]
	old.values = old.values[:mid]

	t.root = &node{
		keys:     [][]byte{midKey},
		values:   [][]byte{midVal},
		children: []*node{old, right},
	}
}

// Delete removes key, returning true if it was present.
func (t *BTree) Delete(key []byte) bool {
	if t.root == nil {
		return false
	}
	n, i := t.locate(t.root, key)
	if n == nil {
		return false
	}
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	n.values = append(n.values[:i], n.values[i+1:]...)
	t.count--
	return true
}

func (t *BTree) locate(n *node, key []byte) (*node, int) {
	i := t.findIndex(n, key)
	if i < len(n.keys) && t.cmp(n.keys[i], key) == 0 {
		return n, i
	}
	if n.leaf {
		return nil, -1
	}
	return t.locate(n.children[i], key)
}

// Count returns the number of stored keys.
func (t *BTree) Count() int { return t.count }

// Iterator walks all (key, value) pairs in ascending key order via an
// in-order traversal collected eagerly; adequate for the bounded table
// sizes this in-memory backend targets.
type Iterator struct {
	pairs []kv
	pos   int
}

type kv struct {
	key, value []byte
}

// Iterator returns a fresh ascending-order iterator over the whole tree.
func (t *BTree) Iterator() *Iterator {
	it := &Iterator{}
	t.collect(t.root, &it.pairs)
	return it
}

// RangeIterator returns an ascending-order iterator restricted to keys in
// [lo, hi] (either bound nil meaning unbounded).
func (t *BTree) RangeIterator(lo, hi []byte, loInclusive, hiInclusive bool) *Iterator {
	full := t.Iterator()
	var filtered []kv
	for _, p := range full.pairs {
		if lo != nil {
			c := t.cmp(p.key, lo)
			if c < 0 || (c == 0 && !loInclusive) {
				continue
			}
		}
		if hi != nil {
			c := t.cmp(p.key, hi)
			if c > 0 || (c == 0 && !hiInclusive) {
				continue
			}
		}
		filtered = append(filtered, p)
	}
	return &Iterator{pairs: filtered}
}

func (t *BTree) collect(n *node, out *[]kv) {
	if n == nil {
		return
	}
	if n.leaf {
		for i := range n.keys {
			*out = append(*out, kv{n.keys[i], n.values[i]})
		}
		return
	}
	for i, child := range n.children {
		t.collect(child, out)
		if i < len(n.keys) {
			*out = append(*out, kv{n.keys[i], n.values[i]})
		}
	}
}

// Valid reports whether the iterator is positioned at a pair.
func (it *Iterator) Valid() bool { return it.pos < len(it.pairs) }

// Key returns the current pair's key.
func (it *Iterator) Key() []byte { return it.pairs[it.pos].key }

// Value returns the current pair's value.
func (it *Iterator) Value() []byte { return it.pairs[it.pos].value }

// Next advances to the following pair.
func (it *Iterator) Next() { it.pos++ }

// ComparatorFor resolves the comparator named by a primary-key column type
// string ("int", "float", "string").
func ComparatorFor(columnType string) (Comparator, error) {
	switch columnType {
	case "int", "integer":
		return IntComparator, nil
	case "float", "double":
		return FloatComparator, nil
	case "string", "text", "varchar":
		return LexStringComparator, nil
	default:
		return nil, dberrors.New(dberrors.KindPlan, "bptree: unknown primary key column type %q", columnType)
	}
}
