package lsm

import (
	"runtime"

	"vecql/ikey"
	"vecql/lsm/iter"
	"vecql/lsm/merge"
)

// Iterator walks an Engine's latest visible value per user key in ascending
// order, skipping tombstones and superseded versions: the snapshot view the
// storage facade's Iterator/RangeIterator ops need.
type Iterator struct {
	h    *merge.Heap
	seq  ikey.Seq
	done bool
}

// Iterator returns a fresh snapshot iterator over the whole table.
func (e *Engine) Iterator() *Iterator {
	return e.newSnapshotIterator(nil, false)
}

// RangeIterator returns a snapshot iterator restricted to keys >= lo (or the
// start, if lo is nil).
func (e *Engine) RangeIterator(lo []byte) *Iterator {
	return e.newSnapshotIterator(lo, true)
}

func (e *Engine) newSnapshotIterator(lo []byte, seek bool) *Iterator {
	sv := e.svMgr.Acquire()
	seq := e.seq.Load()

	var its []iter.Iterator
	its = append(its, sv.Mutable.Iterator())
	for _, m := range sv.Immutable {
		its = append(its, m.Iterator())
	}
	for _, l := range sv.Version.Levels {
		for _, r := range l.Runs {
			its = append(its, r.SeekToFirst())
		}
	}

	for _, it := range its {
		if seek {
			it.Seek(lo, ^ikey.Seq(0))
		} else {
			it.SeekToFirst()
		}
	}

	si := &Iterator{h: merge.New(its), seq: seq}
	si.skipInvisible()
	// The SuperVersion is pinned for the iterator's lifetime rather than
	// released immediately: a short-lived read path keeps this simple at the
	// cost of delaying SST reclamation until the iterator is discarded, when
	// a finalizer releases it.
	runtime.SetFinalizer(si, func(*Iterator) { e.svMgr.Release(sv, e.deleteUnreferenced) })
	return si
}

// skipInvisible advances past any record whose seq is newer than the
// iterator's snapshot, and collapses runs of same-user-key records (highest
// seq wins) into a single emitted entry, skipping tombstones entirely.
func (si *Iterator) skipInvisible() {
	for si.h.Valid() {
		for si.h.Valid() && si.h.Key().Seq > si.seq {
			si.h.Next()
		}
		if !si.h.Valid() {
			break
		}
		cur := si.h.Key()
		isDeletion := cur.Type == ikey.Deletion
		currentUserKey := cur.UserKey

		if !isDeletion {
			si.done = false
			return
		}

		// Tombstone: skip this user key entirely, including any older,
		// now-shadowed versions.
		si.h.Next()
		for si.h.Valid() && string(si.h.Key().UserKey) == string(currentUserKey) {
			si.h.Next()
		}
	}
	si.done = true
}

// Valid reports whether the iterator is positioned at a visible record.
func (si *Iterator) Valid() bool { return !si.done && si.h.Valid() }

// Err returns the first error encountered while reading the underlying
// sources, if any.
func (si *Iterator) Err() error { return si.h.Err() }

// Key returns the current record's user key.
func (si *Iterator) Key() []byte { return si.h.Key().UserKey }

// Value returns the current record's value.
func (si *Iterator) Value() []byte { return si.h.Value() }

// Next advances to the next distinct, visible user key.
func (si *Iterator) Next() {
	if si.done {
		return
	}
	currentUserKey := si.h.Key().UserKey
	si.h.Next()
	for si.h.Valid() && string(si.h.Key().UserKey) == string(currentUserKey) {
		si.h.Next()
	}
	si.skipInvisible()
}
