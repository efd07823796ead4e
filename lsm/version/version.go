// Package version implements Version and SuperVersion snapshotting (spec
// §4 GLOSSARY, §5 concurrency model): an immutable snapshot of (memtable,
// immutable memtables, levels) published via atomic pointer swap on every
// installation (flush completion, compaction completion; a memtable
// rotation is published by the install that follows its flush).
//
// Grounded on mutex-guarded lsm.LSM level/memtable fields
// (lsm/lsm.go), restructured from mutable shared state into the
// copy-on-write immutable-snapshot idiom requires, and on
// AKJUS-bsc-erigon's use of github.com/RoaringBitmap/roaring for compact
// live-ID set tracking (adopted here to track which SST ids are
// referenced by a SuperVersion so Unref can tell when an SST's last
// reference drops, "Reference-counted SSTs with deferred
// deletion").
package version

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"vecql/lsm/memtable"
	"vecql/lsm/run"
)

// Version is one immutable arrangement of on-disk levels.
type Version struct {
	Levels []*run.Level
	// liveSSTIDs is the set of SST ids referenced by this Version, used to
	// compute refcounts across overlapping SuperVersions cheaply.
	liveSSTIDs *roaring.Bitmap
}

func sstIDsOf(levels []*run.Level) *roaring.Bitmap {
	bm := roaring.New()
	for _, l := range levels {
		for _, r := range l.Runs {
			for _, s := range r.SSTs() {
				bm.Add(uint32(s.Info.ID))
			}
		}
	}
	return bm
}

// NewVersion builds a Version over levels.
func NewVersion(levels []*run.Level) *Version {
	return &Version{Levels: levels, liveSSTIDs: sstIDsOf(levels)}
}

// SuperVersion is the full snapshot a reader acquires at query start: the
// active memtable, the immutable (flushing) memtables, and the on-disk
// Version. It may outlive the installation that superseded it; readers
// retain their reference for the query's duration.
type SuperVersion struct {
	Mutable   *memtable.MemTable
	Immutable []*memtable.MemTable
	Version   *Version

	refs int32
}

// NewSuperVersion builds a SuperVersion with an initial refcount of 1 (the
// caller's own reference, typically held by Manager).
func NewSuperVersion(mutable *memtable.MemTable, immutable []*memtable.MemTable, v *Version) *SuperVersion {
	return &SuperVersion{Mutable: mutable, Immutable: immutable, Version: v, refs: 1}
}

// Ref increments the reference count; callers must pair every successful
// acquisition (via Manager.Acquire) with a later Unref.
func (sv *SuperVersion) Ref() { atomic.AddInt32(&sv.refs, 1) }

// Unref decrements the reference count, invoking onZero when it reaches
// zero (the point at which any SST id unique to this Version and not
// live in any other retained Version becomes safe to unlink).
func (sv *SuperVersion) Unref(onZero func(*SuperVersion)) {
	if atomic.AddInt32(&sv.refs, -1) == 0 && onZero != nil {
		onZero(sv)
	}
}

// Manager holds the current SuperVersion behind an atomic pointer and
// tracks, across all still-referenced Versions, which SST ids remain live
// anywhere — so a compaction can safely unlink only SSTs live in none of
// them.
type Manager struct {
	mu      sync.Mutex
	current atomic.Pointer[SuperVersion]
	// retained tracks every SuperVersion handed out but not yet fully
	// unreferenced, so Live can answer "is this SST id referenced by any
	// outstanding snapshot" even after a newer SuperVersion is installed.
	retained map[*SuperVersion]struct{}
}

// NewManager creates a Manager whose initial SuperVersion is sv.
func NewManager(sv *SuperVersion) *Manager {
	m := &Manager{retained: map[*SuperVersion]struct{}{sv: {}}}
	m.current.Store(sv)
	return m
}

// Acquire returns the current SuperVersion with an incremented refcount;
// the caller must call Release when done.
func (m *Manager) Acquire() *SuperVersion {
	sv := m.current.Load()
	sv.Ref()
	return sv
}

// Release drops the caller's reference to sv, removing it from the
// retained set and invoking onRemovable(ids) with the SST ids that were
// live only in sv, once its refcount reaches zero.
func (m *Manager) Release(sv *SuperVersion, onRemovable func(ids []uint32)) {
	sv.Unref(func(sv *SuperVersion) {
		m.mu.Lock()
		delete(m.retained, sv)
		stillLive := roaring.New()
		for other := range m.retained {
			stillLive.Or(other.Version.liveSSTIDs)
		}
		removable := roaring.AndNot(sv.Version.liveSSTIDs, stillLive)
		m.mu.Unlock()
		if onRemovable != nil {
			ids := make([]uint32, 0, removable.GetCardinality())
			it := removable.Iterator()
			for it.HasNext() {
				ids = append(ids, it.Next())
			}
			onRemovable(ids)
		}
	})
}

// Install publishes a new SuperVersion as current, retaining the old one
// until every outstanding reader releases it: the Manager's own reference
// to the old one is dropped here, so the last reader's Release is the one
// that reports its removable SST ids.
func (m *Manager) Install(sv *SuperVersion) {
	m.mu.Lock()
	m.retained[sv] = struct{}{}
	m.mu.Unlock()
	if old := m.current.Swap(sv); old != nil && old != sv {
		m.Release(old, nil)
	}
}
