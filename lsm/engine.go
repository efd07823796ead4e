// Package lsm assembles block, sstable, run, merge, version, and
// compaction into the engine facade describes: memtable rotation,
// synchronous flush, background compaction, and SuperVersion-based snapshot
// reads.
//
// Grounded on LSM struct (lsm/lsm.go): the mutex-guarded
// levels/memtables/flush-pool/level-locks shape is kept, but rebuilt
// around immutable Version/SuperVersion snapshots instead of in-place
// level mutation, atomic-swap requirement.
package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vecql/config"
	"vecql/dberrors"
	"vecql/ikey"
	"vecql/lsm/cache"
	"vecql/lsm/compaction"
	"vecql/lsm/memtable"
	"vecql/lsm/run"
	"vecql/lsm/sstable"
	"vecql/lsm/version"
)

// Engine is one table's LSM-tree instance: a write path (memtable + WAL-
// free in this core, durability left to the caller's larger system) and a
// read path over an atomically-swapped SuperVersion.
type Engine struct {
	opts   config.LSMOptions
	dir    string
	logger *zap.Logger

	seq       atomic.Uint64
	nextSSTID atomic.Uint64

	mu        sync.Mutex // serializes writers and installations
	mutable   *memtable.MemTable
	immutable []*memtable.MemTable

	svMgr *version.Manager
	cache *cache.BlockCache

	picker compaction.Picker

	closing chan struct{}
	wg      sync.WaitGroup
}

// Open creates (or, if present, would reopen — reopen-from-disk is out of
// this core's scope, matching spec's in-process engine focus) an Engine
// rooted at dir.
func Open(dir string, opts config.LSMOptions, logger *zap.Logger) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dberrors.Wrap(dberrors.KindStorage, err, "lsm: create data dir")
	}

	e := &Engine{
		opts:    opts,
		dir:     dir,
		logger:  logger,
		mutable: memtable.New(),
		cache:   cache.NewBlockCache(256),
		closing: make(chan struct{}),
	}
	e.picker = pickerFor(opts)

	initial := version.NewVersion(nil)
	sv := version.NewSuperVersion(e.mutable, nil, initial)
	e.svMgr = version.NewManager(sv)

	e.wg.Add(1)
	go e.compactionLoop()

	return e, nil
}

func pickerFor(opts config.LSMOptions) compaction.Picker {
	switch opts.CompactionPolicy {
	case "tiered":
		return &compaction.TieredPicker{Ratio: opts.Ratio}
	case "lazy_leveling":
		return &compaction.LazyLevelingPicker{Tiered: compaction.TieredPicker{Ratio: opts.Ratio}}
	case "fluid":
		return &compaction.FluidPicker{Alpha: opts.FluidAlpha, Level0Trigger: opts.Level0CompactionTrig}
	default:
		return &compaction.LeveledPicker{Level0Trigger: opts.Level0CompactionTrig}
	}
}

// Close stops the background compaction worker.
func (e *Engine) Close() {
	close(e.closing)
	e.wg.Wait()
}

// NextID implements compaction.IDAllocator.
func (e *Engine) NextID() uint64 { return e.nextSSTID.Add(1) }

func (e *Engine) sstPath(id uint64) string {
	return filepath.Join(e.dir, fmt.Sprintf("%016d.sst", id))
}

// Put writes a value at userKey, allocating a fresh sequence number.
func (e *Engine) Put(userKey, value []byte) error {
	return e.apply(ikey.New(userKey, e.nextSeq(), ikey.Value), value)
}

// Delete writes a tombstone for userKey.
func (e *Engine) Delete(userKey []byte) error {
	return e.apply(ikey.New(userKey, e.nextSeq(), ikey.Deletion), nil)
}

func (e *Engine) nextSeq() ikey.Seq { return e.seq.Add(1) }

func (e *Engine) apply(key ikey.Key, value []byte) error {
	e.mu.Lock()
	e.mutable.Put(key, value)
	full := e.mutable.Size() >= e.opts.WriteBufferSize
	e.mu.Unlock()

	if full {
		return e.rotateAndFlush()
	}
	return nil
}

// rotateAndFlush moves the active memtable to the immutable list, starts a
// fresh one, and synchronously flushes the rotated memtable to an L0 SST
// (spec's concurrency model allows an async flush worker; this core keeps
// it synchronous in the writing goroutine for simplicity, matching the
// teacher's FlushPool being optionally invoked rather than mandatory). The
// writer lock is held only for the rotation and for the final install, not
// while the SST is built and written.
func (e *Engine) rotateAndFlush() error {
	e.mu.Lock()
	rotated := e.mutable
	e.mutable = memtable.New()
	e.immutable = append(e.immutable, rotated)
	e.mu.Unlock()

	b := sstable.NewBuilder(e.opts.BlockSize, e.opts.BloomBitsPerKey, e.opts.BlockCompression)
	it := rotated.Iterator()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		b.Append(it.Key(), it.Value())
	}
	id := e.NextID()
	data, info := b.Finish(id)
	if err := os.WriteFile(e.sstPath(id), data, 0o644); err != nil {
		return dberrors.Wrap(dberrors.KindStorage, err, "lsm: flush write")
	}

	f, err := os.Open(e.sstPath(id))
	if err != nil {
		return dberrors.Wrap(dberrors.KindStorage, err, "lsm: flush reopen")
	}
	reader, err := sstable.Open(f, info, e.opts.BlockCompression)
	if err != nil {
		return dberrors.Wrap(dberrors.KindCorruption, err, "lsm: flush reopen parse")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.svMgr.Acquire()
	newLevels := cloneLevels(cur.Version.Levels, 1)
	l0 := newLevels[0]
	l0.Runs = append(l0.Runs, run.New([]*run.SST{{Info: info, Reader: reader}}))

	var newImmutable []*memtable.MemTable
	for _, m := range e.immutable {
		if m != rotated {
			newImmutable = append(newImmutable, m)
		}
	}
	e.immutable = newImmutable

	newVersion := version.NewVersion(newLevels)
	newSV := version.NewSuperVersion(e.mutable, append([]*memtable.MemTable(nil), e.immutable...), newVersion)
	e.svMgr.Install(newSV)
	e.svMgr.Release(cur, nil)

	if e.logger != nil {
		e.logger.Debug("flushed memtable", zap.Uint64("sst_id", id), zap.Uint64("count", info.Count))
	}
	return nil
}

func cloneLevels(levels []*run.Level, minLen int) []*run.Level {
	out := make([]*run.Level, len(levels))
	copy(out, levels)
	for len(out) < minLen {
		out = append(out, &run.Level{})
	}
	// Deep-copy the mutated level(s) so concurrent readers holding the old
	// Version never see the new run appended underneath them.
	for i := range out {
		cp := &run.Level{Runs: append([]*run.SortedRun(nil), out[i].Runs...)}
		out[i] = cp
	}
	return out
}

// Get resolves userKey as of the snapshot implied by acquiring a fresh
// SuperVersion (read-your-own-writes up to the call's start).
func (e *Engine) Get(userKey []byte) ([]byte, bool, error) {
	sv := e.svMgr.Acquire()
	defer e.svMgr.Release(sv, e.deleteUnreferenced)

	seq := e.seq.Load()

	if v, found, deleted := sv.Mutable.Get(userKey, seq); found || deleted {
		return v, found, nil
	}
	for i := len(sv.Immutable) - 1; i >= 0; i-- {
		if v, found, deleted := sv.Immutable[i].Get(userKey, seq); found || deleted {
			return v, found, nil
		}
	}
	for _, l := range sv.Version.Levels {
		v, res, err := l.Get(userKey, seq)
		if err != nil {
			return nil, false, err
		}
		switch res {
		case sstable.Found:
			return v, true, nil
		case sstable.Deleted:
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// LevelSummary describes one level's run/SST layout for the inspect CLI.
type LevelSummary struct {
	Level     int
	NumRuns   int
	NumSSTs   int
	SizeBytes uint64
}

// Inspect snapshots the current Version and returns a per-level summary.
// It never blocks a concurrent compaction: the SuperVersion is acquired and
// released like any read path.
func (e *Engine) Inspect() []LevelSummary {
	sv := e.svMgr.Acquire()
	defer e.svMgr.Release(sv, e.deleteUnreferenced)

	out := make([]LevelSummary, len(sv.Version.Levels))
	for i, l := range sv.Version.Levels {
		nssts := 0
		for _, r := range l.Runs {
			nssts += len(r.SSTs())
		}
		out[i] = LevelSummary{Level: i, NumRuns: len(l.Runs), NumSSTs: nssts, SizeBytes: l.Size()}
	}
	return out
}

func (e *Engine) deleteUnreferenced(ids []uint32) {
	for _, id := range ids {
		_ = os.Remove(e.sstPath(uint64(id)))
	}
}

// compactionLoop is the dedicated background compaction worker:
// picking is re-invoked after every installation, here approximated by a
// simple poll loop that backs off when nothing is due.
func (e *Engine) compactionLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.closing:
			return
		default:
		}
		if !e.maybeCompactOnce() {
			select {
			case <-e.closing:
				return
			case <-afterIdle():
				continue
			}
		}
	}
}

func (e *Engine) maybeCompactOnce() bool {
	e.mu.Lock()
	sv := e.svMgr.Acquire()
	levels := &compaction.Levels{L: sv.Version.Levels}
	c := e.picker.Pick(levels, e.opts.BaseLevelSize, e.opts.Ratio)
	e.mu.Unlock()

	if c == nil {
		e.svMgr.Release(sv, e.deleteUnreferenced)
		return false
	}

	job := &compaction.Job{
		BlockSize:       e.opts.BlockSize,
		BloomBitsPerKey: e.opts.BloomBitsPerKey,
		SSTSize:         e.opts.SSTFileSize,
		Compression:     e.opts.BlockCompression,
		IDs:             e,
	}
	files, infos, err := job.Run(c)
	e.svMgr.Release(sv, e.deleteUnreferenced)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("compaction failed", zap.Error(err))
		}
		return true
	}

	var newSSTs []*run.SST
	for i, data := range files {
		if err := os.WriteFile(e.sstPath(infos[i].ID), data, 0o644); err != nil {
			if e.logger != nil {
				e.logger.Error("compaction write failed", zap.Error(err))
			}
			return true
		}
		f, err := os.Open(e.sstPath(infos[i].ID))
		if err != nil {
			continue
		}
		reader, err := sstable.Open(f, infos[i], e.opts.BlockCompression)
		if err != nil {
			continue
		}
		newSSTs = append(newSSTs, &run.SST{Info: infos[i], Reader: reader})
	}

	e.installCompactionResult(c, newSSTs)
	return true
}

func (e *Engine) installCompactionResult(c *compaction.Compaction, newSSTs []*run.SST) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.svMgr.Acquire()
	maxLevel := c.LevelTo
	if len(cur.Version.Levels)-1 > maxLevel {
		maxLevel = len(cur.Version.Levels) - 1
	}
	newLevels := cloneLevels(cur.Version.Levels, maxLevel+1)

	inputSet := make(map[uint64]bool, len(c.Inputs))
	for _, s := range c.Inputs {
		inputSet[s.Info.ID] = true
	}

	from := newLevels[c.LevelFrom]
	var keptFrom []*run.SortedRun
	for _, r := range from.Runs {
		var kept []*run.SST
		for _, s := range r.SSTs() {
			if !inputSet[s.Info.ID] {
				kept = append(kept, s)
			}
		}
		if len(kept) > 0 {
			keptFrom = append(keptFrom, run.New(kept))
		}
	}
	newLevels[c.LevelFrom] = &run.Level{Runs: keptFrom}

	if c.LevelTo != c.LevelFrom {
		to := newLevels[c.LevelTo]
		var keptTo []*run.SortedRun
		if c.TargetRun != nil {
			targetSet := make(map[uint64]bool)
			for _, s := range c.TargetRun.SSTs() {
				targetSet[s.Info.ID] = true
			}
			for _, r := range to.Runs {
				var kept []*run.SST
				for _, s := range r.SSTs() {
					if !targetSet[s.Info.ID] {
						kept = append(kept, s)
					}
				}
				if len(kept) > 0 {
					keptTo = append(keptTo, run.New(kept))
				}
			}
		} else {
			keptTo = to.Runs
		}
		if len(newSSTs) > 0 {
			keptTo = append(keptTo, run.New(newSSTs))
		}
		newLevels[c.LevelTo] = &run.Level{Runs: keptTo}
	} else {
		// Lazy-leveling deepest-level merge: replace the level's runs
		// outright with the single merged run.
		if len(newSSTs) > 0 {
			newLevels[c.LevelFrom] = &run.Level{Runs: []*run.SortedRun{run.New(newSSTs)}}
		}
	}

	newVersion := version.NewVersion(newLevels)
	newSV := version.NewSuperVersion(e.mutable, append([]*memtable.MemTable(nil), e.immutable...), newVersion)
	e.svMgr.Install(newSV)
	e.svMgr.Release(cur, e.deleteUnreferenced)
}

// afterIdle backs off briefly between compaction-picker polls.
func afterIdle() <-chan time.Time {
	return time.After(idleBackoff)
}

const idleBackoff = 50 * time.Millisecond
