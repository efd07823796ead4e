// Package compaction implements the compaction job and the pluggable
// level-picking strategies: leveled, tiered, lazy-leveling, and the fluid
// meta-picker.
//
// The tiered picker never constructs a target_run for a pure merge:
// Compaction.TargetRun is nil whenever the picker performs a deepest-level
// merge, avoiding a shadowed-target_run bug where a stale target run would
// otherwise be merged into twice.
package compaction

import (
	"vecql/config"
	"vecql/lsm/iter"
	"vecql/lsm/merge"
	"vecql/lsm/run"
	"vecql/lsm/sstable"
)

// Compaction describes one unit of compaction work chosen by a picker.
type Compaction struct {
	Inputs      []*run.SST
	LevelFrom   int
	LevelTo     int
	TargetRun   *run.SortedRun // nil for a pure merge with no pre-existing target
	TrivialMove bool
}

// IDAllocator hands out monotonically increasing SST ids.
type IDAllocator interface {
	NextID() uint64
}

// Job runs one Compaction: it merges Inputs (and TargetRun's SSTs, if any)
// via the multi-way merge heap, drops superseded records, and emits a
// sequence of SSTs each close to sstSize bytes.
type Job struct {
	BlockSize       int
	BloomBitsPerKey int
	SSTSize         int
	Compression     config.Compression
	IDs             IDAllocator
}

// Run executes the merge. It does not drop records by seq (that is a
// caller policy applied before a record ever reaches the merge heap) — it
// only dedups same-user-key records by highest-seq-wins.
func (j *Job) Run(c *Compaction) ([][]byte, []sstable.Info, error) {
	its := make([]iter.Iterator, 0, len(c.Inputs))
	for _, s := range c.Inputs {
		it := s.Reader.Iterator()
		it.SeekToFirst()
		its = append(its, it)
	}
	if c.TargetRun != nil {
		for _, s := range c.TargetRun.SSTs() {
			it := s.Reader.Iterator()
			it.SeekToFirst()
			its = append(its, it)
		}
	}

	h := merge.New(its)

	var files [][]byte
	var infos []sstable.Info
	b := sstable.NewBuilder(j.BlockSize, j.BloomBitsPerKey, j.Compression)
	var pendingSize int

	var haveLast bool
	var lastUserKey []byte

	flush := func() {
		if pendingSize == 0 {
			return
		}
		data, info := b.Finish(j.IDs.NextID())
		files = append(files, data)
		infos = append(infos, info)
		b = sstable.NewBuilder(j.BlockSize, j.BloomBitsPerKey, j.Compression)
		pendingSize = 0
	}

	for h.Valid() {
		k := h.Key()
		v := h.Value()

		// Dedup adjacent records with identical user_key: the heap yields
		// the highest-seq record for a given user key first (internal-key
		// order sorts higher seq first), so once we've emitted one record
		// for a user key, every subsequent record sharing it is older and
		// must be dropped.
		if haveLast && string(k.UserKey) == string(lastUserKey) {
			h.Next()
			continue
		}
		haveLast = true
		lastUserKey = append(lastUserKey[:0], k.UserKey...)

		recSize := len(k.UserKey) + len(v) + 21
		if pendingSize > 0 && pendingSize+recSize > j.SSTSize {
			flush()
		}
		b.Append(k, v)
		pendingSize += recSize

		h.Next()
	}
	if err := h.Err(); err != nil {
		return nil, nil, err
	}
	flush()

	return files, infos, nil
}
