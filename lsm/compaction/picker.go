package compaction

import (
	"vecql/lsm/run"
)

// Levels is the minimal view a picker needs over the engine's current
// level structure: L0 at index 0, deeper levels at increasing indices.
type Levels struct {
	L []*run.Level
}

// Picker chooses the next compaction to run, or returns nil if none is due.
type Picker interface {
	Pick(levels *Levels, baseLevelSize int64, ratio int) *Compaction
}

// LeveledPicker implements 's "Leveled" strategy: L0 compacts into
// L1 in full once it accumulates more runs than level0Trigger; every
// deeper level compacts one SST at a time into whichever L+1 overlap set
// is cheapest.
type LeveledPicker struct {
	Level0Trigger int
}

func (p *LeveledPicker) Pick(levels *Levels, baseLevelSize int64, ratio int) *Compaction {
	if len(levels.L) == 0 {
		return nil
	}
	l0 := levels.L[0]
	if len(l0.Runs) > p.Level0Trigger {
		var inputs []*run.SST
		for _, r := range l0.Runs {
			inputs = append(inputs, r.SSTs()...)
		}
		var target *run.SortedRun
		if len(levels.L) > 1 {
			target = overlappingRun(levels.L[1], inputs)
		}
		return &Compaction{Inputs: inputs, LevelFrom: 0, LevelTo: 1, TargetRun: target}
	}

	threshold := baseLevelSize
	for lvl := 1; lvl < len(levels.L); lvl++ {
		if int64(levels.L[lvl].Size()) >= threshold {
			var next *run.Level
			if lvl+1 < len(levels.L) {
				next = levels.L[lvl+1]
			}
			cand := pickCheapestSST(levels.L[lvl], next)
			if cand == nil {
				threshold *= int64(ratio)
				continue
			}
			var target *run.SortedRun
			if lvl+1 < len(levels.L) {
				target = overlappingRun(levels.L[lvl+1], []*run.SST{cand})
			}
			trivial := target == nil
			return &Compaction{
				Inputs:      []*run.SST{cand},
				LevelFrom:   lvl,
				LevelTo:     lvl + 1,
				TargetRun:   target,
				TrivialMove: trivial,
			}
		}
		threshold *= int64(ratio)
	}
	return nil
}

// pickCheapestSST returns the SST of l whose overlapping set in next has the
// smallest total size (the first one encountered on ties), or nil if l holds
// no SST. A nil next counts every overlap as empty.
func pickCheapestSST(l *run.Level, next *run.Level) *run.SST {
	var best *run.SST
	var bestCost uint64
	for _, r := range l.Runs {
		for _, s := range r.SSTs() {
			var cost uint64
			if next != nil {
				if t := overlappingRun(next, []*run.SST{s}); t != nil {
					cost = t.Size()
				}
			}
			if best == nil || cost < bestCost {
				best, bestCost = s, cost
			}
		}
	}
	return best
}

func overlappingRun(l *run.Level, inputs []*run.SST) *run.SortedRun {
	lo, hi := inputs[0].Info.Smallest.UserKey, inputs[0].Info.Largest.UserKey
	for _, in := range inputs[1:] {
		if string(in.Info.Smallest.UserKey) < string(lo) {
			lo = in.Info.Smallest.UserKey
		}
		if string(in.Info.Largest.UserKey) > string(hi) {
			hi = in.Info.Largest.UserKey
		}
	}
	var overlap []*run.SST
	for _, r := range l.Runs {
		for _, s := range r.SSTs() {
			if string(s.Info.Smallest.UserKey) <= string(hi) && string(s.Info.Largest.UserKey) >= string(lo) {
				overlap = append(overlap, s)
			}
		}
	}
	if len(overlap) == 0 {
		return nil
	}
	return run.New(overlap)
}

// TieredPicker implements a "Tiered" compaction strategy: scanning from the
// deepest populated level upward, compact an entire level's runs into a new
// run one level down once its run count or byte size crosses the
// threshold. The deepest level's merge has no target run (pure merge) —
// this implementation never constructs one in that branch, avoiding a
// shadowed-target_run bug where a stale target run is merged into twice.
type TieredPicker struct {
	Ratio int
}

func (p *TieredPicker) Pick(levels *Levels, baseLevelSize int64, ratio int) *Compaction {
	for lvl := len(levels.L) - 1; lvl >= 0; lvl-- {
		l := levels.L[lvl]
		if len(l.Runs) == 0 {
			continue
		}
		lvlThreshold := baseLevelSize
		for i := 0; i < lvl; i++ {
			lvlThreshold *= int64(ratio)
		}
		if len(l.Runs) >= p.Ratio || int64(l.Size()) >= lvlThreshold {
			var inputs []*run.SST
			for _, r := range l.Runs {
				inputs = append(inputs, r.SSTs()...)
			}
			isDeepest := lvl == len(levels.L)-1
			var target *run.SortedRun
			if !isDeepest {
				target = overlappingRun(levels.L[lvl+1], inputs)
			}
			return &Compaction{Inputs: inputs, LevelFrom: lvl, LevelTo: lvl + 1, TargetRun: target}
		}
	}
	return nil
}

// LazyLevelingPicker is TieredPicker except the deepest level is kept as a
// single sorted run, i.e. leveled behavior at the bottom.
type LazyLevelingPicker struct {
	Tiered TieredPicker
}

func (p *LazyLevelingPicker) Pick(levels *Levels, baseLevelSize int64, ratio int) *Compaction {
	deepest := len(levels.L) - 1
	if deepest >= 1 {
		l := levels.L[deepest]
		lvlThreshold := baseLevelSize
		for i := 0; i < deepest; i++ {
			lvlThreshold *= int64(ratio)
		}
		if int64(l.Size()) >= lvlThreshold && len(l.Runs) > 1 {
			var inputs []*run.SST
			for _, r := range l.Runs {
				inputs = append(inputs, r.SSTs()...)
			}
			return &Compaction{Inputs: inputs, LevelFrom: deepest, LevelTo: deepest, TargetRun: nil}
		}
	}
	return p.Tiered.Pick(levels, baseLevelSize, ratio)
}

// FluidPicker is the meta-picker of when alpha >= 0.3 it
// delegates to Leveled with ratio floor(36*alpha), otherwise to Tiered with
// ratio 8.
type FluidPicker struct {
	Alpha         float64
	Level0Trigger int
}

func (p *FluidPicker) Pick(levels *Levels, baseLevelSize int64, _ int) *Compaction {
	if p.Alpha >= 0.3 {
		ratio := int(36 * p.Alpha)
		if ratio < 1 {
			ratio = 1
		}
		return (&LeveledPicker{Level0Trigger: p.Level0Trigger}).Pick(levels, baseLevelSize, ratio)
	}
	return (&TieredPicker{Ratio: 8}).Pick(levels, baseLevelSize, 8)
}
