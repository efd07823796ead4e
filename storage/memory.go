package storage

import (
	"bytes"
	"sort"
	"sync"
)

// memoryFacade is the `memory` backend: a plain in-process map per table,
// useful for tests and for the optimizer's cost-model baseline.
type memoryFacade struct {
	reg  *tableRegistry
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func newMemoryFacade() *memoryFacade {
	return &memoryFacade{reg: newTableRegistry(), data: make(map[string]map[string][]byte)}
}

func (f *memoryFacade) Create(schema Schema) error {
	if err := f.reg.create(schema.Table); err != nil {
		return err
	}
	f.mu.Lock()
	f.data[schema.Table] = make(map[string][]byte)
	f.mu.Unlock()
	return nil
}

func (f *memoryFacade) Drop(table string) error {
	if err := f.reg.drop(table); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.data, table)
	f.mu.Unlock()
	return nil
}

func (f *memoryFacade) Get(table string, key []byte) ([]byte, bool, error) {
	if err := f.reg.require(table); err != nil {
		return nil, false, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[table][string(key)]
	return v, ok, nil
}

func (f *memoryFacade) Put(table string, key, value []byte) error {
	if err := f.reg.require(table); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[table][string(key)] = append([]byte(nil), value...)
	return nil
}

func (f *memoryFacade) Delete(table string, key []byte) error {
	if err := f.reg.require(table); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data[table], string(key))
	return nil
}

func (f *memoryFacade) snapshot(table string) ([][]byte, [][]byte, error) {
	if err := f.reg.require(table); err != nil {
		return nil, nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	tbl := f.data[table]
	keys := make([]string, 0, len(tbl))
	for k := range tbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	outKeys := make([][]byte, len(keys))
	outVals := make([][]byte, len(keys))
	for i, k := range keys {
		outKeys[i] = []byte(k)
		outVals[i] = tbl[k]
	}
	return outKeys, outVals, nil
}

func (f *memoryFacade) Iterator(table string) (Iterator, error) {
	keys, vals, err := f.snapshot(table)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{keys: keys, vals: vals}, nil
}

func (f *memoryFacade) RangeIterator(table string, lo, hi RangeBound) (Iterator, error) {
	keys, vals, err := f.snapshot(table)
	if err != nil {
		return nil, err
	}
	var fKeys, fVals [][]byte
	for i, k := range keys {
		if !lo.Unbounded {
			c := bytes.Compare(k, lo.Value)
			if c < 0 || (c == 0 && !lo.Inclusive) {
				continue
			}
		}
		if !hi.Unbounded {
			c := bytes.Compare(k, hi.Value)
			if c > 0 || (c == 0 && !hi.Inclusive) {
				continue
			}
		}
		fKeys = append(fKeys, k)
		fVals = append(fVals, vals[i])
	}
	return &sliceIterator{keys: fKeys, vals: fVals}, nil
}

func (f *memoryFacade) Close() error { return nil }

// sliceIterator walks a pre-sorted, pre-filtered slice pair; the memory
// facade materializes its range results eagerly into one.
type sliceIterator struct {
	keys, vals [][]byte
	pos        int
}

func (it *sliceIterator) Valid() bool   { return it.pos < len(it.keys) }
func (it *sliceIterator) Key() []byte   { return it.keys[it.pos] }
func (it *sliceIterator) Value() []byte { return it.vals[it.pos] }
func (it *sliceIterator) Next()         { it.pos++ }
func (it *sliceIterator) Err() error    { return nil }
