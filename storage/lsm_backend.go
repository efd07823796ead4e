package storage

import (
	"bytes"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"vecql/config"
	"vecql/lsm"
)

// lsmFacade is the `lsm` backend: one lsm.Engine per table, each rooted at
// its own subdirectory of opts.DataDir.
type lsmFacade struct {
	reg    *tableRegistry
	opts   *config.Options
	logger *zap.Logger

	mu      sync.RWMutex
	engines map[string]*lsm.Engine
}

func newLSMFacade(opts *config.Options, logger *zap.Logger) *lsmFacade {
	return &lsmFacade{
		reg:     newTableRegistry(),
		opts:    opts,
		logger:  logger,
		engines: make(map[string]*lsm.Engine),
	}
}

func (f *lsmFacade) Create(schema Schema) error {
	if err := f.reg.create(schema.Table); err != nil {
		return err
	}
	dir := filepath.Join(f.opts.DataDir, tableDirName(schema.Table))
	e, err := lsm.Open(dir, f.opts.LSM, f.logger)
	if err != nil {
		_ = f.reg.drop(schema.Table)
		return err
	}
	f.mu.Lock()
	f.engines[schema.Table] = e
	f.mu.Unlock()
	return nil
}

func (f *lsmFacade) Drop(table string) error {
	if err := f.reg.drop(table); err != nil {
		return err
	}
	f.mu.Lock()
	e := f.engines[table]
	delete(f.engines, table)
	f.mu.Unlock()
	if e != nil {
		e.Close()
	}
	return nil
}

func (f *lsmFacade) engine(table string) (*lsm.Engine, error) {
	if err := f.reg.require(table); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.engines[table], nil
}

func (f *lsmFacade) Get(table string, key []byte) ([]byte, bool, error) {
	e, err := f.engine(table)
	if err != nil {
		return nil, false, err
	}
	return e.Get(key)
}

func (f *lsmFacade) Put(table string, key, value []byte) error {
	e, err := f.engine(table)
	if err != nil {
		return err
	}
	return e.Put(key, value)
}

func (f *lsmFacade) Delete(table string, key []byte) error {
	e, err := f.engine(table)
	if err != nil {
		return err
	}
	return e.Delete(key)
}

func (f *lsmFacade) Iterator(table string) (Iterator, error) {
	e, err := f.engine(table)
	if err != nil {
		return nil, err
	}
	return &lsmIterator{it: e.Iterator()}, nil
}

func (f *lsmFacade) RangeIterator(table string, lo, hi RangeBound) (Iterator, error) {
	e, err := f.engine(table)
	if err != nil {
		return nil, err
	}
	var loKey []byte
	if !lo.Unbounded {
		loKey = lo.Value
		if !lo.Inclusive {
			loKey = append(append([]byte(nil), lo.Value...), 0x00)
		}
	}
	it := &lsmIterator{it: e.RangeIterator(loKey), hi: hi}
	it.applyUpperBound()
	return it, nil
}

func (f *lsmFacade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.engines {
		e.Close()
	}
	return nil
}

// lsmIterator adapts lsm.Iterator to storage.Iterator, additionally
// enforcing the RangeIterator upper bound (the engine's own RangeIterator
// only seeks the lower bound).
type lsmIterator struct {
	it   *lsm.Iterator
	hi   RangeBound
	done bool
}

func (i *lsmIterator) applyUpperBound() {
	if i.done || i.hi.Unbounded || !i.it.Valid() {
		return
	}
	c := bytes.Compare(i.it.Key(), i.hi.Value)
	if c > 0 || (c == 0 && !i.hi.Inclusive) {
		i.done = true
	}
}

func (i *lsmIterator) Valid() bool   { return !i.done && i.it.Valid() }
func (i *lsmIterator) Key() []byte   { return i.it.Key() }
func (i *lsmIterator) Value() []byte { return i.it.Value() }
func (i *lsmIterator) Err() error    { return i.it.Err() }
func (i *lsmIterator) Next() {
	i.it.Next()
	i.applyUpperBound()
}
