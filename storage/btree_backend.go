package storage

import (
	"sync"

	"vecql/storage/bptree"
)

// btreeFacade is the `b+tree` backend: one bptree.BTree per table, with the
// comparator chosen at Create time by the table's primary-key column type.
type btreeFacade struct {
	reg          *tableRegistry
	bufPoolPages int

	mu    sync.RWMutex
	trees map[string]*bptree.BTree
}

func newBTreeFacade(bufPoolPages int) *btreeFacade {
	return &btreeFacade{
		reg:          newTableRegistry(),
		bufPoolPages: bufPoolPages,
		trees:        make(map[string]*bptree.BTree),
	}
}

func (f *btreeFacade) Create(schema Schema) error {
	cmp, err := bptree.ComparatorFor(string(schema.PrimaryKeyCol))
	if err != nil {
		return err
	}
	if err := f.reg.create(schema.Table); err != nil {
		return err
	}
	f.mu.Lock()
	f.trees[schema.Table] = bptree.New(cmp, f.bufPoolPages)
	f.mu.Unlock()
	return nil
}

func (f *btreeFacade) Drop(table string) error {
	if err := f.reg.drop(table); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.trees, table)
	f.mu.Unlock()
	return nil
}

func (f *btreeFacade) tree(table string) (*bptree.BTree, error) {
	if err := f.reg.require(table); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.trees[table], nil
}

func (f *btreeFacade) Get(table string, key []byte) ([]byte, bool, error) {
	t, err := f.tree(table)
	if err != nil {
		return nil, false, err
	}
	v, ok := t.Get(key)
	return v, ok, nil
}

func (f *btreeFacade) Put(table string, key, value []byte) error {
	t, err := f.tree(table)
	if err != nil {
		return err
	}
	t.Put(key, append([]byte(nil), value...))
	return nil
}

func (f *btreeFacade) Delete(table string, key []byte) error {
	t, err := f.tree(table)
	if err != nil {
		return err
	}
	t.Delete(key)
	return nil
}

func (f *btreeFacade) Iterator(table string) (Iterator, error) {
	t, err := f.tree(table)
	if err != nil {
		return nil, err
	}
	return &bptreeIterator{it: t.Iterator()}, nil
}

func (f *btreeFacade) RangeIterator(table string, lo, hi RangeBound) (Iterator, error) {
	t, err := f.tree(table)
	if err != nil {
		return nil, err
	}
	var loVal, hiVal []byte
	loInc, hiInc := lo.Inclusive, hi.Inclusive
	if !lo.Unbounded {
		loVal = lo.Value
	}
	if !hi.Unbounded {
		hiVal = hi.Value
	}
	return &bptreeIterator{it: t.RangeIterator(loVal, hiVal, loInc, hiInc)}, nil
}

func (f *btreeFacade) Close() error { return nil }

// bptreeIterator adapts bptree.Iterator to the storage.Iterator interface.
type bptreeIterator struct {
	it *bptree.Iterator
}

func (i *bptreeIterator) Valid() bool   { return i.it.Valid() }
func (i *bptreeIterator) Key() []byte   { return i.it.Key() }
func (i *bptreeIterator) Value() []byte { return i.it.Value() }
func (i *bptreeIterator) Next()         { i.it.Next() }
func (i *bptreeIterator) Err() error    { return nil }
