// Package storage implements the storage facade: a uniform
// Get/Put/Delete/Iterator/RangeIterator/Create/Drop contract in front of
// three interchangeable backends selected by storage_backend_name
// (memory, b+tree, lsm).
package storage

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vecql/config"
	"vecql/dberrors"
)

// ColumnType names a primary-key column's type, used to pick a B+tree
// comparator.
type ColumnType string

const (
	ColumnInt    ColumnType = "int"
	ColumnFloat  ColumnType = "float"
	ColumnString ColumnType = "string"
)

// Schema describes the table passed to Create.
type Schema struct {
	Table         string
	PrimaryKeyCol ColumnType
}

// RangeBound is one endpoint of a RangeIterator scan: Unbounded ignores
// Value entirely; otherwise Inclusive decides whether Value itself is
// returned.
type RangeBound struct {
	Value     []byte
	Unbounded bool
	Inclusive bool
}

// Unbounded is the always-open RangeBound.
var Unbounded = RangeBound{Unbounded: true}

// Iterator walks (key, value) pairs in primary-key order.
type Iterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next()
	Err() error
}

// Facade is the uniform storage contract describes, regardless
// of which backend implements it.
type Facade interface {
	Create(schema Schema) error
	Drop(table string) error
	Get(table string, key []byte) ([]byte, bool, error)
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
	Iterator(table string) (Iterator, error)
	RangeIterator(table string, lo, hi RangeBound) (Iterator, error)
	Close() error
}

// Open constructs the Facade named by opts.StorageBackend, rooted at
// opts.DataDir (grounded on engine_facade.go dispatch over
// storage_backend_name, generalized to the design's memory/b+tree/lsm trio).
func Open(opts *config.Options, logger *zap.Logger) (Facade, error) {
	switch opts.StorageBackend {
	case config.BackendMemory:
		return newMemoryFacade(), nil
	case config.BackendBTree:
		return newBTreeFacade(opts.BufPoolMaxPage), nil
	case config.BackendLSM:
		return newLSMFacade(opts, logger), nil
	default:
		return nil, dberrors.New(dberrors.KindPlan, "storage: unknown backend %q", opts.StorageBackend)
	}
}

// errTableNotFound/errTableExists are the Create/Drop existence-contradiction
// errors.
func errTableNotFound(table string) error {
	return dberrors.New(dberrors.KindNotFound, "storage: table %q does not exist", table)
}

func errTableExists(table string) error {
	return dberrors.New(dberrors.KindDuplicateKey, "storage: table %q already exists", table)
}

// tableRegistry is the common "named table → per-table state" bookkeeping
// shared by the memory, B+tree and LSM facades (the LSM facade additionally
// keeps one engine per table, each in its own on-disk subdirectory).
type tableRegistry struct {
	mu     sync.RWMutex
	tables map[string]struct{}
}

func newTableRegistry() *tableRegistry {
	return &tableRegistry{tables: make(map[string]struct{})}
}

func (r *tableRegistry) create(table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[table]; ok {
		return errTableExists(table)
	}
	r.tables[table] = struct{}{}
	return nil
}

func (r *tableRegistry) drop(table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[table]; !ok {
		return errTableNotFound(table)
	}
	delete(r.tables, table)
	return nil
}

func (r *tableRegistry) require(table string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tables[table]; !ok {
		return errTableNotFound(table)
	}
	return nil
}

func tableDirName(table string) string {
	return fmt.Sprintf("table_%s", table)
}
