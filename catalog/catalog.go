// Package catalog implements a minimal schema/statistics registry: just
// enough of a table registry and cardinality-hint lookup to drive and
// test the join-order DP planner, standing in for a real catalog service.
package catalog

import (
	"sync"

	"vecql/config"
	"vecql/dberrors"
	"vecql/exec/batch"
)

// Column describes one column of a table's schema.
type Column struct {
	Name string
	Type batch.Type
}

// TableSchema is one table's column layout and primary key.
type TableSchema struct {
	Name          string
	Columns       []Column
	PrimaryKeyCol string
}

// ColumnSpecs returns the table's columns as batch.ColumnSpec, suitable for
// a SeqScanExecutor's OutputSchema.
func (t TableSchema) ColumnSpecs() []batch.ColumnSpec {
	specs := make([]batch.ColumnSpec, len(t.Columns))
	for i, c := range t.Columns {
		specs[i] = batch.ColumnSpec{Table: t.Name, Name: c.Name, Type: c.Type}
	}
	return specs
}

// Catalog is the engine-wide, exclusive-lock-guarded schema and statistics
// registry.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]TableSchema
	stats  map[string]float64 // table name -> estimated cardinality

	hints map[string]float64 // CardinalityKey(tableSet) -> exact hint
}

// New creates an empty Catalog, seeding true_cardinality_hints from opts.
func New(opts config.OptimizerOptions) *Catalog {
	hints := make(map[string]float64, len(opts.TrueCardinalityHints))
	for k, v := range opts.TrueCardinalityHints {
		hints[k] = v
	}
	return &Catalog{
		tables: make(map[string]TableSchema),
		stats:  make(map[string]float64),
		hints:  hints,
	}
}

// RegisterTable adds or replaces a table's schema (DDL path).
func (c *Catalog) RegisterTable(schema TableSchema, estimatedCardinality float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[schema.Name] = schema
	c.stats[schema.Name] = estimatedCardinality
}

// DropTable removes a table's schema and statistics.
func (c *Catalog) DropTable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, name)
	delete(c.stats, name)
}

// Table looks up a table's schema.
func (c *Catalog) Table(name string) (TableSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.tables[name]
	if !ok {
		return TableSchema{}, dberrors.New(dberrors.KindPlan, "catalog: unknown table %q", name)
	}
	return s, nil
}

// Cardinality returns table's estimated row count from catalog statistics.
func (c *Catalog) Cardinality(table string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.stats[table]
	return v, ok
}

// CardinalityHint returns the exact cardinality hint for a set of tables
// joined together, keyed by the sorted table-name set.
func (c *Catalog) CardinalityHint(tableNames []string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.hints[config.CardinalityKey(tableNames)]
	return v, ok
}

// HasStatsFor reports whether cardinality information (hint or catalog
// stat) exists for every named table — the DP planner's applicability
// precondition.
func (c *Catalog) HasStatsFor(tableNames []string) bool {
	if _, ok := c.CardinalityHint(tableNames); ok {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range tableNames {
		if _, ok := c.stats[t]; !ok {
			return false
		}
	}
	return true
}
