// Package batch implements the vectorized execution engine's unit of
// work: a column-oriented group of up to size_batch tuples, each column
// typed and backed by its own flat slice, plus a selection bitmap marking
// rows still live after filtering.
package batch

import "bytes"

// Type names a column's scalar element type.
type Type int

const (
	TypeInt64 Type = iota
	TypeFloat64
	TypeString
	TypeBool
	TypeNull
)

// Scalar is a single typed value, used for literals and for one logical
// row passed to Append.
type Scalar struct {
	Type    Type
	Int64   int64
	Float64 float64
	Str     []byte
	Bool    bool
}

// Int64Scalar builds an int64 Scalar.
func Int64Scalar(v int64) Scalar { return Scalar{Type: TypeInt64, Int64: v} }

// Float64Scalar builds a float64 Scalar.
func Float64Scalar(v float64) Scalar { return Scalar{Type: TypeFloat64, Float64: v} }

// StringScalar builds a string Scalar.
func StringScalar(v []byte) Scalar { return Scalar{Type: TypeString, Str: v} }

// BoolScalar builds a bool Scalar.
func BoolScalar(v bool) Scalar { return Scalar{Type: TypeBool, Bool: v} }

// ColumnSpec names one column's identity and type, passed to Init.
type ColumnSpec struct {
	Table string
	Name  string
	Type  Type
}

// Column is one typed vector within a Batch. Exactly one of the typed
// slices is populated, per Type.
type Column struct {
	Table string
	Name  string
	Type  Type

	Int64s   []int64
	Float64s []float64
	Strings  [][]byte
	Bools    []bool
}

// Len returns the column's row count.
func (c Column) Len() int {
	switch c.Type {
	case TypeInt64:
		return len(c.Int64s)
	case TypeFloat64:
		return len(c.Float64s)
	case TypeString:
		return len(c.Strings)
	case TypeBool:
		return len(c.Bools)
	default:
		return 0
	}
}

// Get returns row i as a Scalar.
func (c Column) Get(i int) Scalar {
	switch c.Type {
	case TypeInt64:
		return Int64Scalar(c.Int64s[i])
	case TypeFloat64:
		return Float64Scalar(c.Float64s[i])
	case TypeString:
		return StringScalar(c.Strings[i])
	case TypeBool:
		return BoolScalar(c.Bools[i])
	default:
		return Scalar{Type: TypeNull}
	}
}

func (c *Column) append(v Scalar) {
	switch c.Type {
	case TypeInt64:
		c.Int64s = append(c.Int64s, v.Int64)
	case TypeFloat64:
		c.Float64s = append(c.Float64s, v.Float64)
	case TypeString:
		c.Strings = append(c.Strings, v.Str)
	case TypeBool:
		c.Bools = append(c.Bools, v.Bool)
	}
}

// BroadcastColumn builds a Column of length n, every row holding v — used to
// evaluate a Literal against a batch (expr.Literal.Eval).
func BroadcastColumn(v Scalar, n int) Column {
	c := Column{Type: v.Type}
	for i := 0; i < n; i++ {
		c.append(v)
	}
	return c
}

// Batch is a column-oriented group of up to capacity tuples.
type Batch struct {
	specs    []ColumnSpec
	Columns  []Column
	valid    []bool
	capacity int
}

// Init allocates a Batch for the given column specs and row capacity.
func (b *Batch) Init(specs []ColumnSpec, capacity int) {
	b.specs = specs
	b.capacity = capacity
	b.Columns = make([]Column, len(specs))
	for i, s := range specs {
		b.Columns[i] = Column{Table: s.Table, Name: s.Name, Type: s.Type}
	}
	b.valid = b.valid[:0]
}

// Reset empties the batch's rows while keeping its column schema and
// capacity, so it can be reused across Next() calls without reallocating.
func (b *Batch) Reset() {
	for i := range b.Columns {
		c := &b.Columns[i]
		c.Int64s = c.Int64s[:0]
		c.Float64s = c.Float64s[:0]
		c.Strings = c.Strings[:0]
		c.Bools = c.Bools[:0]
	}
	b.valid = b.valid[:0]
}

// Capacity returns the batch's configured max_batch_size.
func (b *Batch) Capacity() int { return b.capacity }

// Full reports whether the batch has reached its capacity.
func (b *Batch) Full() bool { return len(b.valid) >= b.capacity }

// Append adds one logical row, one Scalar per column in schema order, and
// marks it valid.
func (b *Batch) Append(row []Scalar) {
	for i := range b.Columns {
		b.Columns[i].append(row[i])
	}
	b.valid = append(b.valid, true)
}

// SetValid toggles row i's selection bit.
func (b *Batch) SetValid(i int, v bool) { b.valid[i] = v }

// IsValid reports row i's selection bit.
func (b *Batch) IsValid(i int) bool { return b.valid[i] }

// NumRows returns the batch's logical row count (selected and deselected
// rows both count; Valid rows are the surviving subset).
func (b *Batch) NumRows() int { return len(b.valid) }

// NumValid counts rows whose selection bit is set.
func (b *Batch) NumValid() int {
	n := 0
	for _, v := range b.valid {
		if v {
			n++
		}
	}
	return n
}

// ColumnByName finds a column by (table, name); table may be empty to match
// by name alone (used for synthesized/projected columns with no owning
// table).
func (b *Batch) ColumnByName(table, name string) (Column, bool) {
	for _, c := range b.Columns {
		if c.Name == name && (table == "" || c.Table == table) {
			return c, true
		}
	}
	return Column{}, false
}

// Concat returns its argument columns, in order, as one column list (e.g.
// [build_cols..., probe_cols...] for a join's output); it copies no data.
func Concat(cols ...Column) []Column {
	return cols
}

// ApplyBinary evaluates a comparison or boolean operator element-wise over
// two equal-length columns, returning a TypeBool Column. "AND" treats its
// operands as already-bool columns (their Bools slice); comparisons accept
// numeric or string columns of matching type.
func ApplyBinary(op string, l, r Column) Column {
	n := l.Len()
	if r.Len() < n {
		n = r.Len()
	}
	out := Column{Type: TypeBool, Bools: make([]bool, n)}
	for i := 0; i < n; i++ {
		out.Bools[i] = compareScalars(op, l.Get(i), r.Get(i))
	}
	return out
}

// ScalarsEqual reports whether a and b compare equal, following the same
// type-coercion rules as ApplyBinary("=", ...).
func ScalarsEqual(a, b Scalar) bool {
	return compareScalars("=", a, b)
}

func compareScalars(op string, a, b Scalar) bool {
	if op == "AND" {
		return a.Bool && b.Bool
	}
	c := compareValues(a, b)
	switch op {
	case "=":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	default:
		return false
	}
}

func compareValues(a, b Scalar) int {
	switch a.Type {
	case TypeString:
		return bytes.Compare(a.Str, b.Str)
	case TypeFloat64:
		af, bf := a.Float64, b.Float64
		if a.Type != b.Type {
			bf = scalarAsFloat(b)
		}
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	default: // TypeInt64 and TypeBool compare as integers
		ai, bi := scalarAsInt(a), scalarAsInt(b)
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
}

func scalarAsFloat(s Scalar) float64 {
	if s.Type == TypeFloat64 {
		return s.Float64
	}
	return float64(s.Int64)
}

func scalarAsInt(s Scalar) int64 {
	if s.Type == TypeBool {
		if s.Bool {
			return 1
		}
		return 0
	}
	return s.Int64
}
