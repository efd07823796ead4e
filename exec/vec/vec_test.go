package vec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/config"
	"vecql/exec/batch"
	"vecql/expr"
	"vecql/storage"
)

// sliceExecutor replays a fixed list of batches, then an empty one forever.
type sliceExecutor struct {
	schema []batch.ColumnSpec
	pages  []*batch.Batch
	pos    int
	stats  Stats
}

func (s *sliceExecutor) Init() error                      { return nil }
func (s *sliceExecutor) OutputSchema() []batch.ColumnSpec { return s.schema }
func (s *sliceExecutor) GetTotalOutputSize() int64        { return s.stats.Total() }
func (s *sliceExecutor) Next() (*batch.Batch, error) {
	if s.pos >= len(s.pages) {
		b := &batch.Batch{}
		b.Init(s.schema, 8)
		return b, nil
	}
	b := s.pages[s.pos]
	s.pos++
	s.stats.Add(b.NumValid())
	return b, nil
}

func intBatch(schema []batch.ColumnSpec, ids []int64) *batch.Batch {
	b := &batch.Batch{}
	b.Init(schema, len(ids)+1)
	for _, id := range ids {
		b.Append([]batch.Scalar{batch.Int64Scalar(id)})
	}
	return b
}

func encodeInt64(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func TestSeqScanExecutorYieldsAllRowsFromFacade(t *testing.T) {
	f, err := storage.Open(&config.Options{StorageBackend: config.BackendMemory}, nil)
	require.NoError(t, err)
	require.NoError(t, f.Create(storage.Schema{Table: "t", PrimaryKeyCol: storage.ColumnInt}))
	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, f.Put("t", encodeInt64(id), []byte("v")))
	}

	schema := []batch.ColumnSpec{{Table: "t", Name: "id", Type: batch.TypeInt64}}
	scan := &SeqScanExecutor{
		Table:  "t",
		Schema: schema,
		Facade: f,
		Decode: func(key, value []byte) []batch.Scalar {
			return []batch.Scalar{batch.Int64Scalar(int64(binary.BigEndian.Uint64(key)))}
		},
		BatchSize: 8,
	}
	require.NoError(t, scan.Init())
	b, err := scan.Next()
	require.NoError(t, err)
	require.Equal(t, 3, b.NumRows())
	require.Equal(t, []int64{1, 2, 3}, b.Columns[0].Int64s)

	b2, err := scan.Next()
	require.NoError(t, err)
	require.Equal(t, 0, b2.NumRows())
	require.EqualValues(t, 3, scan.GetTotalOutputSize())
}

func TestFilterExecutorMasksOutNonMatchingRows(t *testing.T) {
	schema := []batch.ColumnSpec{{Name: "id", Type: batch.TypeInt64}}
	child := &sliceExecutor{schema: schema, pages: []*batch.Batch{intBatch(schema, []int64{1, 2, 3, 4})}}
	f := &FilterExecutor{
		Child: child,
		Predicate: expr.Binary{
			Operator: expr.OpGt,
			Left:     expr.ColumnRef{Column: "id"},
			Right:    expr.Literal{Value: batch.Int64Scalar(2)},
		},
	}
	require.NoError(t, f.Init())
	b, err := f.Next()
	require.NoError(t, err)
	require.Equal(t, 4, b.NumRows())
	require.Equal(t, []bool{false, false, true, true}, []bool{b.IsValid(0), b.IsValid(1), b.IsValid(2), b.IsValid(3)})
	// 2 rows kept by the filter plus the 4 rows its child emitted.
	require.EqualValues(t, 6, f.GetTotalOutputSize())
}

func TestProjectExecutorEvaluatesExpressions(t *testing.T) {
	schema := []batch.ColumnSpec{{Name: "id", Type: batch.TypeInt64}}
	child := &sliceExecutor{schema: schema, pages: []*batch.Batch{intBatch(schema, []int64{1, 2})}}
	p := &ProjectExecutor{
		Child:   child,
		Exprs:   []expr.Expr{expr.ColumnRef{Column: "id"}},
		Aliases: []batch.ColumnSpec{{Name: "id", Type: batch.TypeInt64}},
	}
	require.NoError(t, p.Init())
	b, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, b.Columns[0].Int64s)
}

func buildJoinSides() (Executor, Executor, []batch.ColumnSpec) {
	leftSchema := []batch.ColumnSpec{{Table: "a", Name: "x", Type: batch.TypeInt64}}
	rightSchema := []batch.ColumnSpec{{Table: "b", Name: "y", Type: batch.TypeInt64}}
	left := &sliceExecutor{schema: leftSchema, pages: []*batch.Batch{intBatch(leftSchema, []int64{1, 2, 3})}}
	right := &sliceExecutor{schema: rightSchema, pages: []*batch.Batch{intBatch(rightSchema, []int64{2, 3, 4})}}
	out := []batch.ColumnSpec{
		{Table: "a", Name: "x", Type: batch.TypeInt64},
		{Table: "b", Name: "y", Type: batch.TypeInt64},
	}
	return left, right, out
}

func TestHashJoinMatchesEqualityKeys(t *testing.T) {
	left, right, out := buildJoinSides()
	hj := &HashJoinVecExecutor{
		Left:           left,
		Right:          right,
		LeftHashExprs:  []expr.Expr{expr.ColumnRef{Table: "a", Column: "x"}},
		RightHashExprs: []expr.Expr{expr.ColumnRef{Table: "b", Column: "y"}},
		Residual: expr.Binary{
			Operator: expr.OpEq,
			Left:     expr.ColumnRef{Table: "a", Column: "x"},
			Right:    expr.ColumnRef{Table: "b", Column: "y"},
		},
		OutSpecs:  out,
		BatchSize: 8,
	}
	require.NoError(t, hj.Init())
	var matched []int64
	for {
		b, err := hj.Next()
		require.NoError(t, err)
		if b.NumRows() == 0 {
			break
		}
		for i := 0; i < b.NumRows(); i++ {
			if b.IsValid(i) {
				matched = append(matched, b.Columns[0].Int64s[i])
			}
		}
	}
	require.ElementsMatch(t, []int64{2, 3}, matched)
}

func TestNestedLoopJoinMatchesAcrossAllPairs(t *testing.T) {
	left, right, out := buildJoinSides()
	nl := &JoinVecExecutor{
		Left:  left,
		Right: right,
		Predicate: expr.Binary{
			Operator: expr.OpEq,
			Left:     expr.ColumnRef{Table: "a", Column: "x"},
			Right:    expr.ColumnRef{Table: "b", Column: "y"},
		},
		OutSpecs:  out,
		BatchSize: 2,
	}
	require.NoError(t, nl.Init())
	var matched []int64
	for {
		b, err := nl.Next()
		require.NoError(t, err)
		if b.NumRows() == 0 {
			break
		}
		for i := 0; i < b.NumRows(); i++ {
			if b.IsValid(i) {
				matched = append(matched, b.Columns[0].Int64s[i])
			}
		}
	}
	require.ElementsMatch(t, []int64{2, 3}, matched)
	// 2 joined rows plus the 3 rows emitted by each child.
	require.EqualValues(t, 8, nl.GetTotalOutputSize())
}
