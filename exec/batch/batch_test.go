package batch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndReadBackRows(t *testing.T) {
	var b Batch
	b.Init([]ColumnSpec{
		{Table: "t", Name: "id", Type: TypeInt64},
		{Table: "t", Name: "name", Type: TypeString},
	}, 4)

	b.Append([]Scalar{Int64Scalar(1), StringScalar([]byte("a"))})
	b.Append([]Scalar{Int64Scalar(2), StringScalar([]byte("b"))})

	require.Equal(t, 2, b.NumRows())
	idCol, ok := b.ColumnByName("t", "id")
	require.True(t, ok)
	require.Equal(t, []int64{1, 2}, idCol.Int64s)
}

func TestSetValidTogglesSelectionBitmap(t *testing.T) {
	var b Batch
	b.Init([]ColumnSpec{{Table: "t", Name: "id", Type: TypeInt64}}, 4)
	b.Append([]Scalar{Int64Scalar(1)})
	b.Append([]Scalar{Int64Scalar(2)})

	require.Equal(t, 2, b.NumValid())
	b.SetValid(0, false)
	require.Equal(t, 1, b.NumValid())
	require.False(t, b.IsValid(0))
	require.True(t, b.IsValid(1))
}

func TestFullReportsAtCapacity(t *testing.T) {
	var b Batch
	b.Init([]ColumnSpec{{Name: "id", Type: TypeInt64}}, 2)
	require.False(t, b.Full())
	b.Append([]Scalar{Int64Scalar(1)})
	require.False(t, b.Full())
	b.Append([]Scalar{Int64Scalar(2)})
	require.True(t, b.Full())
}

func TestResetClearsRowsKeepsSchema(t *testing.T) {
	var b Batch
	b.Init([]ColumnSpec{{Name: "id", Type: TypeInt64}}, 4)
	b.Append([]Scalar{Int64Scalar(1)})
	b.Reset()
	require.Equal(t, 0, b.NumRows())
	require.Len(t, b.Columns, 1)
}

func TestApplyBinaryEquality(t *testing.T) {
	l := Column{Type: TypeInt64, Int64s: []int64{1, 2, 3}}
	r := Column{Type: TypeInt64, Int64s: []int64{1, 5, 3}}
	out := ApplyBinary("=", l, r)
	require.Equal(t, []bool{true, false, true}, out.Bools)
}

func TestApplyBinaryStringOrdering(t *testing.T) {
	l := Column{Type: TypeString, Strings: [][]byte{[]byte("a"), []byte("c")}}
	r := Column{Type: TypeString, Strings: [][]byte{[]byte("b"), []byte("b")}}
	out := ApplyBinary("<", l, r)
	require.Equal(t, []bool{true, false}, out.Bools)
}

func TestBroadcastColumnRepeatsValue(t *testing.T) {
	col := BroadcastColumn(Int64Scalar(7), 3)
	require.Equal(t, []int64{7, 7, 7}, col.Int64s)
}
