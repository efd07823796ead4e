package bptree

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func encInt(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func TestIntComparatorDecodesFourAndEightByteWidths(t *testing.T) {
	var b4 [4]byte
	binary.BigEndian.PutUint32(b4[:], 7)
	require.Equal(t, 0, IntComparator(b4[:], encInt(7)))
	require.Equal(t, -1, IntComparator(b4[:], encInt(8)))
}

func TestPutGetManyKeysForcesSplits(t *testing.T) {
	tr := New(IntComparator, 16)
	const n = 500
	for i := 0; i < n; i++ {
		tr.Put(encInt(int64(i)), []byte{byte(i)})
	}
	require.Equal(t, n, tr.Count())
	for i := 0; i < n; i++ {
		v, ok := tr.Get(encInt(int64(i)))
		require.True(t, ok)
		require.Equal(t, byte(i), v[0])
	}
}

func TestPutReplacesExistingKey(t *testing.T) {
	tr := New(IntComparator, 16)
	tr.Put(encInt(1), []byte("a"))
	tr.Put(encInt(1), []byte("b"))
	require.Equal(t, 1, tr.Count())
	v, ok := tr.Get(encInt(1))
	require.True(t, ok)
	require.Equal(t, []byte("b"), v)
}

func TestDeleteRemovesKey(t *testing.T) {
	tr := New(IntComparator, 16)
	for i := 0; i < 50; i++ {
		tr.Put(encInt(int64(i)), []byte{byte(i)})
	}
	require.True(t, tr.Delete(encInt(10)))
	_, ok := tr.Get(encInt(10))
	require.False(t, ok)
	require.False(t, tr.Delete(encInt(10)))
	require.Equal(t, 49, tr.Count())
}

func TestIteratorYieldsAscendingOrder(t *testing.T) {
	tr := New(IntComparator, 16)
	for _, v := range []int64{5, 1, 3, 2, 4} {
		tr.Put(encInt(v), []byte{byte(v)})
	}
	it := tr.Iterator()
	var seen []int64
	for ; it.Valid(); it.Next() {
		seen = append(seen, int64(binary.BigEndian.Uint64(it.Key())))
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestRangeIteratorRespectsBoundsAndInclusivity(t *testing.T) {
	tr := New(IntComparator, 16)
	for i := int64(0); i < 10; i++ {
		tr.Put(encInt(i), []byte{byte(i)})
	}
	it := tr.RangeIterator(encInt(3), encInt(6), true, false)
	var seen []int64
	for ; it.Valid(); it.Next() {
		seen = append(seen, int64(binary.BigEndian.Uint64(it.Key())))
	}
	require.Equal(t, []int64{3, 4, 5}, seen)
}

func TestLexStringComparatorOrdersByPrefixThenLength(t *testing.T) {
	require.Equal(t, -1, LexStringComparator([]byte("ab"), []byte("abc")))
	require.Equal(t, 0, LexStringComparator([]byte("abc"), []byte("abc")))
	require.Equal(t, 1, LexStringComparator([]byte("b"), []byte("abc")))
}

func TestComparatorForResolvesKnownTypesAndRejectsUnknown(t *testing.T) {
	_, err := ComparatorFor("int")
	require.NoError(t, err)
	_, err = ComparatorFor("float")
	require.NoError(t, err)
	_, err = ComparatorFor("string")
	require.NoError(t, err)
	_, err = ComparatorFor("blob")
	require.Error(t, err)
}
