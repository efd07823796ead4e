package run

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/config"
	"vecql/ikey"
	"vecql/lsm/sstable"
)

type memFile struct{ data []byte }

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func buildSSTRange(t *testing.T, id uint64, lo, hi int) *SST {
	t.Helper()
	b := sstable.NewBuilder(4096, 10, config.CompressionNone)
	for i := lo; i < hi; i++ {
		k := ikey.New([]byte(fmt.Sprintf("k-%05d", i)), uint64(i+1), ikey.Value)
		b.Append(k, []byte(fmt.Sprintf("v%d", i)))
	}
	data, info := b.Finish(id)
	r, err := sstable.Open(&memFile{data: data}, info, config.CompressionNone)
	require.NoError(t, err)
	return &SST{Info: info, Reader: r}
}

func TestSortedRunGetAcrossSSTs(t *testing.T) {
	r := New([]*SST{
		buildSSTRange(t, 1, 0, 100),
		buildSSTRange(t, 2, 100, 200),
	})
	v, res, err := r.Get([]byte("k-00050"), 51)
	require.NoError(t, err)
	require.Equal(t, sstable.Found, res)
	require.Equal(t, []byte("v50"), v)

	v, res, err = r.Get([]byte("k-00150"), 151)
	require.NoError(t, err)
	require.Equal(t, sstable.Found, res)
	require.Equal(t, []byte("v150"), v)

	_, res, err = r.Get([]byte("k-99999"), 1)
	require.NoError(t, err)
	require.Equal(t, sstable.NotFound, res)
}

func TestSortedRunIteratorCrossesBoundaries(t *testing.T) {
	r := New([]*SST{
		buildSSTRange(t, 1, 0, 5),
		buildSSTRange(t, 2, 5, 10),
	})
	it := r.SeekToFirst()
	var count int
	for ; it.Valid(); it.Next() {
		count++
	}
	require.NoError(t, it.Err())
	require.Equal(t, 10, count)
}

func TestLevelGetNewestRunShadowsOlder(t *testing.T) {
	older := New([]*SST{buildSSTRange(t, 1, 0, 10)})
	// A newer run with a deletion for key 5.
	b := sstable.NewBuilder(4096, 10, config.CompressionNone)
	b.Append(ikey.New([]byte("k-00005"), 100, ikey.Deletion), nil)
	data, info := b.Finish(2)
	rd, err := sstable.Open(&memFile{data: data}, info, config.CompressionNone)
	require.NoError(t, err)
	newer := New([]*SST{{Info: info, Reader: rd}})

	l := &Level{Runs: []*SortedRun{older, newer}}
	_, res, err := l.Get([]byte("k-00005"), 200)
	require.NoError(t, err)
	require.Equal(t, sstable.Deleted, res)

	v, res, err := l.Get([]byte("k-00003"), 200)
	require.NoError(t, err)
	require.Equal(t, sstable.Found, res)
	require.Equal(t, []byte("v3"), v)
}
