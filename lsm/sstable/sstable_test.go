package sstable

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/config"
	"vecql/ikey"
)

// memFile is a minimal io.ReaderAt over an in-memory byte slice, standing
// in for the on-disk SST file a real engine would open.
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

func buildSST(t *testing.T, n int) (*Reader, []ikey.Key, [][]byte) {
	t.Helper()
	b := NewBuilder(256, 10, config.CompressionNone)
	var keys []ikey.Key
	var values [][]byte
	for i := 0; i < n; i++ {
		k := ikey.New([]byte(fmt.Sprintf("user-%04d", i)), uint64(i+1), ikey.Value)
		v := []byte(fmt.Sprintf("value-%d", i))
		b.Append(k, v)
		keys = append(keys, k)
		values = append(values, v)
	}
	data, info := b.Finish(1)
	r, err := Open(&memFile{data: data}, info, config.CompressionNone)
	require.NoError(t, err)
	return r, keys, values
}

func TestBuilderReaderRoundTripGet(t *testing.T) {
	r, keys, values := buildSST(t, 200)
	for i, k := range keys {
		v, res, err := r.Get(k.UserKey, k.Seq)
		require.NoError(t, err)
		require.Equal(t, Found, res)
		require.Equal(t, values[i], v)
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	r, _, _ := buildSST(t, 50)
	_, res, err := r.Get([]byte("does-not-exist"), ^ikey.Seq(0))
	require.NoError(t, err)
	require.Equal(t, NotFound, res)
}

func TestGetRespectsSnapshotSeq(t *testing.T) {
	b := NewBuilder(4096, 10, config.CompressionNone)
	userKey := []byte("hot-key")
	b.Append(ikey.New(userKey, 3, ikey.Deletion), nil)
	b.Append(ikey.New(userKey, 2, ikey.Value), []byte("v2"))
	b.Append(ikey.New(userKey, 1, ikey.Value), []byte("v1"))
	data, info := b.Finish(2)
	r, err := Open(&memFile{data: data}, info, config.CompressionNone)
	require.NoError(t, err)

	v, res, err := r.Get(userKey, 1)
	require.NoError(t, err)
	require.Equal(t, Found, res)
	require.Equal(t, []byte("v1"), v)

	v, res, err = r.Get(userKey, 2)
	require.NoError(t, err)
	require.Equal(t, Found, res)
	require.Equal(t, []byte("v2"), v)

	_, res, err = r.Get(userKey, 3)
	require.NoError(t, err)
	require.Equal(t, Deleted, res)
}

func TestGetFindsRecordStraddlingBlockBoundary(t *testing.T) {
	// Force many tiny blocks so a user key's newest record and the index
	// entry selected by lowerBound can land in different blocks.
	b := NewBuilder(48, 10, config.CompressionNone)
	userKey := []byte("boundary-key")
	n := 40
	for i := n - 1; i >= 0; i-- {
		b.Append(ikey.New(userKey, uint64(i+1), ikey.Value), []byte(fmt.Sprintf("v%02d", i)))
	}
	data, info := b.Finish(3)
	r, err := Open(&memFile{data: data}, info, config.CompressionNone)
	require.NoError(t, err)
	require.Greater(t, len(r.index), 1)

	v, res, err := r.Get(userKey, uint64(n))
	require.NoError(t, err)
	require.Equal(t, Found, res)
	require.Equal(t, []byte(fmt.Sprintf("v%02d", n-1)), v)
}

func TestIteratorWalksInOrderAcrossBlocks(t *testing.T) {
	r, keys, values := buildSST(t, 300)
	it := r.Iterator()
	var i int
	for it.SeekToFirst(); it.Valid(); it.Next() {
		require.Equal(t, string(keys[i].UserKey), string(it.Key().UserKey))
		require.Equal(t, values[i], it.Value())
		i++
	}
	require.NoError(t, it.Err())
	require.Equal(t, len(keys), i)
}

func TestIteratorSeekLandsAtOrAfterTarget(t *testing.T) {
	r, keys, _ := buildSST(t, 300)
	it := r.Iterator()
	target := keys[150]
	it.Seek(target.UserKey, target.Seq)
	require.True(t, it.Valid())
	require.False(t, ikey.Less(it.Key(), target))
}

func TestBuilderReaderRoundTripWithCompression(t *testing.T) {
	for _, c := range []config.Compression{config.CompressionSnappy, config.CompressionZstd} {
		b := NewBuilder(128, 10, c)
		var keys []ikey.Key
		var values [][]byte
		for i := 0; i < 100; i++ {
			k := ikey.New([]byte(fmt.Sprintf("user-%04d", i)), uint64(i+1), ikey.Value)
			v := []byte(fmt.Sprintf("value-%d-%s", i, c))
			b.Append(k, v)
			keys = append(keys, k)
			values = append(values, v)
		}
		data, info := b.Finish(1)
		r, err := Open(&memFile{data: data}, info, c)
		require.NoError(t, err)
		for i, k := range keys {
			v, res, err := r.Get(k.UserKey, k.Seq)
			require.NoError(t, err)
			require.Equal(t, Found, res)
			require.Equal(t, values[i], v)
		}
	}
}

func TestDecodeBloomRejectsTruncatedBlob(t *testing.T) {
	_, err := DecodeBloom([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestBloomFilterHasNoFalseNegatives(t *testing.T) {
	bf := NewBloom(1000, 10)
	var keys [][]byte
	for i := 0; i < 1000; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		bf.AddKey(k)
		keys = append(keys, k)
	}
	for _, k := range keys {
		require.True(t, bf.TestKey(k))
	}
}

func TestBloomEncodeDecodeRoundTrip(t *testing.T) {
	bf := NewBloom(100, 8)
	bf.AddKey([]byte("a"))
	bf.AddKey([]byte("b"))
	decoded, err := DecodeBloom(bf.Encode())
	require.NoError(t, err)
	require.True(t, decoded.TestKey([]byte("a")))
	require.True(t, decoded.TestKey([]byte("b")))
	require.True(t, bytes.Equal(bf.bits, decoded.bits))
}
