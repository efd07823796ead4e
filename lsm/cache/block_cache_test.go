package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockCachePutGet(t *testing.T) {
	bc := NewBlockCache(4)
	k := BlockKey{SSTID: 1, Offset: 4096}
	bc.Put(k, []byte("block-bytes"))

	v, ok := bc.Get(k)
	require.True(t, ok)
	require.Equal(t, []byte("block-bytes"), v)

	_, ok = bc.Get(BlockKey{SSTID: 2, Offset: 0})
	require.False(t, ok)
}

func TestBlockCacheInvalidate(t *testing.T) {
	bc := NewBlockCache(4)
	k := BlockKey{SSTID: 1, Offset: 0}
	bc.Put(k, []byte("x"))
	bc.Invalidate(k)
	_, ok := bc.Get(k)
	require.False(t, ok)
}
