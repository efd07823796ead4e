package block

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/ikey"
)

func mustParse(t *testing.T, b *Builder) *Block {
	t.Helper()
	raw := b.Finish()
	blk, err := Parse(raw, b.Count())
	require.NoError(t, err)
	return blk
}

func TestBuilderAcceptsFirstRecordRegardlessOfSize(t *testing.T) {
	b := NewBuilder(8) // absurdly small target
	ok := b.Append(ikey.New([]byte("k"), 1, ikey.Value), []byte("a value longer than eight bytes"))
	require.True(t, ok)
}

func TestBuilderRejectsOnceFull(t *testing.T) {
	b := NewBuilder(64)
	var accepted int
	for i := 0; i < 100; i++ {
		key := ikey.New([]byte(fmt.Sprintf("key-%03d", i)), uint64(i+1), ikey.Value)
		if !b.Append(key, []byte("value")) {
			break
		}
		accepted++
	}
	require.Greater(t, accepted, 0)
	require.Less(t, accepted, 100)
}

func TestBlockRoundTrip(t *testing.T) {
	b := NewBuilder(4096)
	type kv struct {
		key ikey.Key
		val []byte
	}
	var inserted []kv
	for i := 0; i < 50; i++ {
		k := ikey.New([]byte(fmt.Sprintf("user-%04d", i)), uint64(i+1), ikey.Value)
		v := []byte(fmt.Sprintf("value-%d", i))
		require.True(t, b.Append(k, v))
		inserted = append(inserted, kv{k, v})
	}

	blk := mustParse(t, b)
	it := blk.Iterator()
	it.SeekToFirst()
	var got []kv
	for it.Valid() {
		k := it.Key()
		v := append([]byte(nil), it.Value()...)
		got = append(got, kv{ikey.Key{UserKey: append([]byte(nil), k.UserKey...), Seq: k.Seq, Type: k.Type}, v})
		it.Next()
	}

	require.Len(t, got, len(inserted))
	for i := range inserted {
		require.Equal(t, string(inserted[i].key.UserKey), string(got[i].key.UserKey))
		require.Equal(t, inserted[i].key.Seq, got[i].key.Seq)
		require.Equal(t, string(inserted[i].val), string(got[i].val))
	}
}

func TestSeekFindsFirstAtOrAfterTarget(t *testing.T) {
	b := NewBuilder(4096)
	for i := 0; i < 10; i++ {
		k := ikey.New([]byte(fmt.Sprintf("k%02d", i*2)), 1, ikey.Value) // k00, k02, k04, ...
		require.True(t, b.Append(k, []byte("v")))
	}
	blk := mustParse(t, b)
	it := blk.Iterator()
	it.Seek([]byte("k05"), 1)
	require.True(t, it.Valid())
	require.Equal(t, "k06", string(it.Key().UserKey))
}

func TestParseDetectsCorruption(t *testing.T) {
	b := NewBuilder(4096)
	require.True(t, b.Append(ikey.New([]byte("a"), 1, ikey.Value), []byte("v")))
	raw := b.Finish()
	raw[0] ^= 0xFF // corrupt the record region
	_, err := Parse(raw, b.Count())
	require.Error(t, err)
}
