package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/ikey"
	"vecql/lsm/iter"
)

// sliceIter is a trivial in-memory iter.Iterator over a pre-sorted slice,
// used to exercise the merge heap without depending on block/sstable.
type sliceIter struct {
	keys []ikey.Key
	vals [][]byte
	pos  int
}

func (s *sliceIter) SeekToFirst()                { s.pos = 0 }
func (s *sliceIter) Seek(k []byte, seq ikey.Seq) {}
func (s *sliceIter) Valid() bool                 { return s.pos < len(s.keys) }
func (s *sliceIter) Key() ikey.Key               { return s.keys[s.pos] }
func (s *sliceIter) Value() []byte               { return s.vals[s.pos] }
func (s *sliceIter) Next()                       { s.pos++ }
func (s *sliceIter) Err() error                  { return nil }

func kv(userKey string, seq uint64) ikey.Key {
	return ikey.New([]byte(userKey), seq, ikey.Value)
}

func TestHeapMergesInAscendingOrder(t *testing.T) {
	a := &sliceIter{keys: []ikey.Key{kv("a", 1), kv("c", 1), kv("e", 1)}, vals: [][]byte{{1}, {1}, {1}}}
	b := &sliceIter{keys: []ikey.Key{kv("b", 1), kv("d", 1), kv("f", 1)}, vals: [][]byte{{2}, {2}, {2}}}
	a.SeekToFirst()
	b.SeekToFirst()

	h := New([]iter.Iterator{a, b})

	var order []string
	for h.Valid() {
		order = append(order, string(h.Key().UserKey))
		h.Next()
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, order)
	require.NoError(t, h.Err())
}
