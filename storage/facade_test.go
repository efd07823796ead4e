package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/config"
)

func backends(t *testing.T) map[string]Facade {
	t.Helper()
	out := make(map[string]Facade)

	mem, err := Open(&config.Options{StorageBackend: config.BackendMemory}, nil)
	require.NoError(t, err)
	out["memory"] = mem

	bt, err := Open(&config.Options{StorageBackend: config.BackendBTree, BufPoolMaxPage: 64}, nil)
	require.NoError(t, err)
	out["b+tree"] = bt

	opts := config.Default()
	opts.StorageBackend = config.BackendLSM
	opts.DataDir = t.TempDir()
	ls, err := Open(opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ls.Close() })
	out["lsm"] = ls

	return out
}

func TestFacadeCreateDropRejectsContradictions(t *testing.T) {
	for name, f := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, f.Create(Schema{Table: "t", PrimaryKeyCol: ColumnString}))
			require.Error(t, f.Create(Schema{Table: "t", PrimaryKeyCol: ColumnString}))
			require.NoError(t, f.Drop("t"))
			require.Error(t, f.Drop("t"))
		})
	}
}

func TestFacadePutGetDelete(t *testing.T) {
	for name, f := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, f.Create(Schema{Table: "t", PrimaryKeyCol: ColumnString}))

			_, ok, err := f.Get("t", []byte("k1"))
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, f.Put("t", []byte("k1"), []byte("v1")))
			v, ok, err := f.Get("t", []byte("k1"))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("v1"), v)

			require.NoError(t, f.Put("t", []byte("k1"), []byte("v2")))
			v, ok, err = f.Get("t", []byte("k1"))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, []byte("v2"), v)

			require.NoError(t, f.Delete("t", []byte("k1")))
			_, ok, err = f.Get("t", []byte("k1"))
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestFacadeIteratorWalksInKeyOrder(t *testing.T) {
	for name, f := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, f.Create(Schema{Table: "t", PrimaryKeyCol: ColumnString}))
			for _, k := range []string{"c", "a", "b"} {
				require.NoError(t, f.Put("t", []byte(k), []byte(k+"-val")))
			}
			it, err := f.Iterator("t")
			require.NoError(t, err)
			var keys []string
			for ; it.Valid(); it.Next() {
				keys = append(keys, string(it.Key()))
			}
			require.NoError(t, it.Err())
			require.Equal(t, []string{"a", "b", "c"}, keys)
		})
	}
}

func TestFacadeRangeIteratorRespectsBounds(t *testing.T) {
	for name, f := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, f.Create(Schema{Table: "t", PrimaryKeyCol: ColumnString}))
			for _, k := range []string{"a", "b", "c", "d", "e"} {
				require.NoError(t, f.Put("t", []byte(k), []byte(k)))
			}
			it, err := f.RangeIterator("t",
				RangeBound{Value: []byte("b"), Inclusive: true},
				RangeBound{Value: []byte("d"), Inclusive: false})
			require.NoError(t, err)
			var keys []string
			for ; it.Valid(); it.Next() {
				keys = append(keys, string(it.Key()))
			}
			require.Equal(t, []string{"b", "c"}, keys)
		})
	}
}
