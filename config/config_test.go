package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vecql.json")

	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default().LSM.BlockSize, opts.LSM.BlockSize)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, opts.LSM.SSTFileSize, reloaded.LSM.SSTFileSize)
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vecql.json")

	t.Setenv("VECQL_LSM_RATIO", "9")
	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, opts.LSM.Ratio)
}

func TestCardinalityKeyOrderIndependent(t *testing.T) {
	require.Equal(t, CardinalityKey([]string{"a", "b"}), CardinalityKey([]string{"b", "a"}))
	require.NotEqual(t, CardinalityKey([]string{"a", "c"}), CardinalityKey([]string{"a", "b"}))
}
