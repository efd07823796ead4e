package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vecql/config"
	"vecql/exec/batch"
)

func TestRegisterAndLookupTable(t *testing.T) {
	c := New(config.OptimizerOptions{})
	c.RegisterTable(TableSchema{
		Name:          "orders",
		Columns:       []Column{{Name: "id", Type: batch.TypeInt64}},
		PrimaryKeyCol: "id",
	}, 1000)

	s, err := c.Table("orders")
	require.NoError(t, err)
	require.Equal(t, "id", s.PrimaryKeyCol)

	card, ok := c.Cardinality("orders")
	require.True(t, ok)
	require.Equal(t, 1000.0, card)

	_, err = c.Table("missing")
	require.Error(t, err)
}

func TestCardinalityHintKeyedByTableSet(t *testing.T) {
	c := New(config.OptimizerOptions{TrueCardinalityHints: map[string]float64{
		config.CardinalityKey([]string{"a", "b"}): 42,
	}})
	v, ok := c.CardinalityHint([]string{"b", "a"})
	require.True(t, ok)
	require.Equal(t, 42.0, v)
}

func TestHasStatsForRequiresEveryTable(t *testing.T) {
	c := New(config.OptimizerOptions{})
	c.RegisterTable(TableSchema{Name: "a"}, 10)
	require.True(t, c.HasStatsFor([]string{"a"}))
	require.False(t, c.HasStatsFor([]string{"a", "b"}))
}

func TestDropTableRemovesStats(t *testing.T) {
	c := New(config.OptimizerOptions{})
	c.RegisterTable(TableSchema{Name: "a"}, 10)
	c.DropTable("a")
	_, err := c.Table("a")
	require.Error(t, err)
	_, ok := c.Cardinality("a")
	require.False(t, ok)
}
