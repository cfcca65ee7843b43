package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/opcsub/types"
)

func TestRoundRobin_Partition(t *testing.T) {
	t.Run("uses the minimum number of partitions", func(t *testing.T) {
		s := NewRoundRobin()
		sets := []types.ItemSet{makeSet("a", 5), makeSet("b", 70000)}

		parts := s.Partition(sets, 65536)

		require.Len(t, parts, 2)
		requireValidPartitions(t, sets, parts, 65536)
		require.Equal(t, 35003, parts[0].Len())
		require.Equal(t, 35002, parts[1].Len())
	})

	t.Run("handles uneven distribution", func(t *testing.T) {
		s := NewRoundRobin()
		sets := []types.ItemSet{makeSet("a", 3), makeSet("b", 2)}

		parts := s.Partition(sets, 2)

		require.Len(t, parts, 3)
		requireValidPartitions(t, sets, parts, 2)
		require.Equal(t, 2, parts[0].Len())
		require.Equal(t, 2, parts[1].Len())
		require.Equal(t, 1, parts[2].Len())
	})

	t.Run("returns nil when there are no items", func(t *testing.T) {
		s := NewRoundRobin()

		require.Nil(t, s.Partition(nil, 10))
		require.Nil(t, s.Partition([]types.ItemSet{{Owner: "a"}}, 10))
	})

	t.Run("deterministic", func(t *testing.T) {
		s := NewRoundRobin()
		sets := []types.ItemSet{makeSet("a", 17), makeSet("b", 9)}

		require.Equal(t, s.Partition(sets, 8), s.Partition(sets, 8))
	})
}
