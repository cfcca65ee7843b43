package strategy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/opcsub/types"
)

func makeSet(owner string, n int) types.ItemSet {
	items := make([]types.NamedItem, n)
	for i := range items {
		name := fmt.Sprintf("%s-%06d", owner, i)
		items[i] = types.NamedItem{Name: name, Options: types.MonitoredItemOptions{NodeID: "ns=2;s=" + name}}
	}

	return types.ItemSet{Owner: owner, Items: items}
}

type itemKey struct{ owner, name string }

func itemMultiset(sets []types.ItemSet) map[itemKey]int {
	m := make(map[itemKey]int)
	for _, s := range sets {
		for _, it := range s.Items {
			m[itemKey{s.Owner, it.Name}]++
		}
	}

	return m
}

func partitionMultiset(parts []types.Partition) map[itemKey]int {
	m := make(map[itemKey]int)
	for _, p := range parts {
		for _, it := range p.Items {
			m[itemKey{it.Owner, it.Name}]++
		}
	}

	return m
}

// requireValidPartitions checks conservation, capacity and non-emptiness.
func requireValidPartitions(t *testing.T, sets []types.ItemSet, parts []types.Partition, maxItems int) {
	t.Helper()

	require.Equal(t, itemMultiset(sets), partitionMultiset(parts))
	for i, p := range parts {
		require.NotZero(t, p.Len(), "partition %d is empty", i)
		require.LessOrEqual(t, p.Len(), maxItems, "partition %d exceeds cap", i)
	}
}

// partitionsOf returns the partition indices that hold items of owner.
func partitionsOf(parts []types.Partition, owner string) []int {
	var idx []int
	for i, p := range parts {
		for _, it := range p.Items {
			if it.Owner == owner {
				idx = append(idx, i)
				break
			}
		}
	}

	return idx
}
