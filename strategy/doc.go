// Package strategy provides built-in partition strategy implementations.
//
// Partition strategies decide how the monitored items of all registrations that
// share one subscription configuration are spread across physical subscriptions,
// each of which the server caps at a maximum number of monitored items.
// The package includes two built-in strategies:
//
//   - BagPacked: Largest-first, first-fit bin packing (default)
//   - RoundRobin: Even spread over the minimum number of partitions
//
// # Strategy Selection Guide
//
// BagPacked:
//   - Keeps one registration's items together unless they alone exceed the cap
//   - Minimizes the number of physical subscriptions a consumer's notifications come from
//   - Bounds the subscription count close to the theoretical minimum
//
// RoundRobin:
//   - Balances item counts exactly across partitions
//   - Splits registrations freely, so a consumer may receive from every partition
//
// Custom strategies can be implemented by satisfying the types.PartitionStrategy interface.
package strategy

import (
	"math"

	"github.com/arloliu/opcsub/types"
)

// capacity normalizes a partition cap; non-positive means unbounded.
func capacity(maxItems int) int {
	if maxItems <= 0 {
		return math.MaxInt
	}

	return maxItems
}

// totalItems counts items across all sets.
func totalItems(sets []types.ItemSet) int {
	n := 0
	for _, s := range sets {
		n += len(s.Items)
	}

	return n
}
