package strategy

import (
	"github.com/arloliu/opcsub/types"
)

// RoundRobin implements an even round-robin spread of items.
type RoundRobin struct{}

var _ types.PartitionStrategy = (*RoundRobin)(nil)

// NewRoundRobin creates a new round-robin strategy.
//
// The strategy uses the minimum number of partitions the cap allows and deals
// items across them one at a time, so partition sizes differ by at most one.
// It does not keep a registration's items together.
//
// Returns:
//   - *RoundRobin: Initialized round-robin strategy
//
// Example:
//
//	cfg := opcsub.DefaultConfig()
//	client, err := opcsub.NewClient(&cfg, session, opcsub.WithStrategy(strategy.NewRoundRobin()))
//	if err != nil {
//	    return err
//	}
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Partition deals all items across ceil(total / maxItems) partitions.
//
// Items are visited in input order (set by set, item by item), so the result
// is deterministic for identical input.
//
// Parameters:
//   - sets: Item sets, one per registration
//   - maxItems: Per-partition item cap (non-positive means unbounded)
//
// Returns:
//   - []types.Partition: Ordered partitions (nil when there are no items)
func (rr *RoundRobin) Partition(sets []types.ItemSet, maxItems int) []types.Partition {
	total := totalItems(sets)
	if total == 0 {
		return nil
	}

	limit := capacity(maxItems)
	n := total / limit
	if total%limit != 0 {
		n++
	}

	partitions := make([]types.Partition, n)
	for i := range partitions {
		partitions[i].Items = make([]types.PartitionItem, 0, total/n+1)
	}

	i := 0
	for _, s := range sets {
		for _, it := range s.Items {
			p := &partitions[i%n]
			p.Items = append(p.Items, types.PartitionItem{Owner: s.Owner, Name: it.Name, Options: it.Options})
			i++
		}
	}

	return partitions
}
