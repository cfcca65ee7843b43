package strategy

import (
	"slices"

	"github.com/arloliu/opcsub/types"
)

// BagPacked implements largest-first, first-fit bin packing of item sets.
type BagPacked struct{}

var _ types.PartitionStrategy = (*BagPacked)(nil)

// NewBagPacked creates a new bag-packing strategy.
//
// The strategy sorts item sets by descending size and places each whole set into
// the first partition (in creation order) that still has room for it. A set that
// fits nowhere opens a new partition; a set larger than the cap is split into
// successive cap-sized batches, one new partition per batch.
//
// Returns:
//   - *BagPacked: Initialized bag-packing strategy
//
// Example:
//
//	cfg := opcsub.DefaultConfig()
//	client, err := opcsub.NewClient(&cfg, session, opcsub.WithStrategy(strategy.NewBagPacked()))
//	if err != nil {
//	    return err
//	}
func NewBagPacked() *BagPacked {
	return &BagPacked{}
}

// bag is an open partition; its size is len(items).
type bag struct {
	items []types.PartitionItem
}

// Partition packs the item sets into partitions of at most maxItems items.
//
// The algorithm:
//  1. Stable-sort item sets descending by item count (ties keep input order)
//  2. For each set, scan open partitions in creation order and place the whole
//     set into the first one with enough remaining capacity
//  3. If none fits, split an oversized set into cap-sized batches (one new
//     partition each), otherwise open one new partition for the whole set
//
// Parameters:
//   - sets: Item sets, one per registration; empty sets are ignored
//   - maxItems: Per-partition item cap (non-positive means unbounded)
//
// Returns:
//   - []types.Partition: Ordered partitions, deterministic for identical input
func (b *BagPacked) Partition(sets []types.ItemSet, maxItems int) []types.Partition {
	limit := capacity(maxItems)

	ordered := make([]types.ItemSet, 0, len(sets))
	for _, s := range sets {
		if len(s.Items) > 0 {
			ordered = append(ordered, s)
		}
	}
	slices.SortStableFunc(ordered, func(a, b types.ItemSet) int {
		return len(b.Items) - len(a.Items)
	})

	var bags []*bag
	for _, set := range ordered {
		placed := false
		for _, bg := range bags {
			if len(bg.items)+len(set.Items) <= limit {
				bg.items = appendSet(bg.items, set.Owner, set.Items)
				placed = true

				break
			}
		}
		if placed {
			continue
		}

		for start := 0; start < len(set.Items); start += limit {
			end := min(start+limit, len(set.Items))
			bags = append(bags, &bag{items: appendSet(make([]types.PartitionItem, 0, end-start), set.Owner, set.Items[start:end])})
		}
	}

	partitions := make([]types.Partition, len(bags))
	for i, bg := range bags {
		partitions[i] = types.Partition{Items: bg.items}
	}

	return partitions
}

func appendSet(dst []types.PartitionItem, owner string, items []types.NamedItem) []types.PartitionItem {
	for _, it := range items {
		dst = append(dst, types.PartitionItem{Owner: owner, Name: it.Name, Options: it.Options})
	}

	return dst
}
