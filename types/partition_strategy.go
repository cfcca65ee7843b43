package types

// PartitionStrategy splits registrations' monitored items into partitions, one per
// physical subscription.
//
// Strategies implement different packing algorithms:
//   - BagPacked: Largest-first, first-fit, keeps a registration's items together
//   - RoundRobin: Even spread across the minimum number of partitions
//   - Custom: User-defined algorithms
//
// Strategy implementations should:
//   - Be deterministic (same input → same output); output order maps to
//     physical subscription indices
//   - Never lose or duplicate an item
//   - Never produce an empty partition or one larger than maxItems
//   - Be stateless (no side effects)
type PartitionStrategy interface {
	// Partition packs the item sets into partitions of at most maxItems items.
	//
	// Parameters:
	//   - sets: Item sets, one per registration
	//   - maxItems: Per-partition item cap (> 0)
	//
	// Returns:
	//   - []Partition: Ordered partitions (empty when there are no items)
	Partition(sets []ItemSet, maxItems int) []Partition
}
