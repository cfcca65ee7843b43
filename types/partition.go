package types

// ItemSet is the contribution of one registration to a partitioning run.
type ItemSet struct {
	// Owner identifies the registration (stable for its lifetime).
	Owner string

	// Items are the registration's named monitored items, in a deterministic order.
	Items []NamedItem
}

// NamedItem is a monitored item addressed by the owner's item name.
type NamedItem struct {
	Name    string
	Options MonitoredItemOptions
}

// PartitionItem is one (owner, name, options) triple placed in a partition.
type PartitionItem struct {
	Owner   string
	Name    string
	Options MonitoredItemOptions
}

// Partition is a capacity-bounded group of items mapped to one physical subscription.
type Partition struct {
	Items []PartitionItem
}

// Len returns the number of items in the partition.
func (p Partition) Len() int {
	return len(p.Items)
}

// Owners returns the distinct owners in the partition, in first-appearance order.
func (p Partition) Owners() []string {
	seen := make(map[string]struct{}, 4)
	owners := make([]string, 0, 4)
	for _, it := range p.Items {
		if _, ok := seen[it.Owner]; ok {
			continue
		}
		seen[it.Owner] = struct{}{}
		owners = append(owners, it.Owner)
	}

	return owners
}
