package virtual

import (
	"slices"
	"sync"

	"github.com/arloliu/opcsub/internal/hash"
	"github.com/arloliu/opcsub/types"
)

// Registration is one consumer's registration: a live configuration source and
// the destination queue of its notifications.
//
// A registration is dirty from creation until a sync applies its configuration.
// Every configuration change with a new content fingerprint bumps its version
// and makes it dirty again; a sync only clears the version it actually applied.
type Registration struct {
	id    string
	seq   uint64
	queue types.NotificationQueue

	mu          sync.Mutex
	cfg         types.SubscriptionConfig
	fingerprint hash.Fingerprint
	version     uint64
	synced      uint64
	unsubscribe func()
}

// Snapshot is an immutable view of a registration taken at the start of a sync.
type Snapshot struct {
	Registration *Registration

	// Options is the grouping key; nil when the current configuration has none.
	Options *types.SubscriptionOptions

	// Items are the registration's named items sorted by name.
	Items types.ItemSet

	// Version is the registration version the snapshot reflects.
	Version uint64
}

// NewRegistration creates a registration and subscribes to source changes.
//
// Parameters:
//   - id: Unique registration id
//   - seq: Creation sequence, used to order registrations deterministically
//   - source: Live configuration source
//   - queue: Notification destination
//   - onChange: Called after every change that makes the registration dirty
//
// Returns:
//   - *Registration: Dirty registration
//   - error: types.ErrSubscriptionOptionsRequired when the current configuration has no options
func NewRegistration(id string, seq uint64, source types.ConfigSource, queue types.NotificationQueue, onChange func()) (*Registration, error) {
	cfg := source.Current()
	if cfg.Options == nil {
		return nil, types.ErrSubscriptionOptionsRequired
	}

	r := &Registration{
		id:          id,
		seq:         seq,
		queue:       queue,
		cfg:         cfg,
		fingerprint: hash.Config(cfg),
		version:     1,
	}

	r.unsubscribe = source.OnChange(func(next types.SubscriptionConfig) {
		if r.update(next) && onChange != nil {
			onChange()
		}
	})

	return r, nil
}

// ID returns the registration id.
func (r *Registration) ID() string {
	return r.id
}

// Seq returns the creation sequence.
func (r *Registration) Seq() uint64 {
	return r.seq
}

// Queue returns the notification destination.
func (r *Registration) Queue() types.NotificationQueue {
	return r.queue
}

// Dirty reports whether the current configuration has not been applied yet.
func (r *Registration) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.version != r.synced
}

// Snapshot captures the current configuration.
func (r *Registration) Snapshot() Snapshot {
	r.mu.Lock()
	cfg := r.cfg
	version := r.version
	r.mu.Unlock()

	names := make([]string, 0, len(cfg.Items))
	for name := range cfg.Items {
		names = append(names, name)
	}
	slices.Sort(names)

	items := make([]types.NamedItem, len(names))
	for i, name := range names {
		items[i] = types.NamedItem{Name: name, Options: cfg.Items[name]}
	}

	var opts *types.SubscriptionOptions
	if cfg.Options != nil {
		o := *cfg.Options
		opts = &o
	}

	return Snapshot{
		Registration: r,
		Options:      opts,
		Items:        types.ItemSet{Owner: r.id, Items: items},
		Version:      version,
	}
}

// MarkSynced records that version has been applied.
//
// The registration stays dirty when its configuration changed after the
// snapshot that produced version.
func (r *Registration) MarkSynced(version uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version > r.synced {
		r.synced = version
	}
}

// Close stops observing the configuration source. It is idempotent.
func (r *Registration) Close() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// update applies a new configuration; it reports whether the content changed.
func (r *Registration) update(cfg types.SubscriptionConfig) bool {
	fp := hash.Config(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if fp == r.fingerprint {
		return false
	}
	r.cfg = cfg
	r.fingerprint = fp
	r.version++

	return true
}
