// Package hash computes stable content fingerprints of subscription configuration.
//
// Fingerprints drive dirty detection: a configuration update whose fingerprint
// equals the previous one does not trigger a re-sync, and monitored items whose
// fingerprint is unchanged are left in place on the server.
package hash

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/arloliu/opcsub/types"
)

// Fingerprint is a 64-bit xxh3 content hash.
type Fingerprint uint64

// Item returns the fingerprint of one monitored item's options.
func Item(opts types.MonitoredItemOptions) Fingerprint {
	h := xxh3.New()
	writeItem(h, opts)

	return Fingerprint(h.Sum64())
}

// Config returns the fingerprint of a whole subscription configuration.
//
// Item order is normalized by name, so two configurations with the same
// content always produce the same fingerprint.
func Config(cfg types.SubscriptionConfig) Fingerprint {
	h := xxh3.New()

	if cfg.Options == nil {
		writeUint(h, 0)
	} else {
		o := cfg.Options
		writeUint(h, 1)
		writeUint(h, uint64(o.PublishingInterval))
		writeUint(h, uint64(o.KeepAliveCount))
		writeUint(h, uint64(o.LifetimeCount))
		writeUint(h, uint64(o.MaxNotificationsPerPublish))
		writeUint(h, uint64(o.Priority))
	}

	names := make([]string, 0, len(cfg.Items))
	for name := range cfg.Items {
		names = append(names, name)
	}
	slices.Sort(names)

	writeUint(h, uint64(len(names)))
	for _, name := range names {
		writeString(h, name)
		writeItem(h, cfg.Items[name])
	}

	return Fingerprint(h.Sum64())
}

func writeItem(h *xxh3.Hasher, opts types.MonitoredItemOptions) {
	writeString(h, opts.NodeID)
	writeUint(h, uint64(opts.Attribute()))
	writeUint(h, uint64(opts.SamplingInterval))
	writeUint(h, uint64(opts.QueueSize))
	if opts.DiscardOldest {
		writeUint(h, 1)
	} else {
		writeUint(h, 0)
	}

	if f := opts.DataChangeFilter; f != nil {
		writeUint(h, 1)
		writeUint(h, uint64(f.Trigger))
		writeUint(h, uint64(f.DeadbandType))
		writeUint(h, math.Float64bits(f.DeadbandValue))
	} else {
		writeUint(h, 0)
	}

	writeUint(h, uint64(len(opts.EventFields)))
	for _, f := range opts.EventFields {
		writeString(h, f)
	}
}

// Strings are length-prefixed so adjacent fields cannot alias.
func writeString(h *xxh3.Hasher, s string) {
	writeUint(h, uint64(len(s)))
	_, _ = h.WriteString(s)
}

func writeUint(h *xxh3.Hasher, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}
