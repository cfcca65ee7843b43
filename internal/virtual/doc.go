// Package virtual implements virtual subscriptions: groups of registrations that
// share one subscription configuration, transparently backed by as many physical
// subscriptions as the server's per-subscription monitored item limit requires.
//
// A Subscription re-partitions its registrations' monitored items on every Sync and
// routes inbound notifications from its physical subscriptions to the queue of the
// registration that owns each monitored item.
package virtual
