// Package sink publishes notifications to NATS.
//
// A Sink implements types.NotificationQueue, so it can be registered directly with
// the subscription client or the sampling client. Each notification is encoded with
// the configured Codec (CBOR by default) and published on
//
//	<Prefix>.<kind>
//
// where kind is the lower-cased notification kind ("datachanges", "event",
// "keepalive" or "periodicdata").
//
// Two transports are available:
//   - NewNATS publishes with core NATS (fire and forget)
//   - NewJetStream publishes to a stream and waits for the acknowledgement
//
// Transient publish failures are retried with decorrelated jitter backoff.
//
// Example:
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	s, err := sink.NewNATS(nc, sink.Config{Prefix: "plant.opcua"})
//	if err != nil {
//	    return err
//	}
//	reg, err := client.Register(src, s)
package sink
