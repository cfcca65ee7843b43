// Package testing provides test utilities for the opcsub library.
//
// It follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - FakeSession / FakeSubscription: In-memory OPC UA session doubles with call
//     counters, scripted failures and notification injection
//   - StartEmbeddedNATS: Single NATS server with JetStream for sink tests
//   - CreateNotificationStream: Convenience wrapper for JetStream stream creation
//   - NewTestLogger: Logger mirroring records to t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    opctest "github.com/arloliu/opcsub/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    session := opctest.NewFakeSession()
//	    cfg := opcsub.TestConfig()
//	    client, err := opcsub.NewClient(&cfg, session)
//	    // ...
//	}
package testing
