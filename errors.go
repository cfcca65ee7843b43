package opcsub

import "github.com/arloliu/opcsub/types"

// Sentinel errors returned by the Client, Subscriber and Reader.
//
// They are re-exported from the types package so callers can test with
// errors.Is without importing it.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrSubscriptionOptionsRequired is returned when a configuration source
	// carries no subscription options.
	ErrSubscriptionOptionsRequired = types.ErrSubscriptionOptionsRequired

	// ErrSessionRequired is returned when the session is nil.
	ErrSessionRequired = types.ErrSessionRequired

	// ErrSourceRequired is returned when the configuration source is nil.
	ErrSourceRequired = types.ErrSourceRequired

	// ErrQueueRequired is returned when the notification queue is nil.
	ErrQueueRequired = types.ErrQueueRequired

	// ErrQueueNotComparable is returned when a notification queue cannot be a map key.
	ErrQueueNotComparable = types.ErrQueueNotComparable

	// ErrAlreadyRegistered is returned when a queue is registered twice.
	ErrAlreadyRegistered = types.ErrAlreadyRegistered

	// ErrClientClosed is returned after Close.
	ErrClientClosed = types.ErrClientClosed

	// ErrReaderClosed is returned by a closed Reader.
	ErrReaderClosed = types.ErrReaderClosed

	// ErrNotConnected indicates the session is not connected.
	ErrNotConnected = types.ErrNotConnected
)
