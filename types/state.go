package types

// ClientState represents the state of the subscription client's resync loop.
//
// The loop moves through these states:
//
//	Idle → Syncing → Idle
//	Idle → Syncing → SyncScheduled → Syncing → Idle (retry after a failed group)
//
// Closed is terminal.
type ClientState int32

const (
	// ClientStateIdle indicates no resync is pending.
	ClientStateIdle ClientState = iota

	// ClientStateSyncScheduled indicates a resync is due at a future instant.
	ClientStateSyncScheduled

	// ClientStateSyncing indicates a resync is in progress.
	ClientStateSyncing

	// ClientStateClosed indicates the client has been closed.
	ClientStateClosed
)

// String returns the string representation of the client state.
func (s ClientState) String() string {
	switch s {
	case ClientStateIdle:
		return "Idle"
	case ClientStateSyncScheduled:
		return "SyncScheduled"
	case ClientStateSyncing:
		return "Syncing"
	case ClientStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
