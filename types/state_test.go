package types

import "testing"

func TestClientStateString(t *testing.T) {
	tests := []struct {
		state ClientState
		want  string
	}{
		{ClientStateIdle, "Idle"},
		{ClientStateSyncScheduled, "SyncScheduled"},
		{ClientStateSyncing, "Syncing"},
		{ClientStateClosed, "Closed"},
		{ClientState(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("ClientState.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
