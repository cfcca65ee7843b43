package natsutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", nats.ErrTimeout, true},
		{"wrapped disconnect", fmt.Errorf("publish: %w", nats.ErrDisconnected), true},
		{"no stream", jetstream.ErrNoStreamResponse, true},
		{"deadline", context.DeadlineExceeded, true},
		{"refused", errors.New("dial tcp 127.0.0.1:4222: connection refused"), true},
		{"closed", nats.ErrConnectionClosed, false},
		{"bad subject", nats.ErrBadSubject, false},
		{"payload", nats.ErrMaxPayload, false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
