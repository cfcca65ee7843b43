package sink

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/opcsub/types"
	opctest "github.com/arloliu/opcsub/testing"
)

func testNotification(kind types.NotificationKind, seq uint32) types.Notification {
	return types.Notification{
		Kind:             kind,
		SubscriptionName: "line-1",
		SequenceNumber:   seq,
		PublishTime:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Items: []types.ItemNotification{{
			Name:   "temperature",
			NodeID: "ns=2;s=Temperature",
			Value:  types.DataValue{Value: 21.5, Status: types.StatusGood},
		}},
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := NewNATS(nil, Config{})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewJetStream(nil, Config{})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	for _, prefix := range []string{".plant", "plant.", "plant.*", "plant.>", "my plant"} {
		_, err = newSink(Config{Prefix: prefix}, nil)
		require.ErrorIs(t, err, types.ErrInvalidConfig, prefix)
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := Config{MaxRetries: -1}
	SetDefaults(&cfg)

	assert.Equal(t, "opcua.notifications", cfg.Prefix)
	assert.IsType(t, &CBORCodec{}, cfg.Codec)
	assert.Zero(t, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoffMax)
	assert.InDelta(t, 2.0, cfg.RetryMultiplier, 0)
}

func TestSink_Subject(t *testing.T) {
	s, err := newSink(Config{Prefix: "plant.opcua"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "plant.opcua.datachanges", s.Subject(types.Notification{Kind: types.KindDataChanges}))
	assert.Equal(t, "plant.opcua.event", s.Subject(types.Notification{Kind: types.KindEvent}))
	assert.Equal(t, "plant.opcua.keepalive", s.Subject(types.Notification{Kind: types.KindKeepAlive}))
	assert.Equal(t, "plant.opcua.periodicdata", s.Subject(types.Notification{Kind: types.KindPeriodicData}))
}

func TestSink_NATS(t *testing.T) {
	_, nc := opctest.StartEmbeddedNATS(t)

	sub, err := nc.SubscribeSync("plant.opcua.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	s, err := NewNATS(nc, Config{Prefix: "plant.opcua"})
	require.NoError(t, err)

	require.NoError(t, s.Queue(t.Context(), testNotification(types.KindDataChanges, 7)))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "plant.opcua.datachanges", msg.Subject)
	assert.Equal(t, "application/cbor", msg.Header.Get(HeaderContentType))
	assert.Equal(t, "line-1", msg.Header.Get(HeaderSubscription))
	assert.Equal(t, "7", msg.Header.Get(HeaderSequence))

	var got types.Notification
	require.NoError(t, s.cfg.Codec.Decode(msg.Data, &got))
	assert.Equal(t, types.KindDataChanges, got.Kind)
	assert.Equal(t, uint32(7), got.SequenceNumber)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "temperature", got.Items[0].Name)
	assert.InDelta(t, 21.5, got.Items[0].Value.Value, 0)
	assert.True(t, got.PublishTime.Equal(testNotification(types.KindDataChanges, 7).PublishTime))

	assert.Equal(t, uint64(1), s.Published())
}

func TestSink_JetStream(t *testing.T) {
	_, nc := opctest.StartEmbeddedNATS(t)
	js, stream := opctest.CreateNotificationStream(t, nc, "NOTIFICATIONS", "plant.opcua.>")

	s, err := NewJetStream(js, Config{Prefix: "plant.opcua", Codec: NewJSONCodec()})
	require.NoError(t, err)

	for seq := uint32(1); seq <= 3; seq++ {
		require.NoError(t, s.Queue(t.Context(), testNotification(types.KindEvent, seq)))
	}

	info, err := stream.Info(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.State.Msgs)

	raw, err := stream.GetLastMsgForSubject(t.Context(), "plant.opcua.event")
	require.NoError(t, err)
	assert.Equal(t, "application/json", raw.Header.Get(HeaderContentType))

	var got types.Notification
	require.NoError(t, NewJSONCodec().Decode(raw.Data, &got))
	assert.Equal(t, uint32(3), got.SequenceNumber)
}

func TestSink_JetStreamWithoutStream(t *testing.T) {
	_, nc := opctest.StartEmbeddedNATS(t)
	js, _ := opctest.CreateNotificationStream(t, nc, "OTHER", "other.>")

	s, err := NewJetStream(js, Config{
		Prefix:       "plant.opcua",
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)

	err = s.Queue(t.Context(), testNotification(types.KindEvent, 1))
	require.Error(t, err)
	assert.Equal(t, uint64(1), s.Failed())
}

func TestSink_Retry(t *testing.T) {
	transient := nats.ErrTimeout

	newFlaky := func(t *testing.T, failures int, failWith error, maxRetries int) (*Sink, *atomic.Int32) {
		t.Helper()

		var calls atomic.Int32
		s, err := newSink(Config{
			MaxRetries:      maxRetries,
			RetryBackoff:    time.Millisecond,
			RetryBackoffMax: 5 * time.Millisecond,
			RetrySeed:       1,
		}, func(context.Context, *nats.Msg) error {
			if int(calls.Add(1)) <= failures {
				return failWith
			}

			return nil
		})
		require.NoError(t, err)

		return s, &calls
	}

	t.Run("transient failures are retried", func(t *testing.T) {
		s, calls := newFlaky(t, 2, transient, 3)

		require.NoError(t, s.Queue(t.Context(), testNotification(types.KindEvent, 1)))
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, uint64(1), s.Published())
	})

	t.Run("retries are bounded", func(t *testing.T) {
		s, calls := newFlaky(t, 10, transient, 2)

		err := s.Queue(t.Context(), testNotification(types.KindEvent, 1))
		require.ErrorIs(t, err, transient)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, uint64(1), s.Failed())
	})

	t.Run("permanent failures are not retried", func(t *testing.T) {
		s, calls := newFlaky(t, 10, nats.ErrConnectionClosed, 3)

		err := s.Queue(t.Context(), testNotification(types.KindEvent, 1))
		require.ErrorIs(t, err, nats.ErrConnectionClosed)
		assert.Equal(t, uint64(1), s.Failed())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("cancellation stops retrying", func(t *testing.T) {
		s, err := newSink(Config{
			MaxRetries:      5,
			RetryBackoff:    time.Second,
			RetryBackoffMax: time.Second,
		}, func(context.Context, *nats.Msg) error {
			return transient
		})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		err = s.Queue(ctx, testNotification(types.KindEvent, 1))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSink_Close(t *testing.T) {
	var calls atomic.Int32
	s, err := newSink(Config{}, func(context.Context, *nats.Msg) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Queue(t.Context(), testNotification(types.KindEvent, 1)), ErrClosed)
	assert.Zero(t, calls.Load())
}
