package sampling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	opctest "github.com/arloliu/opcsub/testing"
	"github.com/arloliu/opcsub/types"
)

// funcQueue is a queue type that cannot be used as a map key.
type funcQueue func(ctx context.Context, n types.Notification) error

func (f funcQueue) Queue(ctx context.Context, n types.Notification) error {
	return f(ctx, n)
}

func newClient(t *testing.T, session *opctest.FakeSession, cfg Config) *Client {
	t.Helper()

	c, err := New(session, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(t.Context()) })

	return c
}

func TestNew(t *testing.T) {
	_, err := New(nil, Config{})
	require.ErrorIs(t, err, types.ErrSessionRequired)

	_, err = New(opctest.NewFakeSession(), Config{ReadTimeoutRatio: 2})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	c, err := New(opctest.NewFakeSession(), Config{})
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), c.cfg)
}

func TestClient_Register(t *testing.T) {
	t.Run("validates arguments", func(t *testing.T) {
		c := newClient(t, opctest.NewFakeSession(), Config{})

		_, err := c.Register("a", types.ReadItem{NodeID: "i=1"}, time.Second, 0, nil)
		require.ErrorIs(t, err, types.ErrQueueRequired)

		_, err = c.Register("a", types.ReadItem{}, time.Second, 0, opctest.NewRecordingQueue())
		require.ErrorIs(t, err, types.ErrInvalidConfig)

		_, err = c.Register("a", types.ReadItem{NodeID: "i=1"}, time.Second, 0, funcQueue(nil))
		require.ErrorIs(t, err, types.ErrQueueNotComparable)
	})

	t.Run("clamps rate and max age into shared samplers", func(t *testing.T) {
		c := newClient(t, opctest.NewFakeSession(), Config{})
		q := opctest.NewRecordingQueue()

		r1, err := c.Register("a", types.ReadItem{NodeID: "ns=2;s=A"}, 100*time.Millisecond, -time.Second, q)
		require.NoError(t, err)
		r2, err := c.Register("b", types.ReadItem{NodeID: "ns=2;s=B"}, time.Second, 0, q)
		require.NoError(t, err)

		require.Equal(t, 1, c.SamplerCount())
		require.Same(t, r1.sampler, r2.sampler)
		require.Equal(t, time.Second, r1.sampler.Rate())
		require.Zero(t, r1.sampler.MaxAge())
		require.Equal(t, 2, r1.sampler.Len())

		r3, err := c.Register("c", types.ReadItem{NodeID: "ns=2;s=C"}, time.Second, 5*time.Second, q)
		require.NoError(t, err)
		require.Equal(t, 2, c.SamplerCount())
		require.NotSame(t, r1.sampler, r3.sampler)
	})

	t.Run("last registration disposes the sampler", func(t *testing.T) {
		c := newClient(t, opctest.NewFakeSession(), Config{})
		q := opctest.NewRecordingQueue()

		r1, err := c.Register("a", types.ReadItem{NodeID: "ns=2;s=A"}, time.Second, 0, q)
		require.NoError(t, err)
		r2, err := c.Register("b", types.ReadItem{NodeID: "ns=2;s=B"}, time.Second, 0, q)
		require.NoError(t, err)

		require.NoError(t, r1.Close())
		require.NoError(t, r1.Close())
		require.Equal(t, 1, c.SamplerCount())

		require.NoError(t, r2.Close())
		require.Zero(t, c.SamplerCount())

		select {
		case <-r2.sampler.done:
		case <-time.After(time.Second):
			t.Fatal("sampler loop did not exit")
		}
	})

	t.Run("register after close fails", func(t *testing.T) {
		c, err := New(opctest.NewFakeSession(), Config{})
		require.NoError(t, err)
		require.NoError(t, c.Close(t.Context()))
		require.NoError(t, c.Close(t.Context()))

		_, err = c.Register("a", types.ReadItem{NodeID: "i=1"}, time.Second, 0, opctest.NewRecordingQueue())
		require.ErrorIs(t, err, types.ErrClientClosed)
	})
}

func TestClient_PeriodicDelivery(t *testing.T) {
	session := opctest.NewFakeSession()
	c := newClient(t, session, Config{MinSamplingRate: 10 * time.Millisecond})
	q := opctest.NewRecordingQueue()

	_, err := c.Register("a", types.ReadItem{NodeID: "ns=2;s=A"}, 20*time.Millisecond, 0, q)
	require.NoError(t, err)

	require.True(t, q.WaitFor(3, 2*time.Second))

	var last uint32
	for _, n := range q.Notifications() {
		require.Equal(t, types.KindPeriodicData, n.Kind)
		require.Greater(t, n.SequenceNumber, last)
		last = n.SequenceNumber
	}
}
