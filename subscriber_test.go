package opcsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/opcsub/source"
	opctest "github.com/arloliu/opcsub/testing"
)

func TestSubscriber_Subscribe(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)
	sub := NewSubscriber(tc.Client)

	reader, err := sub.Subscribe(t.Context(), source.NewStatic(itemsConfig(testOptions, "a", 2)))
	require.NoError(t, err)
	require.NotEmpty(t, reader.ID())
	require.Equal(t, 1, sub.ReaderCount())
	require.Equal(t, 1, tc.nextSummary(t).Added)

	phys := session.Subscriptions()[0]
	phys.PublishValues(t.Context(), map[string]any{"ns=2;s=a00": 1})
	phys.PublishValues(t.Context(), map[string]any{"ns=2;s=a01": 2})
	require.Equal(t, 2, reader.Pending())

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()

	first, err := reader.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "a00", first.Items[0].Name)

	second, err := reader.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "a01", second.Items[0].Name)
	require.Greater(t, second.SequenceNumber, first.SequenceNumber)
}

func TestSubscriber_CancelledContext(t *testing.T) {
	tc := newTestClient(t, opctest.NewFakeSession(), nil)
	sub := NewSubscriber(tc.Client)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := sub.Subscribe(ctx, source.NewStatic(itemsConfig(testOptions, "a", 1)))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, sub.ReaderCount())
}

func TestSubscriber_RegisterErrorsPropagate(t *testing.T) {
	tc := newTestClient(t, opctest.NewFakeSession(), nil)
	sub := NewSubscriber(tc.Client)

	_, err := sub.Subscribe(t.Context(), nil)
	require.ErrorIs(t, err, ErrSourceRequired)

	_, err = sub.Subscribe(t.Context(), source.NewStatic(SubscriptionConfig{}))
	require.ErrorIs(t, err, ErrSubscriptionOptionsRequired)
	require.Zero(t, sub.ReaderCount())
}

func TestReader_All(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)
	sub := NewSubscriber(tc.Client)

	reader, err := sub.Subscribe(t.Context(), source.NewStatic(itemsConfig(testOptions, "a", 1)))
	require.NoError(t, err)
	tc.nextSummary(t)

	phys := session.Subscriptions()[0]
	for i := range 3 {
		phys.PublishValues(t.Context(), map[string]any{"ns=2;s=a00": i})
	}

	var got []any
	for n := range reader.All(t.Context()) {
		got = append(got, n.Items[0].Value.Value)
		if len(got) == 3 {
			break
		}
	}
	require.Equal(t, []any{0, 1, 2}, got)
}

func TestReader_AllEndsOnContext(t *testing.T) {
	tc := newTestClient(t, opctest.NewFakeSession(), nil)
	sub := NewSubscriber(tc.Client)

	reader, err := sub.Subscribe(t.Context(), source.NewStatic(itemsConfig(testOptions, "a", 1)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	count := 0
	for range reader.All(ctx) {
		count++
	}
	require.Zero(t, count)
}

func TestReader_Close(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)
	sub := NewSubscriber(tc.Client)

	reader, err := sub.Subscribe(t.Context(), source.NewStatic(itemsConfig(testOptions, "a", 1)))
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)

	waiting := make(chan error, 1)
	go func() {
		_, err := reader.Next(context.Background())
		waiting <- err
	}()

	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())

	select {
	case err := <-waiting:
		require.ErrorIs(t, err, ErrReaderClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after Close")
	}

	require.Zero(t, sub.ReaderCount())
	require.Equal(t, 1, tc.nextSummary(t).Removed)
	require.Zero(t, tc.RegistrationCount())
}

func TestReader_ClientClosed(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)
	sub := NewSubscriber(tc.Client)

	reader, err := sub.Subscribe(t.Context(), source.NewStatic(itemsConfig(testOptions, "a", 1)))
	require.NoError(t, err)

	waiting := make(chan error, 1)
	go func() {
		_, err := reader.Next(context.Background())
		waiting <- err
	}()

	require.NoError(t, tc.Close(t.Context()))

	select {
	case err := <-waiting:
		require.ErrorIs(t, err, ErrClientClosed)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after the client closed")
	}

	require.NoError(t, reader.Close(), "closing a reader after its client is a no-op")
	require.NoError(t, sub.Close())

	_, err = sub.Subscribe(t.Context(), source.NewStatic(itemsConfig(testOptions, "b", 1)))
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestSubscriber_Close(t *testing.T) {
	tc := newTestClient(t, opctest.NewFakeSession(), nil)
	sub := NewSubscriber(tc.Client)

	for _, prefix := range []string{"a", "b", "c"} {
		_, err := sub.Subscribe(t.Context(), source.NewStatic(itemsConfig(testOptions, prefix, 1)))
		require.NoError(t, err)
	}
	require.Equal(t, 3, sub.ReaderCount())
	require.Equal(t, 3, tc.RegistrationCount())

	require.NoError(t, sub.Close())
	require.Zero(t, sub.ReaderCount())
	require.Zero(t, tc.RegistrationCount())
}
