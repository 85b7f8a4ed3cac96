package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentation/broker/internal/store"
)

func TestBus_PublishAssignsMonotonicSequence(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	bus, err := New(ctx, st)
	require.NoError(t, err)

	sess, _ := st.CreateSession(ctx, "https://example.com", "")

	first, err := bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: sess.ID, Timestamp: time.Now()})
	require.NoError(t, err)
	second, err := bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: sess.ID, Timestamp: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, first.Sequence+1, second.Sequence)
}

func TestBus_SubscribeSessionOnlyReceivesMatchingEvents(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	bus, err := New(ctx, st)
	require.NoError(t, err)

	sess, _ := st.CreateSession(ctx, "https://example.com", "")
	other, _ := st.CreateSession(ctx, "https://example.com/2", "")

	sub := bus.SubscribeSession(sess.ID)
	defer sub.Close()

	_, err = bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: other.ID, Timestamp: time.Now()})
	require.NoError(t, err)
	_, err = bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: sess.ID, Timestamp: time.Now()})
	require.NoError(t, err)

	select {
	case ev := <-sub.C:
		assert.Equal(t, sess.ID, ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("expected an event on the matching subscription")
	}

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestBus_DropsEventsWhenSubscriberBufferFull(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	bus, err := New(ctx, st)
	require.NoError(t, err)

	sess, _ := st.CreateSession(ctx, "https://example.com", "")
	sub := bus.SubscribeSession(sess.ID)
	defer sub.Close()

	for i := 0; i < subscriberCapacity+10; i++ {
		_, err := bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: sess.ID, Timestamp: time.Now()})
		require.NoError(t, err)
	}

	// Publication itself never blocks or errors even once the subscriber's
	// buffer is full; excess events are simply dropped for that subscriber.
	drained := 0
	for {
		select {
		case <-sub.C:
			drained++
		default:
			assert.LessOrEqual(t, drained, subscriberCapacity)
			return
		}
	}
}

func TestBus_ReplaySinceReturnsDurableHistory(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	bus, err := New(ctx, st)
	require.NoError(t, err)

	sess, _ := st.CreateSession(ctx, "https://example.com", "")
	first, err := bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: sess.ID, Timestamp: time.Now()})
	require.NoError(t, err)
	_, err = bus.Publish(ctx, store.Event{Type: store.EventSessionUpdated, SessionID: sess.ID, Timestamp: time.Now()})
	require.NoError(t, err)

	history, err := bus.ReplaySession(ctx, sess.ID, first.Sequence)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, store.EventSessionUpdated, history[0].Type)
}
