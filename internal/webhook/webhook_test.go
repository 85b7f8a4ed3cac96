package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentation/broker/internal/eventbus"
	"github.com/agentation/broker/internal/store"
)

func TestRelay_DeliversPublishedEventBody(t *testing.T) {
	received := make(chan store.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev store.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemory()
	bus, err := eventbus.New(ctx, st)
	require.NoError(t, err)

	go Relay(ctx, bus, []string{srv.URL})
	// Relay subscribes from its own goroutine; give it time to do so, since
	// the bus does not deliver events published before a subscription.
	time.Sleep(100 * time.Millisecond)

	sess, err := st.CreateSession(ctx, "https://example.com", "")
	require.NoError(t, err)
	_, err = bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: sess.ID, Timestamp: time.Now()})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, sess.ID, ev.SessionID)
		assert.Equal(t, store.EventSessionCreated, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook endpoint never received the event")
	}
}

func TestRelay_RetriesTransientFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemory()
	bus, err := eventbus.New(ctx, st)
	require.NoError(t, err)

	go Relay(ctx, bus, []string{srv.URL})
	// Let Relay subscribe before publishing (see TestRelay_DeliversPublishedEventBody).
	time.Sleep(100 * time.Millisecond)

	sess, err := st.CreateSession(ctx, "https://example.com", "")
	require.NoError(t, err)
	_, err = bus.Publish(ctx, store.Event{Type: store.EventSessionCreated, SessionID: sess.ID, Timestamp: time.Now()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 2
	}, 3*time.Second, 50*time.Millisecond, "expected a retried delivery to eventually succeed")
}

func TestDeliverOnce_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := deliverOnce(context.Background(), &http.Client{Timeout: time.Second}, srv.URL, []byte(`{}`))
	assert.Error(t, err)
}

func TestDeliverOnce_SuccessStatusIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := deliverOnce(context.Background(), &http.Client{Timeout: time.Second}, srv.URL, []byte(`{}`))
	assert.NoError(t, err)
}
