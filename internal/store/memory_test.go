package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentation/broker/internal/apperr"
)

func epoch(nanos int64) time.Time { return time.Unix(0, nanos).UTC() }

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	sess, err := st.CreateSession(ctx, "https://example.com", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, SessionActive, sess.Status)

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	closed, err := st.CloseSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, SessionClosed, closed.Status)

	_, err = st.GetSession(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMemoryStore_AddAnnotationRequiresSession(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	_, err := st.AddAnnotation(ctx, "missing-session", AnnotationCreate{Comment: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMemoryStore_AnnotationLifecycleAndPending(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	sess, err := st.CreateSession(ctx, "https://example.com", "")
	require.NoError(t, err)

	ann, err := st.AddAnnotation(ctx, sess.ID, AnnotationCreate{Comment: "fix this", Intent: IntentFix})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, ann.Status)

	pending, err := st.GetPendingAnnotations(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	allPending, err := st.GetAllPendingAnnotations(ctx)
	require.NoError(t, err)
	assert.Len(t, allPending, 1)

	ack := StatusAcknowledged
	updated, err := st.UpdateAnnotation(ctx, ann.ID, AnnotationPatch{Status: &ack})
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, updated.Status)

	pending, err = st.GetPendingAnnotations(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	withThread, err := st.AddThreadMessage(ctx, ann.ID, RoleAgent, "looking into it")
	require.NoError(t, err)
	require.Len(t, withThread.Thread, 1)
	assert.Equal(t, "looking into it", withThread.Thread[0].Content)

	deleted, err := st.DeleteAnnotation(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, ann.ID, deleted.ID)

	_, err = st.GetAnnotation(ctx, ann.ID)
	require.Error(t, err)
}

func TestMemoryStore_DeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	sess, err := st.CreateSession(ctx, "https://example.com", "")
	require.NoError(t, err)
	ann, err := st.AddAnnotation(ctx, sess.ID, AnnotationCreate{Comment: "x"})
	require.NoError(t, err)

	_, err = st.DeleteSession(ctx, sess.ID)
	require.NoError(t, err)

	_, err = st.GetAnnotation(ctx, ann.ID)
	require.Error(t, err)
}

func TestMemoryStore_EventsOrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	sess, _ := st.CreateSession(ctx, "https://example.com", "")
	other, _ := st.CreateSession(ctx, "https://example.com/2", "")

	for i, sid := range []string{sess.ID, other.ID, sess.ID} {
		_, err := st.AppendEvent(ctx, Event{Type: EventAnnotationCreated, SessionID: sid, Sequence: int64(i + 1)})
		require.NoError(t, err)
	}

	evs, err := st.GetEventsSince(ctx, sess.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, int64(1), evs[0].Sequence)
	assert.Equal(t, int64(3), evs[1].Sequence)

	all, err := st.GetEventsSinceGlobal(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryStore_DeleteEventsOlderThan(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	sess, _ := st.CreateSession(ctx, "https://example.com", "")

	_, err := st.AppendEvent(ctx, Event{Type: EventAnnotationCreated, SessionID: sess.ID, Sequence: 1, Timestamp: epoch(1000)})
	require.NoError(t, err)
	_, err = st.AppendEvent(ctx, Event{Type: EventAnnotationCreated, SessionID: sess.ID, Sequence: 2, Timestamp: epoch(5000)})
	require.NoError(t, err)

	removed, err := st.DeleteEventsOlderThan(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	evs, err := st.GetEventsSinceGlobal(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(2), evs[0].Sequence)
}
