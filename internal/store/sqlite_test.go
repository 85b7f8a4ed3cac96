package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker-test.db")
	st, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStore_SessionAndAnnotationLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openTestSQLite(t)

	sess, err := st.CreateSession(ctx, "https://example.com", "proj-1")
	require.NoError(t, err)
	assert.Equal(t, SessionActive, sess.Status)

	ann, err := st.AddAnnotation(ctx, sess.ID, AnnotationCreate{Comment: "fix this", Intent: IntentFix})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, ann.Status)

	pending, err := st.GetPendingAnnotations(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	ack := StatusAcknowledged
	updated, err := st.UpdateAnnotation(ctx, ann.ID, AnnotationPatch{Status: &ack})
	require.NoError(t, err)
	assert.Equal(t, StatusAcknowledged, updated.Status)

	withThread, err := st.AddThreadMessage(ctx, ann.ID, RoleAgent, "looking into it")
	require.NoError(t, err)
	require.Len(t, withThread.Thread, 1)

	detail, err := st.GetSessionWithAnnotations(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, detail.Annotations, 1)
	assert.Equal(t, StatusAcknowledged, detail.Annotations[0].Status)
}

func TestSQLiteStore_IllegalTransitionRejected(t *testing.T) {
	ctx := context.Background()
	st := openTestSQLite(t)

	sess, err := st.CreateSession(ctx, "https://example.com", "")
	require.NoError(t, err)
	ann, err := st.AddAnnotation(ctx, sess.ID, AnnotationCreate{Comment: "x"})
	require.NoError(t, err)

	resolved := StatusResolved
	_, err = st.UpdateAnnotation(ctx, ann.ID, AnnotationPatch{Status: &resolved})
	require.Error(t, err, "pending cannot jump straight to resolved")
}

func TestSQLiteStore_DeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	st := openTestSQLite(t)

	sess, err := st.CreateSession(ctx, "https://example.com", "")
	require.NoError(t, err)
	ann, err := st.AddAnnotation(ctx, sess.ID, AnnotationCreate{Comment: "x"})
	require.NoError(t, err)

	_, err = st.DeleteSession(ctx, sess.ID)
	require.NoError(t, err)

	_, err = st.GetAnnotation(ctx, ann.ID)
	require.Error(t, err)
}

func TestSQLiteStore_EventsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "broker-reopen.db")

	st, err := OpenSQLite(path)
	require.NoError(t, err)

	sess, err := st.CreateSession(ctx, "https://example.com", "")
	require.NoError(t, err)
	_, err = st.AppendEvent(ctx, Event{Type: EventSessionCreated, SessionID: sess.ID, Sequence: 1})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	evs, err := reopened.GetEventsSinceGlobal(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(1), evs[0].Sequence)
}

func TestSQLiteStore_DeleteEventsOlderThan(t *testing.T) {
	ctx := context.Background()
	st := openTestSQLite(t)
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
