package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentation/broker/internal/eventbus"
	"github.com/agentation/broker/internal/store"
)

func newTestServer(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st := store.NewMemory()
	bus, err := eventbus.New(context.Background(), st)
	require.NoError(t, err)
	return NewRouter(st, bus, "", 0), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionAndAnnotationFlow(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/sessions", map[string]string{"url": "https://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, store.SessionActive, sess.Status)

	rec = doJSON(t, h, http.MethodPost, "/sessions/"+sess.ID+"/annotations", map[string]string{
		"comment": "button is misaligned",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "element and elementPath are required")

	rec = doJSON(t, h, http.MethodPost, "/sessions/"+sess.ID+"/annotations", map[string]string{
		"comment":     "button is misaligned",
		"element":     "button.submit",
		"elementPath": "body>button.submit",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ann store.Annotation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ann))
	assert.Equal(t, store.StatusPending, ann.Status)

	rec = doJSON(t, h, http.MethodGet, "/sessions/"+sess.ID+"/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pendingResp struct {
		Count       int                `json:"count"`
		Annotations []store.Annotation `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pendingResp))
	assert.Len(t, pendingResp.Annotations, 1)
	assert.Equal(t, 1, pendingResp.Count)

	rec = doJSON(t, h, http.MethodPatch, "/annotations/"+ann.ID, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "pending cannot jump straight to resolved")

	rec = doJSON(t, h, http.MethodPatch, "/annotations/"+ann.ID, map[string]string{"status": "acknowledged"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/annotations/"+ann.ID+"/thread", map[string]string{
		"role": "agent", "content": "looking into it now",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var withThread store.Annotation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &withThread))
	require.Len(t, withThread.Thread, 1)
}

func TestHandleListSessions_ReturnsBareArray(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/sessions", map[string]string{"url": "https://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
}

func TestHandleAllEvents_RequiresDomain(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS_AlwaysPermissiveEvenWithoutOriginHeader(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleGetAnnotation_NotFound(t *testing.T) {
	h, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/annotations/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_RequiresBearerWhenAPIKeySet(t *testing.T) {
	st := store.NewMemory()
	bus, err := eventbus.New(context.Background(), st)
	require.NoError(t, err)
	h := NewRouter(st, bus, "secret", 0)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
