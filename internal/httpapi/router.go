// Package httpapi is the loopback HTTP surface: a REST interface over
// sessions and annotations plus two server-sent-event streams, routed with
// gorilla/mux in the style of the teacher pack's pkg/api/handlers package.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentation/broker/internal/eventbus"
	"github.com/agentation/broker/internal/store"
)

// Server holds the dependencies every handler needs.
type Server struct {
	store store.Store
	bus   *eventbus.Bus
}

// NewRouter builds the full mux.Router, wiring in the optional bearer-auth
// and CORS middleware.
func NewRouter(st store.Store, bus *eventbus.Bus, apiKey string, rateLimitRPS float64) http.Handler {
	s := &Server{store: st, bus: bus}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods(http.MethodPatch)
	r.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/events", s.handleSessionEvents).Methods(http.MethodGet)

	r.HandleFunc("/sessions/{id}/annotations", s.handleCreateAnnotation).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/annotations", s.handleListAnnotations).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/pending", s.handlePendingAnnotations).Methods(http.MethodGet)

	r.HandleFunc("/pending", s.handleAllPendingAnnotations).Methods(http.MethodGet)
	r.HandleFunc("/annotations/{id}", s.handleGetAnnotation).Methods(http.MethodGet)
	r.HandleFunc("/annotations/{id}", s.handleUpdateAnnotation).Methods(http.MethodPatch)
	r.HandleFunc("/annotations/{id}", s.handleDeleteAnnotation).Methods(http.MethodDelete)
	r.HandleFunc("/annotations/{id}/thread", s.handleAddThreadMessage).Methods(http.MethodPost)

	r.HandleFunc("/events", s.handleAllEvents).Methods(http.MethodGet)

	var handler http.Handler = r
	handler = withAuth(apiKey, rateLimitRPS, handler)
	handler = withCORS(handler)
	return handler
}
