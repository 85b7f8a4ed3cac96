package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/agentation/broker/internal/apperr"
	"github.com/agentation/broker/internal/logger"
	"github.com/agentation/broker/internal/store"
)

const ssePing = 30 * time.Second

// eventFilter reports whether an event should be delivered to a given
// subscriber. A nil filter delivers everything.
type eventFilter func(ev store.Event) bool

// handleSessionEvents streams every event for one session as
// server-sent-events, replaying durable history since Last-Event-ID before
// switching to the live feed.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if _, err := s.store.GetSession(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}
	prepareSSE(w, flusher)

	last := lastEventID(r)
	sub := s.bus.SubscribeSession(sessionID)
	defer sub.Close()

	history, err := s.bus.ReplaySession(r.Context(), sessionID, last)
	if err != nil {
		logger.Error("replay session events failed", "session", sessionID, "error", err)
	}
	for _, ev := range history {
		if !writeSSE(w, ev) {
			return
		}
	}
	flusher.Flush()

	streamLive(r, w, flusher, sub.C, nil)
}

// handleAllEvents streams every event whose owning session's origin URL has
// a host component equal to the required "domain" query parameter.
func (s *Server) handleAllEvents(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		writeError(w, apperr.Validation("domain query parameter is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}
	prepareSSE(w, flusher)

	last := lastEventID(r)
	sub := s.bus.SubscribeAll()
	defer sub.Close()

	filter := s.domainFilter(r.Context(), domain)

	history, err := s.bus.ReplayAll(r.Context(), last)
	if err != nil {
		logger.Error("replay all events failed", "error", err)
	}
	for _, ev := range history {
		if !filter(ev) {
			continue
		}
		if !writeSSE(w, ev) {
			return
		}
	}
	flusher.Flush()

	streamLive(r, w, flusher, sub.C, filter)
}

// domainFilter returns a predicate matching events whose owning session has
// an origin URL host equal to domain. Invalid origin URLs never match.
// Lookups are cached per session id since one session emits many events
// over the life of a subscription.
func (s *Server) domainFilter(ctx context.Context, domain string) eventFilter {
	cache := map[string]bool{}
	return func(ev store.Event) bool {
		match, ok := cache[ev.SessionID]
		if ok {
			return match
		}
		match = false
		if sess, err := s.store.GetSession(ctx, ev.SessionID); err == nil {
			if u, err := url.Parse(sess.URL); err == nil {
				match = u.Host == domain
			}
		}
		cache[ev.SessionID] = match
		return match
	}
}

func prepareSSE(w http.ResponseWriter, flusher http.Flusher) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()
}

func lastEventID(r *http.Request) int64 {
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if v := r.URL.Query().Get("lastEventId"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func writeSSE(w http.ResponseWriter, ev store.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("marshal event for SSE failed", "error", err)
		return true
	}
	_, werr := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Sequence, ev.Type, payload)
	return werr == nil
}

func streamLive(r *http.Request, w http.ResponseWriter, flusher http.Flusher, events <-chan store.Event, filter eventFilter) {
	ticker := time.NewTicker(ssePing)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filter != nil && !filter(ev) {
				continue
			}
			if !writeSSE(w, ev) {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
