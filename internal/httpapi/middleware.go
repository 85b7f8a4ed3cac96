package httpapi

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/agentation/broker/internal/apperr"
	"github.com/agentation/broker/internal/logger"
)

// withCORS mirrors the teacher pack's CORS handling (pkg/auth/gateway.go),
// adapted to this broker's always-permissive policy: every response,
// including preflight, carries a wildcard Access-Control-Allow-Origin
// regardless of whether the request even sent an Origin header.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limiterPool hands out a rate.Limiter per client key, grounded on the
// teacher pack's pkg/auth/limiter.go.
type limiterPool struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	rps float64
}

func (p *limiterPool) allow(key string) bool {
	if p.rps <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.m == nil {
		p.m = make(map[string]*rate.Limiter)
	}
	l, ok := p.m[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.rps), int(p.rps)+1)
		p.m[key] = l
	}
	return l.Allow()
}

// withAuth enforces a single shared bearer credential when apiKey is
// non-empty; when apiKey is empty the broker runs unauthenticated
// (loopback-only deployment), matching the domain's "optional shared
// bearer auth" requirement.
func withAuth(apiKey string, rateLimitRPS float64, next http.Handler) http.Handler {
	limiters := &limiterPool{rps: rateLimitRPS}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		key := "anonymous"
		if apiKey != "" {
			got := bearerToken(r)
			if got == "" || got != apiKey {
				writeError(w, apperr.Unauthorized("missing or invalid bearer credential"))
				return
			}
			key = got
		}

		if !limiters.allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		logger.Debug("http request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return ""
}
