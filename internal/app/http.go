package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentation/broker/internal/httpapi"
)

// startHTTP builds the router, starts the HTTP server in a goroutine, and
// returns a channel that receives the server's terminal error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	handler := httpapi.NewRouter(a.store, a.bus, a.eff.APIKey, a.eff.RateLimitRPS)

	a.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.eff.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.ListenAndServe()
	}()
	return errCh
}
