// Package app is the process supervisor: it wires the store, event bus,
// HTTP surface, ACP dispatcher, and webhook relay together and owns
// graceful shutdown, in the shape of the teacher pack's internal/app
// package (New builds resources, Run blocks until shutdown).
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentation/broker/internal/acp"
	"github.com/agentation/broker/internal/config"
	"github.com/agentation/broker/internal/eventbus"
	"github.com/agentation/broker/internal/logger"
	"github.com/agentation/broker/internal/store"
	"github.com/agentation/broker/internal/webhook"
)

// App encapsulates every running component and its lifecycle.
type App struct {
	eff   config.Effective
	store store.Store
	bus   *eventbus.Bus

	srv           *http.Server
	retentionStop context.CancelFunc
	webhookCancel context.CancelFunc
}

// New opens the configured store and builds the event bus. It does not
// start the HTTP server, ACP loop, or background goroutines; call Run for
// that.
func New(ctx context.Context, eff config.Effective) (*App, error) {
	_ = godotenv.Load(".env")

	st, err := openStore(eff)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	bus, err := eventbus.New(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	return &App{eff: eff, store: st, bus: bus}, nil
}

func openStore(eff config.Effective) (store.Store, error) {
	switch eff.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	default:
		return store.OpenSQLite(eff.DBPath)
	}
}

// Run starts every configured component and blocks until ctx is cancelled
// or a fatal component error occurs.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	retentionCancel, err := eventbus.StartRetention(ctx, a.store, a.eff.EventRetentionDays, "")
	if err != nil {
		return fmt.Errorf("start retention: %w", err)
	}
	a.retentionStop = retentionCancel

	var errCh <-chan error
	if a.eff.Mode == config.ModeCombined || a.eff.Mode == config.ModeHTTPOnly {
		errCh = a.startHTTP(ctx)
	}

	if len(a.eff.WebhookURLs) > 0 {
		webhookCtx, cancel := context.WithCancel(ctx)
		a.webhookCancel = cancel
		go webhook.Relay(webhookCtx, a.bus, a.eff.WebhookURLs)
	}

	if a.eff.Mode == config.ModeCombined || a.eff.Mode == config.ModeACPOnly {
		go a.runACP(ctx)
	}

	logger.Info("agentation started", "mode", a.eff.Mode, "port", a.eff.Port, "store", a.eff.Store)

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			_ = a.shutdown()
			return err
		}
		return a.shutdown()
	}
}

func (a *App) runACP(ctx context.Context) {
	disp := acp.NewDispatcher(a.eff.HTTPBase, a.eff.APIKey)
	if err := acp.Serve(ctx, os.Stdin, os.Stdout, disp); err != nil {
		logger.Error("acp dispatcher stopped", "error", err)
	}
}

func (a *App) shutdown() error {
	logger.Info("shutting down")
	if a.retentionStop != nil {
		a.retentionStop()
	}
	if a.webhookCancel != nil {
		a.webhookCancel()
	}
	if a.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown error", "error", err)
		}
	}
	return a.store.Close()
}
