package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/agentation/broker/internal/logger"
	"github.com/agentation/broker/internal/store"
)

// minSweepInterval is the floor on how often the retention sweep may run,
// regardless of the configured cron expression, matching the "at most
// hourly" cadence called for by the domain.
const minSweepInterval = time.Hour

// StartRetention schedules a recurring sweep that deletes events older
// than retentionDays, per the configured cron expression, grounded on the
// teacher pack's gronx-driven scheduler (internal/retention/retention.go).
// An empty cronExpr defaults to hourly.
func StartRetention(ctx context.Context, st store.Store, retentionDays int, cronExpr string) (context.CancelFunc, error) {
	if retentionDays <= 0 {
		logger.Info("event retention disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		cronExpr = "0 * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", cronExpr)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go runRetentionLoop(ctx2, st, retentionDays, cronExpr)
	logger.Info("event retention scheduler started", "cron", cronExpr, "retentionDays", retentionDays)
	return cancel, nil
}

func runRetentionLoop(ctx context.Context, st store.Store, retentionDays int, cronExpr string) {
	lastRun := time.Time{}
	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention next tick failed", "error", err)
			next = now.Add(minSweepInterval)
		}
		if !lastRun.IsZero() && next.Sub(lastRun) < minSweepInterval {
			next = lastRun.Add(minSweepInterval)
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		select {
		case <-time.After(wait):
			lastRun = time.Now().UTC()
			sweepOnce(ctx, st, retentionDays)
		case <-ctx.Done():
			logger.Info("retention scheduler stopping")
			return
		}
	}
}

func sweepOnce(ctx context.Context, st store.Store, retentionDays int) {
	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed, err := st.DeleteEventsOlderThan(ctx, cutoff.UnixNano())
	if err != nil {
		logger.Error("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("retention sweep removed events", "count", removed, "cutoff", cutoff)
	}
}
