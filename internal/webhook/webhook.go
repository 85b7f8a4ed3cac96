// Package webhook relays every published event to a set of configured
// HTTP endpoints, retrying transient failures with exponential backoff.
// Delivery is a plain event-bus subscriber like any SSE client, so a slow
// or unreachable endpoint never blocks publication or other subscribers.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentation/broker/internal/eventbus"
	"github.com/agentation/broker/internal/logger"
	"github.com/agentation/broker/internal/metrics"
)

const (
	deliveryTimeout = 5 * time.Second
	maxAttempts     = 3
	baseBackoff     = 500 * time.Millisecond
)

// Relay delivers every event on bus to every URL in urls until ctx is
// cancelled. It runs in the caller's goroutine; callers should `go
// webhook.Relay(...)`. It subscribes when it starts running, so events
// published before that are not delivered.
func Relay(ctx context.Context, bus *eventbus.Bus, urls []string) {
	if len(urls) == 0 {
		return
	}
	sub := bus.SubscribeAll()
	defer sub.Close()

	client := &http.Client{Timeout: deliveryTimeout}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			body, err := json.Marshal(ev)
			if err != nil {
				logger.Error("webhook marshal event failed", "error", err)
				continue
			}
			for _, url := range urls {
				deliverWithRetry(ctx, client, url, body)
			}
		}
	}
}

func deliverWithRetry(ctx context.Context, client *http.Client, url string, body []byte) {
	backoff := baseBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := deliverOnce(ctx, client, url, body); err != nil {
			lastErr = err
			logger.Warn("webhook delivery failed", "url", url, "attempt", attempt, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			continue
		}
		return
	}
	metrics.WebhookDeliveryFailures.Inc()
	logger.Error("webhook delivery exhausted retries", "url", url, "attempts", maxAttempts, "error", lastErr)
}

func deliverOnce(ctx context.Context, client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %s", resp.Status)
	}
	return nil
}
