// Package listener provides a Postgres LISTEN/NOTIFY consumer that
// bridges committed change events to the push hub. It holds a dedicated
// pgx connection (not from the pool) listening on the `screen_notify`
// channel.
//
// The notification store calls pg_notify inside the insert transaction;
// NOTIFY fires on commit, so this consumer only ever sees durable rows.
// It exists so push delivery works across API instances — the instance
// holding a screen's SSE connection is not always the instance that
// recorded the change. The poll path never depends on it.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pixelfleet/signage-notify/internal/notify"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Start opens a dedicated connection and listens on the screen_notify
// channel, handing each committed notification to the dispatcher. It
// reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, dispatcher *notify.Dispatcher, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, dispatcher, logger)
		if ctx.Err() != nil {
			logger.Info("Push event listener stopped (context cancelled)")
			return
		}

		logger.Error("Push event listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection
// drops or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, dispatcher *notify.Dispatcher, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+notify.PushNotifyChannel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", notify.PushNotifyChannel, err)
	}
	logger.Info("Push event listener connected", "channel", notify.PushNotifyChannel)

	for {
		event, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var n notify.Notification
		if err := json.Unmarshal([]byte(event.Payload), &n); err != nil {
			logger.Warn("Failed to parse push event",
				"payload", event.Payload, "error", err)
			continue
		}

		// Dispatch asynchronously so a slow push channel never blocks the
		// listener connection.
		go dispatcher.Dispatch(ctx, &n)
	}
}
