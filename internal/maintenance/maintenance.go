// Package maintenance runs periodic background tasks as Go tickers.
// All scheduled work is driven from the API process since it is already
// persistent and long-running (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixelfleet/signage-notify/internal/notify"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // Purge delivered notifications past retention
	CatchUpInterval time.Duration // Re-promote log entries that lost their notification
	Retention       time.Duration // How long delivered notifications are kept
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig(retentionDays int) Config {
	return Config{
		CleanupInterval: 30 * time.Minute,
		CatchUpInterval: 15 * time.Minute,
		Retention:       time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval,
		"catchup", cfg.CatchUpInterval,
		"retention", cfg.Retention)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { cleanup(ctx, pool, cfg.Retention, logger) })
	}

	if cfg.CatchUpInterval > 0 {
		t := time.NewTicker(cfg.CatchUpInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { catchUpSweep(ctx, pool, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// cleanup purges delivered notifications past the retention window. The
// notification log is append-only and kept for audit; only queue rows
// with a set delivery timestamp are removed.
func cleanup(ctx context.Context, pool *pgxpool.Pool, retention time.Duration, logger *slog.Logger) {
	cutoff := time.Now().UTC().Add(-retention)
	tag, err := pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE delivered_at IS NOT NULL AND delivered_at < $1`, cutoff)
	if err != nil {
		logger.Warn("Cleanup: failed to purge delivered notifications", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged delivered notifications", "count", tag.RowsAffected())
	}
}

// catchUpSweep finds recent log entries whose promotion never landed (a
// crash between log commit and a lost in-flight process, or rows written
// by tooling that bypassed the service) and inserts the missing
// notifications. The pending-dedup rule still applies, so a sweep never
// creates a duplicate pending row.
func catchUpSweep(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT l.screen_id, l.change_type
		FROM notification_log l
		WHERE l.created_at > NOW() - INTERVAL '1 hour'
		  AND NOT EXISTS (
			SELECT 1 FROM notifications n
			WHERE n.screen_id = l.screen_id
			  AND n.type = l.change_type
			  AND n.created_at >= l.created_at
		  )`)
	if err != nil {
		logger.Warn("Catch-up sweep: query failed", "error", err)
		return
	}
	defer rows.Close()

	type pair struct {
		screenID string
		change   notify.ChangeType
	}
	var missing []pair
	for rows.Next() {
		var p pair
		var change string
		if err := rows.Scan(&p.screenID, &change); err != nil {
			logger.Warn("Catch-up sweep: scan failed", "error", err)
			return
		}
		p.change = notify.ChangeType(change)
		missing = append(missing, p)
	}
	if err := rows.Err(); err != nil {
		logger.Warn("Catch-up sweep: rows failed", "error", err)
		return
	}

	created := 0
	now := time.Now().UTC()
	for _, p := range missing {
		n := notify.Promote(p.screenID, p.change, now)
		tag, err := pool.Exec(ctx, `
			INSERT INTO notifications (id, screen_id, type, title, message, priority, created_at)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE NOT EXISTS (
				SELECT 1 FROM notifications
				WHERE screen_id = $2 AND type = $3 AND delivered_at IS NULL
			)`,
			n.ID, n.ScreenID, string(n.Type), n.Title, n.Message, n.Priority, n.CreatedAt,
		)
		if err != nil {
			logger.Warn("Catch-up sweep: insert failed", "screen_id", p.screenID, "error", err)
			continue
		}
		created += int(tag.RowsAffected())
	}
	if created > 0 {
		logger.Info("Catch-up sweep: created missed notifications", "count", created)
	}
}
