package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schema holds the subsystem-owned tables. Screens and schedules are
// external entities; screen_id is a boundary reference, not a foreign
// key, so this subsystem can run against a database it does not own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS notification_log (
		id          TEXT PRIMARY KEY,
		screen_id   TEXT NOT NULL,
		change_type TEXT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_log_screen
		ON notification_log (screen_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id           TEXT PRIMARY KEY,
		screen_id    TEXT NOT NULL,
		type         TEXT NOT NULL,
		title        TEXT NOT NULL,
		message      TEXT NOT NULL,
		priority     INT  NOT NULL DEFAULT 3,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		delivered_at TIMESTAMPTZ,
		channel      TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_pending
		ON notifications (screen_id, priority DESC, created_at)
		WHERE delivered_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS polling_configs (
		org_id             TEXT PRIMARY KEY,
		timezone           TEXT NOT NULL DEFAULT 'UTC',
		emergency_override BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema. Statements are idempotent, so repeat runs
// are safe. Uses a plain connection because the pool's prepared
// statements reference tables that may not exist yet.
func Migrate(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	for _, stmt := range schema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
