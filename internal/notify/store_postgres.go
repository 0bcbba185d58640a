package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushNotifyChannel is the Postgres NOTIFY channel used to bridge
// committed notifications to push-capable processes. The listener
// package consumes it. NOTIFY fires on commit, so subscribers only see
// durable rows.
const PushNotifyChannel = "screen_notify"

// PostgresStore implements Store on a pgx connection pool. Contention on
// the delivery mark is handled with conditional updates rather than
// advisory locks so thousands of devices can poll concurrently.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// AppendChange inserts log entries and dedup-checked notifications in a
// single transaction. Each created notification is announced with
// pg_notify so other instances can attempt push delivery after commit.
func (s *PostgresStore) AppendChange(ctx context.Context, records []ChangeRecord) ([]Notification, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	created := make([]Notification, 0, len(records))
	for _, rec := range records {
		e := rec.Entry
		_, err := tx.Exec(ctx, `
			INSERT INTO notification_log (id, screen_id, change_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			e.ID, e.ScreenID, string(e.Type), e.Payload, e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert log entry: %w", err)
		}

		// Suppress while a pending notification for the same
		// (screen, type) exists; the log row above is kept regardless.
		n := rec.Notification
		tag, err := tx.Exec(ctx, `
			INSERT INTO notifications (id, screen_id, type, title, message, priority, created_at)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE NOT EXISTS (
				SELECT 1 FROM notifications
				WHERE screen_id = $2 AND type = $3 AND delivered_at IS NULL
			)`,
			n.ID, n.ScreenID, string(n.Type), n.Title, n.Message, n.Priority, n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert notification: %w", err)
		}
		if tag.RowsAffected() == 0 {
			continue
		}
		created = append(created, n)

		payload, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("marshal notify payload: %w", err)
		}
		if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", PushNotifyChannel, string(payload)); err != nil {
			return nil, fmt.Errorf("pg_notify: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// ClaimPending claims every undelivered notification for the screen in
// one statement. SKIP LOCKED keeps concurrent polls (a retried request)
// from blocking on each other; the delivered_at IS NULL condition keeps
// them from double-claiming.
func (s *PostgresStore) ClaimPending(ctx context.Context, screenID string, now time.Time) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			UPDATE notifications
			SET delivered_at = $2, channel = 'poll'
			WHERE id IN (
				SELECT id FROM notifications
				WHERE screen_id = $1 AND delivered_at IS NULL
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, screen_id, type, title, message, priority, created_at, delivered_at, channel
		)
		SELECT * FROM claimed ORDER BY priority DESC, created_at ASC, id ASC`,
		screenID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// MarkPushed is the push side of the delivery race. The condition on
// delivered_at makes it a compare-and-set: zero rows affected means the
// poll path already delivered and the existing timestamp stands.
func (s *PostgresStore) MarkPushed(ctx context.Context, id string, deliveredAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET delivered_at = $2, channel = 'push'
		WHERE id = $1 AND delivered_at IS NULL`,
		id, deliveredAt,
	)
	if err != nil {
		return false, fmt.Errorf("mark pushed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, screenID string) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, "list_pending_notifications", screenID)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PostgresStore) PurgeDelivered(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE delivered_at IS NOT NULL AND delivered_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("purge delivered: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanNotifications(rows pgx.Rows) ([]Notification, error) {
	var out []Notification
	for rows.Next() {
		var (
			n       Notification
			typ     string
			channel *string
		)
		if err := rows.Scan(&n.ID, &n.ScreenID, &typ, &n.Title, &n.Message,
			&n.Priority, &n.CreatedAt, &n.DeliveredAt, &channel); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = ChangeType(typ)
		if channel != nil {
			n.Channel = Channel(*channel)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
