package notify

import (
	"context"
	"time"
)

// Store is the persistence boundary for the notification log and queue.
// Implementations must honor two invariants:
//
//   - AppendChange is all-or-nothing per change event: either every log
//     entry (and every non-suppressed notification) is written, or none.
//   - DeliveredAt is set at most once. ClaimPending and MarkPushed both
//     condition on it being unset, so exactly one delivery path wins.
type Store interface {
	// AppendChange writes the log entries and, for each, inserts the
	// paired notification unless a pending notification for the same
	// (screen, type) already exists. Returns the notifications actually
	// created, in input order.
	AppendChange(ctx context.Context, records []ChangeRecord) ([]Notification, error)

	// ClaimPending atomically claims every pending notification for the
	// screen: sets DeliveredAt=now and Channel=poll where DeliveredAt is
	// unset. Returns claimed rows ordered by priority descending, then
	// creation time ascending. An empty result is not an error.
	ClaimPending(ctx context.Context, screenID string, now time.Time) ([]Notification, error)

	// MarkPushed conditionally marks a notification delivered over the
	// push channel. Returns false without error when the notification was
	// already delivered (the poll path won the race).
	MarkPushed(ctx context.Context, id string, deliveredAt time.Time) (bool, error)

	// ListPending returns pending notifications for a screen without
	// claiming them, ordered like ClaimPending. Used by the push retry
	// worker.
	ListPending(ctx context.Context, screenID string) ([]Notification, error)

	// PurgeDelivered removes delivered notifications older than the
	// cutoff. Log entries are retained for audit.
	PurgeDelivered(ctx context.Context, olderThan time.Time) (int64, error)
}
