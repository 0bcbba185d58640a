package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Resolver maps a change to the set of affected screen identifiers.
// Screens and schedules are external entities; callers normally resolve
// them before calling RecordChange, but a resolver may be plugged in so
// mutation surfaces can hand the core unresolved events.
type Resolver interface {
	AffectedScreens(ctx context.Context, changeType ChangeType, payload json.RawMessage) ([]string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, changeType ChangeType, payload json.RawMessage) ([]string, error)

func (f ResolverFunc) AffectedScreens(ctx context.Context, changeType ChangeType, payload json.RawMessage) ([]string, error) {
	return f(ctx, changeType, payload)
}

// Service is the change recorder and heartbeat poll entry point. The
// log-write → queue-promote → dispatch-attempt sequence for one change
// event completes (or fails atomically) before RecordChange returns.
type Service struct {
	store      Store
	dispatcher *Dispatcher
	resolver   Resolver
	logger     *slog.Logger
}

// NewService creates a Service. dispatcher may be nil, in which case
// notifications are left for poll pickup only. resolver may be nil if
// callers always pre-resolve screen IDs.
func NewService(store Store, dispatcher *Dispatcher, resolver Resolver, logger *slog.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, resolver: resolver, logger: logger}
}

// RecordChange records a content-affecting mutation for the given
// screens and returns the number of log entries written.
//
// An empty or nil screen set is a successful no-op: an affected-nothing
// change (editing an unscheduled playlist) must not fail and must not
// insert a null-screen row. Duplicate screen IDs collapse to one entry.
// Push delivery failures never surface here; only log/queue persistence
// failures do.
func (s *Service) RecordChange(ctx context.Context, changeType ChangeType, payload json.RawMessage, screenIDs []string) (int, error) {
	if !changeType.Valid() {
		return 0, fmt.Errorf("%w: change type %q", ErrInvalidInput, changeType)
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return 0, fmt.Errorf("%w: malformed payload", ErrInvalidInput)
	}

	screens := distinct(screenIDs)
	if len(screens) == 0 {
		s.logger.Debug("Change affects no screens, skipping", "type", changeType)
		return 0, nil
	}

	now := time.Now().UTC()
	records := make([]ChangeRecord, 0, len(screens))
	for _, screenID := range screens {
		records = append(records, ChangeRecord{
			Entry: LogEntry{
				ID:        NewID(),
				ScreenID:  screenID,
				Type:      changeType,
				Payload:   payload,
				CreatedAt: now,
			},
			Notification: Promote(screenID, changeType, now),
		})
	}

	created, err := s.store.AppendChange(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("append change: %w", err)
	}

	s.logger.Info("Change recorded",
		"type", changeType,
		"screens", len(records),
		"notifications", len(created),
		"suppressed", len(records)-len(created))

	// Push is best-effort: attempted inline so callers observe a
	// consistent state, but its failures stay isolated.
	if s.dispatcher != nil {
		for i := range created {
			s.dispatcher.Dispatch(ctx, &created[i])
		}
	}
	return len(records), nil
}

// RecordResolved resolves affected screens with the configured resolver
// and records the change. Requires a resolver.
func (s *Service) RecordResolved(ctx context.Context, changeType ChangeType, payload json.RawMessage) (int, error) {
	if s.resolver == nil {
		return 0, fmt.Errorf("%w: no resolver configured", ErrInvalidInput)
	}
	screens, err := s.resolver.AffectedScreens(ctx, changeType, payload)
	if err != nil {
		return 0, fmt.Errorf("resolve affected screens: %w", err)
	}
	return s.RecordChange(ctx, changeType, payload, screens)
}

// Poll claims and returns every pending notification for the screen,
// ordered by priority descending then creation time ascending. The claim
// is conditional on the delivery timestamp being unset, so concurrent
// polls (a retried request) never return the same notification twice.
func (s *Service) Poll(ctx context.Context, screenID string) ([]Notification, error) {
	if screenID == "" {
		return nil, fmt.Errorf("%w: empty screen id", ErrInvalidInput)
	}
	claimed, err := s.store.ClaimPending(ctx, screenID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	if len(claimed) > 0 {
		s.logger.Info("Poll delivered notifications", "screen_id", screenID, "count", len(claimed))
	}
	return claimed, nil
}

// Promote maps a change onto notification fields via the fixed template
// table. Also used by the catch-up sweep and the test-send tooling so
// every notification in the system goes through the same mapping.
func Promote(screenID string, changeType ChangeType, now time.Time) Notification {
	tpl := templates[changeType]
	return Notification{
		ID:        NewID(),
		ScreenID:  screenID,
		Type:      changeType,
		Title:     tpl.Title,
		Message:   tpl.Message,
		Priority:  tpl.Priority,
		CreatedAt: now,
	}
}

// distinct filters empty IDs and collapses duplicates, preserving first
// occurrence order.
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
