package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node
// development. It mirrors the Postgres store's semantics, including the
// pending-dedup rule and the at-most-once delivery mark.
type MemoryStore struct {
	mu            sync.Mutex
	log           []LogEntry
	notifications map[string]*Notification
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notifications: make(map[string]*Notification)}
}

func (s *MemoryStore) AppendChange(_ context.Context, records []ChangeRecord) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]Notification, 0, len(records))
	for _, rec := range records {
		s.log = append(s.log, rec.Entry)
		if s.hasPendingLocked(rec.Notification.ScreenID, rec.Notification.Type) {
			continue
		}
		n := rec.Notification
		s.notifications[n.ID] = &n
		created = append(created, n)
	}
	return created, nil
}

func (s *MemoryStore) ClaimPending(_ context.Context, screenID string, now time.Time) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []Notification
	for _, n := range s.notifications {
		if n.ScreenID != screenID || !n.Pending() {
			continue
		}
		at := now
		n.DeliveredAt = &at
		n.Channel = ChannelPoll
		claimed = append(claimed, *n)
	}
	sortByPriority(claimed)
	return claimed, nil
}

func (s *MemoryStore) MarkPushed(_ context.Context, id string, deliveredAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || !n.Pending() {
		return false, nil
	}
	at := deliveredAt
	n.DeliveredAt = &at
	n.Channel = ChannelPush
	return true, nil
}

func (s *MemoryStore) ListPending(_ context.Context, screenID string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []Notification
	for _, n := range s.notifications {
		if n.ScreenID == screenID && n.Pending() {
			pending = append(pending, *n)
		}
	}
	sortByPriority(pending)
	return pending, nil
}

func (s *MemoryStore) PurgeDelivered(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, n := range s.notifications {
		if !n.Pending() && n.DeliveredAt.Before(olderThan) {
			delete(s.notifications, id)
			purged++
		}
	}
	return purged, nil
}

// LogEntries returns a copy of the append-only log. Test helper.
func (s *MemoryStore) LogEntries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.log...)
}

// Get returns a notification by ID. Test helper.
func (s *MemoryStore) Get(id string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return Notification{}, false
	}
	return *n, true
}

func (s *MemoryStore) hasPendingLocked(screenID string, t ChangeType) bool {
	for _, n := range s.notifications {
		if n.ScreenID == screenID && n.Type == t && n.Pending() {
			return true
		}
	}
	return false
}

// sortByPriority orders by priority descending, then creation time
// ascending, then ID for a stable order on equal timestamps.
func sortByPriority(ns []Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Priority != ns[j].Priority {
			return ns[i].Priority > ns[j].Priority
		}
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.Before(ns[j].CreatedAt)
		}
		return ns[i].ID < ns[j].ID
	})
}
