// Package push multiplexes long-lived, device-initiated push channels,
// keyed by screen identifier. The hub is the transport boundary for
// instant delivery: a send is confirmed once the payload is handed to a
// subscriber's channel, not when the device renders it.
//
// The hub holds no durable state. A screen with no live subscription
// simply reports an unconfirmed send and the notification stays on the
// poll path.
package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixelfleet/signage-notify/internal/notify"
)

// subscriptionBuffer bounds per-device queueing. A device that cannot
// drain this many notifications is treated as disconnected for the
// purposes of a send attempt.
const subscriptionBuffer = 16

// Subscription is one device's live push channel. Readers consume C;
// the SSE handler owns the subscription lifecycle.
type Subscription struct {
	ID       string
	ScreenID string
	C        <-chan notify.Notification
	ch       chan notify.Notification
}

// Hub tracks live subscriptions per screen. Multiple subscriptions per
// screen are allowed (a device reconnecting before its old stream times
// out); a send is confirmed when any one of them accepts.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[string]map[string]*Subscription), logger: logger}
}

// Subscribe registers a new push channel for the screen.
func (h *Hub) Subscribe(screenID string) *Subscription {
	sub := &Subscription{
		ID:       uuid.NewString(),
		ScreenID: screenID,
		ch:       make(chan notify.Notification, subscriptionBuffer),
	}
	sub.C = sub.ch

	h.mu.Lock()
	if h.subs[screenID] == nil {
		h.subs[screenID] = make(map[string]*Subscription)
	}
	h.subs[screenID][sub.ID] = sub
	h.mu.Unlock()

	h.logger.Info("Push channel connected", "screen_id", screenID, "subscription_id", sub.ID)
	return sub
}

// Unsubscribe removes the subscription. The channel is left open — a
// concurrent Send holding a snapshot may still write to it, and the
// reader exits on its own context, not on channel close.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if screen, ok := h.subs[sub.ScreenID]; ok {
		delete(screen, sub.ID)
		if len(screen) == 0 {
			delete(h.subs, sub.ScreenID)
		}
	}
	h.mu.Unlock()

	h.logger.Info("Push channel disconnected", "screen_id", sub.ScreenID, "subscription_id", sub.ID)
}

// Send hands n to a live channel for the screen, waiting at most timeout
// for a subscriber to accept. Returns false when no channel exists or
// none accepted in time; the caller falls back to the poll path.
func (h *Hub) Send(ctx context.Context, screenID string, n notify.Notification, timeout time.Duration) bool {
	h.mu.RLock()
	screen := h.subs[screenID]
	targets := make([]*Subscription, 0, len(screen))
	for _, sub := range screen {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return false
	}

	// Every subscriber gets an attempt within the deadline. A stale
	// connection with a full buffer must not starve a freshly reconnected
	// one of the payload.
	deadline := time.Now().Add(timeout)
	confirmed := false
	for _, sub := range targets {
		remaining := time.Until(deadline)
		if confirmed || remaining <= 0 {
			select {
			case sub.ch <- n:
				confirmed = true
			default:
			}
			continue
		}

		timer := time.NewTimer(remaining)
		select {
		case sub.ch <- n:
			confirmed = true
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return confirmed
		}
	}
	return confirmed
}

// Connected reports whether the screen holds at least one live channel.
func (h *Hub) Connected(screenID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[screenID]) > 0
}

// ConnectedScreens returns the screens with at least one live channel.
func (h *Hub) ConnectedScreens() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subs))
	for screenID := range h.subs {
		out = append(out, screenID)
	}
	return out
}

// Stats returns hub statistics for health reporting.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, screen := range h.subs {
		total += len(screen)
	}
	return map[string]interface{}{
		"screens":       len(h.subs),
		"subscriptions": total,
	}
}
