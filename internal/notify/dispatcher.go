package notify

import (
	"context"
	"log/slog"
	"time"
)

// PushChannel is the transport boundary for instant delivery. Send
// returns true only when the notification was handed to a live channel
// for the screen within the timeout. "Delivered" at this boundary means
// handed to the transport, not rendered on the device.
type PushChannel interface {
	Send(ctx context.Context, screenID string, n Notification, timeout time.Duration) bool
	ConnectedScreens() []string
}

// EmergencyChecker reports whether any organization currently has the
// emergency override flag set. Implemented by the polling config store.
type EmergencyChecker interface {
	AnyEmergencyActive(ctx context.Context) (bool, error)
}

// DispatchResult describes the outcome of a dispatch attempt.
type DispatchResult string

const (
	DispatchAttempted DispatchResult = "attempted" // handed to push, delivery marked
	DispatchQueued    DispatchResult = "queued"    // no live channel, left for poll
)

// Dispatcher attempts push delivery and falls back to leaving the
// notification queued for poll pickup. Correctness never depends on push
// succeeding.
type Dispatcher struct {
	store   Store
	push    PushChannel
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. push may be nil (poll-only mode).
func NewDispatcher(store Store, push PushChannel, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, push: push, timeout: PushTimeout, logger: logger}
}

// Dispatch attempts instant delivery of n. Already-delivered
// notifications are a no-op. A push that does not confirm within the
// timeout leaves no partial state; the notification stays poll-eligible.
// Push unavailability is a degraded-mode signal, logged at debug only.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) DispatchResult {
	if !n.Pending() {
		return DispatchAttempted
	}
	if d.push == nil || !d.push.Send(ctx, n.ScreenID, *n, d.timeout) {
		d.logger.Debug("No live push channel, queued for poll",
			"notification_id", n.ID, "screen_id", n.ScreenID)
		return DispatchQueued
	}

	now := time.Now().UTC()
	won, err := d.store.MarkPushed(ctx, n.ID, now)
	if err != nil {
		// The device received the payload but the mark failed; the row
		// stays pending and the poll path re-delivers. Duplicate display
		// beats lost delivery.
		d.logger.Warn("Push delivered but mark failed",
			"notification_id", n.ID, "error", err)
		return DispatchQueued
	}
	if !won {
		// Poll claim beat the push confirmation; its timestamp stands.
		d.logger.Debug("Push lost delivery race to poll", "notification_id", n.ID)
		return DispatchAttempted
	}

	n.DeliveredAt = &now
	n.Channel = ChannelPush
	d.logger.Info("Notification pushed",
		"notification_id", n.ID, "screen_id", n.ScreenID, "priority", n.Priority)
	return DispatchAttempted
}

// StartRetryWorker re-attempts push delivery for pending notifications of
// currently connected screens. Devices that connect after a change was
// recorded get instant delivery without waiting for their next heartbeat.
// The sweep shortens to the urgent interval while any organization has
// emergency override active. Blocks until ctx is cancelled; intended to
// be called with `go`.
func (d *Dispatcher) StartRetryWorker(ctx context.Context, emergencies EmergencyChecker) {
	d.logger.Info("Push retry worker started", "interval", RetryInterval)
	timer := time.NewTimer(RetryInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			d.retryConnected(ctx)
			timer.Reset(d.sweepInterval(ctx, emergencies))
		case <-ctx.Done():
			d.logger.Info("Push retry worker stopped")
			return
		}
	}
}

func (d *Dispatcher) retryConnected(ctx context.Context) {
	if d.push == nil {
		return
	}
	for _, screenID := range d.push.ConnectedScreens() {
		pending, err := d.store.ListPending(ctx, screenID)
		if err != nil {
			d.logger.Warn("List pending failed", "screen_id", screenID, "error", err)
			continue
		}
		for i := range pending {
			d.Dispatch(ctx, &pending[i])
		}
	}
}

func (d *Dispatcher) sweepInterval(ctx context.Context, emergencies EmergencyChecker) time.Duration {
	if emergencies == nil {
		return RetryInterval
	}
	active, err := emergencies.AnyEmergencyActive(ctx)
	if err != nil {
		d.logger.Warn("Emergency check failed", "error", err)
		return RetryInterval
	}
	if active {
		return RetryIntervalUrgent
	}
	return RetryInterval
}
