package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixelfleet/signage-notify/internal/api/respond"
)

// timeFormat is the wire format for device-facing timestamps.
const timeFormat = time.RFC3339

// keepAliveInterval paces SSE comment frames so NAT mappings and proxies
// keep the device connection open between notifications.
const keepAliveInterval = 15 * time.Second

// Stream is the device push channel: a long-lived SSE connection keyed
// by screen identifier. Dispatched notifications are written as
// `notification` events; keep-alive comments flow independently of
// content.
// @Summary Device push channel (SSE)
// @Description Opens a persistent server-sent-events stream for a screen. Notifications dispatched while the stream is live are written as `notification` events; the stream carries periodic keep-alive comments. Push is an accelerator — anything not confirmed over this channel stays claimable by poll.
// @Tags devices
// @Produce text/event-stream
// @Param screenID path string true "Screen identifier"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} respond.ErrorResponse
// @Router /screens/{screenID}/events [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	screenID := chi.URLParam(r, "screenID")
	if screenID == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_SCREEN", "screen identifier is required")
		return
	}
	if h.hub == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "PUSH_DISABLED", "push delivery is disabled, use the poll endpoint")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.WriteError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected screen=%s\n\n", screenID)
	flusher.Flush()

	sub := h.hub.Subscribe(screenID)
	defer h.hub.Unsubscribe(sub)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case n := <-sub.C:
			data, err := json.Marshal(toDTO(n))
			if err != nil {
				h.logger.Warn("Marshal push event failed", "notification_id", n.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
