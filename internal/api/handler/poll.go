package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pixelfleet/signage-notify/internal/api/respond"
	"github.com/pixelfleet/signage-notify/internal/notify"
	"github.com/pixelfleet/signage-notify/internal/pollconfig"
)

// notificationDTO is the device-facing notification shape. Delivery
// timestamp and channel are internal bookkeeping and never leak to the
// device.
type notificationDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Priority  int    `json:"priority"`
	CreatedAt string `json:"created_at"`
}

type pollResponse struct {
	Notifications []notificationDTO `json:"notifications"`
	Count         int               `json:"count"`
	NextPollSecs  int               `json:"next_poll_seconds"`
}

// Poll is the device heartbeat endpoint. It atomically claims every
// pending notification for the screen and returns them ordered by
// priority, then age.
// @Summary Heartbeat poll
// @Description Claims and returns pending notifications for a screen. The claim is conditional on the delivery timestamp being unset, so a retried request never re-delivers. Zero pending notifications is a normal empty response, not an error.
// @Tags devices
// @Produce json
// @Param screenID path string true "Screen identifier"
// @Param org query string false "Owning organization, used for the next-poll cadence hint"
// @Param since query string false "Device's last-known notification timestamp (client-side hint only)"
// @Success 200 {object} pollResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /screens/{screenID}/notifications/poll [get]
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	screenID := chi.URLParam(r, "screenID")

	claimed, err := h.service.Poll(r.Context(), screenID)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidInput) || errors.Is(err, notify.ErrUnknownScreen) {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_SCREEN", err.Error())
			return
		}
		h.logger.Error("Poll failed", "screen_id", screenID, "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not claim notifications")
		return
	}

	resp := pollResponse{
		Notifications: make([]notificationDTO, 0, len(claimed)),
		Count:         len(claimed),
		NextPollSecs:  int(h.pollInterval(r).Seconds()),
	}
	for _, n := range claimed {
		resp.Notifications = append(resp.Notifications, toDTO(n))
	}
	respond.WriteJSONObject(w, http.StatusOK, resp)
}

// pollInterval computes the cadence hint from the owning organization's
// polling configuration. Devices that send no org identifier get the
// default cadence.
func (h *Handler) pollInterval(r *http.Request) time.Duration {
	orgID := r.URL.Query().Get("org")
	if orgID == "" {
		return pollconfig.DefaultInterval
	}
	cfg, err := h.getConfigCached(r.Context(), orgID)
	if err != nil {
		h.logger.Warn("Poll interval lookup failed", "org_id", orgID, "error", err)
		return pollconfig.DefaultInterval
	}
	return pollconfig.EffectiveInterval(cfg)
}

func toDTO(n notify.Notification) notificationDTO {
	return notificationDTO{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		CreatedAt: n.CreatedAt.UTC().Format(timeFormat),
	}
}
