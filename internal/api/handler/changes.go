package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pixelfleet/signage-notify/internal/api/respond"
	"github.com/pixelfleet/signage-notify/internal/notify"
)

// validate is the package-level singleton validator.
var validate = validator.New()

// changeRequest is the inbound mutation event. The caller (playlist and
// schedule editing surfaces) has already resolved affected screen IDs;
// an empty set is valid and records nothing.
type changeRequest struct {
	Type      string          `json:"type" validate:"required,oneof=playlist_change schedule_change system_message emergency_override"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	ScreenIDs []string        `json:"screen_ids" validate:"omitempty,dive,min=1,max=128"`
}

type changeResponse struct {
	LogEntries int `json:"log_entries"`
}

// RecordChange records a content-affecting change event.
// @Summary Record a content change
// @Description Fans a content-affecting mutation out to the affected screens: one log entry per distinct screen, each promoted to a pending notification unless suppressed by dedup. Push delivery is attempted best-effort before the call returns.
// @Tags changes
// @Accept json
// @Produce json
// @Param request body changeRequest true "Change event"
// @Success 200 {object} changeResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /changes [post]
func (h *Handler) RecordChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	count, err := h.service.RecordChange(r.Context(), notify.ChangeType(req.Type), req.Payload, req.ScreenIDs)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidInput) {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
			return
		}
		h.logger.Error("Record change failed", "type", req.Type, "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not persist change event")
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, changeResponse{LogEntries: count})
}
