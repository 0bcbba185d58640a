package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelfleet/signage-notify/internal/api/respond"
	"github.com/pixelfleet/signage-notify/internal/cache"
	"github.com/pixelfleet/signage-notify/internal/pollconfig"
)

type configResponse struct {
	pollconfig.Config
	PollIntervalSecs int `json:"poll_interval_seconds"`
}

func configKey(orgID string) string { return fmt.Sprintf("pollconfig:%s", orgID) }

// getConfigCached reads an organization's config through the TTL cache.
// Heartbeats hit this on every poll; eventual consistency with the most
// recent write is acceptable across devices.
func (h *Handler) getConfigCached(ctx context.Context, orgID string) (pollconfig.Config, error) {
	if data, _, ok := h.cache.Get(configKey(orgID)); ok {
		var cfg pollconfig.Config
		if err := json.Unmarshal(data, &cfg); err == nil {
			return cfg, nil
		}
	}
	cfg, err := h.pollcfg.Get(ctx, orgID)
	if err != nil {
		return pollconfig.Config{}, err
	}
	resp := configResponse{
		Config:           cfg,
		PollIntervalSecs: int(pollconfig.EffectiveInterval(cfg).Seconds()),
	}
	if data, err := json.Marshal(resp); err == nil {
		h.cache.Set(configKey(orgID), data, cache.TTLPollConfig)
	}
	return cfg, nil
}

// GetPollingConfig returns an organization's polling configuration.
// @Summary Get polling configuration
// @Description Returns the polling configuration for an organization. Organizations without a stored row get the system default (UTC, emergency override off) — absence is not an error.
// @Tags config
// @Produce json
// @Param orgID path string true "Organization identifier"
// @Success 200 {object} configResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /orgs/{orgID}/polling-config [get]
func (h *Handler) GetPollingConfig(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	key := configKey(orgID)
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLPollConfig, true)
		return
	}

	cfg, err := h.pollcfg.Get(r.Context(), orgID)
	if err != nil {
		h.logger.Error("Get polling config failed", "org_id", orgID, "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not read polling configuration")
		return
	}

	data, err := json.Marshal(configResponse{
		Config:           cfg,
		PollIntervalSecs: int(pollconfig.EffectiveInterval(cfg).Seconds()),
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODING_FAILED", "Could not encode configuration")
		return
	}
	etag := h.cache.Set(key, data, cache.TTLPollConfig)
	respond.WriteJSON(w, data, etag, cache.TTLPollConfig, false)
}

// SetPollingConfig upserts an organization's polling configuration.
// @Summary Update polling configuration
// @Description Upserts timezone and/or emergency override for an organization. Fields omitted from the body are left unchanged.
// @Tags config
// @Accept json
// @Produce json
// @Param orgID path string true "Organization identifier"
// @Param request body pollconfig.Update true "Fields to update"
// @Success 200 {object} configResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /orgs/{orgID}/polling-config [put]
func (h *Handler) SetPollingConfig(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")

	var upd pollconfig.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON")
		return
	}

	cfg, err := h.pollcfg.Set(r.Context(), orgID, upd)
	if err != nil {
		if errors.Is(err, pollconfig.ErrInvalidTimezone) {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_TIMEZONE", err.Error())
			return
		}
		h.logger.Error("Set polling config failed", "org_id", orgID, "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not update polling configuration")
		return
	}

	h.cache.Invalidate(configKey(orgID))
	h.logger.Info("Polling config updated",
		"org_id", orgID, "timezone", cfg.Timezone, "emergency_override", cfg.EmergencyOverride)

	respond.WriteJSONObject(w, http.StatusOK, configResponse{
		Config:           cfg,
		PollIntervalSecs: int(pollconfig.EffectiveInterval(cfg).Seconds()),
	})
}

type backfillRequest struct {
	OrgIDs []string `json:"org_ids" validate:"required,min=1"`
}

type backfillResponse struct {
	Inserted int `json:"inserted"`
}

// BackfillPollingConfigs inserts default rows for organizations without one.
// @Summary Backfill polling configurations
// @Description Inserts a default configuration for each listed organization that has none. Idempotent: repeat runs insert nothing.
// @Tags config
// @Accept json
// @Produce json
// @Param request body backfillRequest true "Organizations to backfill"
// @Success 200 {object} backfillResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /orgs/polling-config/backfill [post]
func (h *Handler) BackfillPollingConfigs(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	inserted, err := h.pollcfg.Backfill(r.Context(), req.OrgIDs)
	if err != nil {
		h.logger.Error("Backfill polling configs failed", "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not backfill configurations")
		return
	}
	h.logger.Info("Polling configs backfilled", "requested", len(req.OrgIDs), "inserted", inserted)
	respond.WriteJSONObject(w, http.StatusOK, backfillResponse{Inserted: inserted})
}
