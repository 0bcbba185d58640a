package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelfleet/signage-notify/internal/cache"
	"github.com/pixelfleet/signage-notify/internal/config"
	"github.com/pixelfleet/signage-notify/internal/notify"
	"github.com/pixelfleet/signage-notify/internal/pollconfig"
	"github.com/pixelfleet/signage-notify/internal/push"
)

// --- helpers ---

// testEnv wires a Handler against in-memory stores plus a bare chi router
// so URL params resolve the same way they do in production.
type testEnv struct {
	store    *notify.MemoryStore
	cfgStore *pollconfig.MemoryStore
	hub      *push.Hub
	router   *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := notify.NewMemoryStore()
	cfgStore := pollconfig.NewMemoryStore()
	hub := push.NewHub(logger)
	dispatcher := notify.NewDispatcher(store, hub, logger)
	service := notify.NewService(store, dispatcher, nil, logger)
	h := New(service, cfgStore, hub, cache.New(false), &config.Config{}, nil, logger)

	r := chi.NewRouter()
	r.Post("/api/v1/changes", h.RecordChange)
	r.Get("/api/v1/screens/{screenID}/notifications/poll", h.Poll)
	r.Get("/api/v1/screens/{screenID}/events", h.Stream)
	r.Get("/api/v1/orgs/{orgID}/polling-config", h.GetPollingConfig)
	r.Put("/api/v1/orgs/{orgID}/polling-config", h.SetPollingConfig)
	r.Post("/api/v1/orgs/polling-config/backfill", h.BackfillPollingConfigs)
	r.Get("/health", h.HealthCheck)

	return &testEnv{store: store, cfgStore: cfgStore, hub: hub, router: r}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, target, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, w, &resp)
	return resp.Error.Code
}

// --- /changes ---

func TestRecordChangeEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/changes", map[string]interface{}{
		"type":       "playlist_change",
		"payload":    map[string]string{"playlist_id": "pl_1"},
		"screen_ids": []string{"scr_1", "scr_2"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp changeResponse
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.LogEntries)
	assert.Len(t, env.store.LogEntries(), 2)
}

func TestRecordChangeEndpointEmptyScreens(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/changes", map[string]interface{}{
		"type":    "schedule_change",
		"payload": map[string]string{"schedule_id": "sch_1"},
	})
	require.Equal(t, http.StatusOK, w.Code, "a change affecting no screens is a successful no-op")

	var resp changeResponse
	decode(t, w, &resp)
	assert.Zero(t, resp.LogEntries)
}

func TestRecordChangeEndpointValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/changes", map[string]interface{}{
		"type":       "spurious_change",
		"payload":    map[string]string{},
		"screen_ids": []string{"scr_1"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, w))

	w = env.do(t, http.MethodPost, "/api/v1/changes", map[string]interface{}{
		"payload": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/changes", bytes.NewReader([]byte(`{broken`)))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BODY", errorCode(t, rec))
}

// --- poll ---

func TestPollEndpointClaimsOnce(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/changes", map[string]interface{}{
		"type":       "playlist_change",
		"payload":    map[string]string{"playlist_id": "pl_1"},
		"screen_ids": []string{"scr_1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/screens/scr_1/notifications/poll", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp pollResponse
	decode(t, w, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "playlist_change", resp.Notifications[0].Type)
	assert.Equal(t, "Playlist Updated", resp.Notifications[0].Title)
	assert.Equal(t, int(pollconfig.DefaultInterval.Seconds()), resp.NextPollSecs)

	// The retried heartbeat gets an empty, still-successful response.
	w = env.do(t, http.MethodGet, "/api/v1/screens/scr_1/notifications/poll", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Zero(t, resp.Count)
	assert.NotNil(t, resp.Notifications)
}

func TestPollEndpointHidesDeliveryBookkeeping(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/changes", map[string]interface{}{
		"type":       "system_message",
		"payload":    map[string]string{"body": "hello"},
		"screen_ids": []string{"scr_1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/screens/scr_1/notifications/poll", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var raw struct {
		Notifications []map[string]interface{} `json:"notifications"`
	}
	decode(t, w, &raw)
	require.Len(t, raw.Notifications, 1)
	assert.NotContains(t, raw.Notifications[0], "delivered_at")
	assert.NotContains(t, raw.Notifications[0], "channel")
	assert.NotContains(t, raw.Notifications[0], "screen_id")
}

func TestPollEndpointEmergencyCadenceHint(t *testing.T) {
	env := newTestEnv(t)

	flag := true
	_, err := env.cfgStore.Set(context.Background(), "org_1", pollconfig.Update{EmergencyOverride: &flag})
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/screens/scr_1/notifications/poll?org=org_1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp pollResponse
	decode(t, w, &resp)
	assert.Equal(t, int(pollconfig.UrgentInterval.Seconds()), resp.NextPollSecs)
}

// --- polling config ---

func TestGetPollingConfigDefaults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/orgs/org_new/polling-config", nil)
	require.Equal(t, http.StatusOK, w.Code, "absence of a stored config is not an error")

	var resp configResponse
	decode(t, w, &resp)
	assert.Equal(t, "org_new", resp.OrgID)
	assert.Equal(t, pollconfig.DefaultTimezone, resp.Timezone)
	assert.False(t, resp.EmergencyOverride)
	assert.Equal(t, int(pollconfig.DefaultInterval.Seconds()), resp.PollIntervalSecs)
}

func TestSetPollingConfigRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/orgs/org_1/polling-config", map[string]interface{}{
		"timezone":           "America/Chicago",
		"emergency_override": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp configResponse
	decode(t, w, &resp)
	assert.Equal(t, "America/Chicago", resp.Timezone)
	assert.True(t, resp.EmergencyOverride)
	assert.Equal(t, int(pollconfig.UrgentInterval.Seconds()), resp.PollIntervalSecs)

	w = env.do(t, http.MethodGet, "/api/v1/orgs/org_1/polling-config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, "America/Chicago", resp.Timezone)
}

func TestSetPollingConfigRejectsInvalidTimezone(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPut, "/api/v1/orgs/org_1/polling-config", map[string]interface{}{
		"timezone": "Atlantis/Lost",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TIMEZONE", errorCode(t, w))
}

func TestBackfillEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/orgs/polling-config/backfill", map[string]interface{}{
		"org_ids": []string{"org_1", "org_2"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp backfillResponse
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.Inserted)

	w = env.do(t, http.MethodPost, "/api/v1/orgs/polling-config/backfill", map[string]interface{}{
		"org_ids": []string{"org_1", "org_2"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Zero(t, resp.Inserted, "backfill is idempotent")

	w = env.do(t, http.MethodPost, "/api/v1/orgs/polling-config/backfill", map[string]interface{}{
		"org_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- SSE stream ---

func TestStreamDeliversPushedNotification(t *testing.T) {
	env := newTestEnv(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/screens/scr_1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Wait for the subscription to register before recording the change.
	require.Eventually(t, func() bool { return env.hub.Connected("scr_1") },
		2*time.Second, 10*time.Millisecond)

	w := env.do(t, http.MethodPost, "/api/v1/changes", map[string]interface{}{
		"type":       "emergency_override",
		"payload":    map[string]string{"reason": "fire drill"},
		"screen_ids": []string{"scr_1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data, "stream ended without a notification event")

	var n struct {
		Type     string `json:"type"`
		Priority int    `json:"priority"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &n))
	assert.Equal(t, "emergency_override", n.Type)
	assert.Equal(t, notify.PriorityUrgent, n.Priority)

	// Push-confirmed delivery must not reappear on the poll path.
	w = env.do(t, http.MethodGet, "/api/v1/screens/scr_1/notifications/poll", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var poll pollResponse
	decode(t, w, &poll)
	assert.Zero(t, poll.Count)
}

// --- health ---

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp["status"])
	assert.Contains(t, resp, "push")
}
