package httpapi

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/verdalabs/wellspring/internal/server/models"
)

func (rt *Router) handlePush(w http.ResponseWriter, r *http.Request) {
	var req models.SyncPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	resp, err := rt.sync.Push(r.Context(), userIDFrom(r.Context()), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (rt *Router) handlePull(w http.ResponseWriter, r *http.Request) {
	// device_id is accepted for wire compatibility with existing clients;
	// pull itself is device-agnostic (the checkpoint travels in the request).
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		rt.log.Debug(r.Context(), "pull", "device_id", deviceID)
	}

	var lastSyncAt *time.Time
	if raw := r.URL.Query().Get("last_sync_at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "last_sync_at must be RFC 3339")
			return
		}
		lastSyncAt = &t
	}

	resp, err := rt.sync.Pull(r.Context(), userIDFrom(r.Context()), lastSyncAt)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		respondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	status, err := rt.sync.Status(r.Context(), userIDFrom(r.Context()), deviceID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (rt *Router) handleConflicts(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		respondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	list, err := rt.sync.Conflicts(r.Context(), userIDFrom(r.Context()), deviceID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []*models.SyncConflict{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (rt *Router) handleResolve(w http.ResponseWriter, r *http.Request) {
	var res models.SyncConflictResolution
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if res.ConflictID == "" {
		respondError(w, http.StatusBadRequest, "conflict_id is required")
		return
	}

	if err := rt.sync.Resolve(r.Context(), userIDFrom(r.Context()), &res); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (rt *Router) handleReset(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		respondError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	if err := rt.sync.Reset(r.Context(), userIDFrom(r.Context()), deviceID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sync reset"})
}
