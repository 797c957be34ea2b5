package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/history"
	"github.com/driftline/driftline/internal/snapshot"
)

// SnapshotRequest registers a raw schema snapshot for an environment.
type SnapshotRequest struct {
	Environment string `json:"environment"`
	Name        string `json:"name"`
	SQL         string `json:"sql"`
}

// SnapshotInfo is the API shape of one registered snapshot.
type SnapshotInfo struct {
	Environment string    `json:"environment"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	SizeBytes   int       `json:"size_bytes"`
	CapturedAt  time.Time `json:"captured_at"`
}

// SnapshotsResponse lists registered snapshots, newest first.
type SnapshotsResponse struct {
	Snapshots []SnapshotInfo `json:"snapshots"`
	RequestID string         `json:"request_id"`
}

// SnapshotsHandler handles POST and GET /v1/snapshots.
type SnapshotsHandler struct {
	store    *snapshot.Store
	catalog  history.Catalog
	notifier *events.Notifier
}

// NewSnapshotsHandler creates a new snapshots handler. The notifier may
// be nil.
func NewSnapshotsHandler(store *snapshot.Store, catalog history.Catalog, notifier *events.Notifier) *SnapshotsHandler {
	return &SnapshotsHandler{store: store, catalog: catalog, notifier: notifier}
}

// ServeHTTP serves snapshot registration and listing.
func (h *SnapshotsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	switch r.Method {
	case http.MethodPost:
		h.register(w, r, requestID)
	case http.MethodGet:
		h.list(w, r, requestID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
	}
}

func (h *SnapshotsHandler) register(w http.ResponseWriter, r *http.Request, requestID string) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.Environment == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "environment and name are required", requestID)
		return
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, "sql is required", requestID)
		return
	}

	meta, err := h.store.Save(r.Context(), req.Environment, req.Name, req.SQL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store snapshot: %v", err), requestID)
		return
	}

	rec := &history.SnapshotRecord{
		Environment: req.Environment,
		Name:        req.Name,
		Fingerprint: meta.Fingerprint,
		SizeBytes:   meta.Size,
		CapturedAt:  meta.CapturedAt,
	}
	if err := h.catalog.RegisterSnapshot(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to register snapshot: %v", err), requestID)
		return
	}

	if h.notifier != nil {
		h.notifier.Publish(events.Event{
			Type:        events.SnapshotSaved,
			Environment: rec.Environment,
			Detail:      rec.Name,
			Timestamp:   rec.CapturedAt.UnixNano(),
		})
	}

	writeJSON(w, http.StatusCreated, SnapshotInfo{
		Environment: rec.Environment,
		Name:        rec.Name,
		Fingerprint: strconv.FormatUint(rec.Fingerprint, 16),
		SizeBytes:   rec.SizeBytes,
		CapturedAt:  rec.CapturedAt,
	})
}

func (h *SnapshotsHandler) list(w http.ResponseWriter, r *http.Request, requestID string) {
	env := r.URL.Query().Get("environment")
	if env == "" {
		writeError(w, http.StatusBadRequest, "environment query parameter is required", requestID)
		return
	}

	recs, err := h.catalog.ListSnapshots(r.Context(), env)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list snapshots: %v", err), requestID)
		return
	}

	resp := SnapshotsResponse{Snapshots: make([]SnapshotInfo, 0, len(recs)), RequestID: requestID}
	for _, rec := range recs {
		resp.Snapshots = append(resp.Snapshots, SnapshotInfo{
			Environment: rec.Environment,
			Name:        rec.Name,
			Fingerprint: strconv.FormatUint(rec.Fingerprint, 16),
			SizeBytes:   rec.SizeBytes,
			CapturedAt:  rec.CapturedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
