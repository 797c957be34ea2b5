package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/history"
	"github.com/driftline/driftline/pkg/types"
)

// BuildSummary is the API shape of one recorded build.
type BuildSummary struct {
	BuildID          string            `json:"build_id"`
	PlanID           string            `json:"plan_id"`
	PlanName         string            `json:"plan_name"`
	State            string            `json:"state"`
	StepCount        int               `json:"step_count"`
	Summary          types.RiskSummary `json:"summary"`
	EstimatedSeconds int               `json:"estimated_seconds"`
	CreatedAt        time.Time         `json:"created_at"`
}

// BuildsResponse lists recorded builds, newest first.
type BuildsResponse struct {
	Builds    []BuildSummary `json:"builds"`
	RequestID string         `json:"request_id"`
}

// BuildsHandler handles GET /v1/builds and GET /v1/builds/{id}.
type BuildsHandler struct {
	catalog history.Catalog
}

// NewBuildsHandler creates a new builds handler.
func NewBuildsHandler(catalog history.Catalog) *BuildsHandler {
	return &BuildsHandler{catalog: catalog}
}

// ServeHTTP serves build history lookups.
func (h *BuildsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	if id := strings.TrimPrefix(r.URL.Path, "/v1/builds/"); id != "" && id != r.URL.Path {
		h.serveOne(w, r, id, requestID)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", requestID)
			return
		}
		limit = n
	}

	recs, err := h.catalog.ListBuilds(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list builds: %v", err), requestID)
		return
	}

	resp := BuildsResponse{Builds: make([]BuildSummary, 0, len(recs)), RequestID: requestID}
	for _, rec := range recs {
		resp.Builds = append(resp.Builds, toSummary(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BuildsHandler) serveOne(w http.ResponseWriter, r *http.Request, id, requestID string) {
	rec, err := h.catalog.GetBuild(r.Context(), id)
	if err != nil {
		var de *dlerrors.DriftlineError
		if errors.As(err, &de) && de.Code == dlerrors.CodeBuildNotFound {
			writeError(w, http.StatusNotFound, de.Message, requestID)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load build: %v", err), requestID)
		return
	}
	writeJSON(w, http.StatusOK, toSummary(rec))
}

func toSummary(rec *history.BuildRecord) BuildSummary {
	return BuildSummary{
		BuildID:          rec.BuildID,
		PlanID:           rec.PlanID,
		PlanName:         rec.PlanName,
		State:            rec.State,
		StepCount:        rec.StepCount,
		Summary:          rec.Summary,
		EstimatedSeconds: rec.EstimatedSeconds,
		CreatedAt:        rec.CreatedAt,
	}
}
