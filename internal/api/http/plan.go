package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/history"
	"github.com/driftline/driftline/internal/plan"
	"github.com/driftline/driftline/internal/snapshot"
	"github.com/driftline/driftline/pkg/types"
)

// PlanRequest represents a plan computation request.
type PlanRequest struct {
	CurrentSQL        string `json:"current_sql"`
	TargetSQL         string `json:"target_sql"`
	PlanName          string `json:"plan_name"`
	EnableRollback    bool   `json:"enable_rollback"`
	ParallelExecution bool   `json:"parallel_execution"`
}

// PlanResponse represents the computed plan, its validation outcome, and
// any diagnostics collected across pipeline stages.
type PlanResponse struct {
	BuildID     string                `json:"build_id"`
	State       string                `json:"state"`
	Plan        *types.ExecutionPlan  `json:"plan,omitempty"`
	Rollback    *types.RollbackPlan   `json:"rollback,omitempty"`
	Validation  plan.ValidationResult `json:"validation"`
	Diagnostics []types.Diagnostic    `json:"diagnostics,omitempty"`
	Summary     types.RiskSummary     `json:"summary"`
	RequestID   string                `json:"request_id"`
}

// PlanHandler handles POST /v1/plan requests.
type PlanHandler struct {
	catalog  history.Catalog
	notifier *events.Notifier
}

// NewPlanHandler creates a new plan handler. The notifier may be nil.
func NewPlanHandler(catalog history.Catalog, notifier *events.Notifier) *PlanHandler {
	return &PlanHandler{catalog: catalog, notifier: notifier}
}

// ServeHTTP runs one migration build and returns the compiled plan.
func (h *PlanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.TargetSQL == "" {
		writeError(w, http.StatusBadRequest, "target_sql is required", requestID)
		return
	}

	p := plan.NewPipeline(plan.Options{
		PlanName:          req.PlanName,
		EnableRollback:    req.EnableRollback,
		ParallelExecution: req.ParallelExecution,
	})
	compiled, validation, err := p.Run(req.CurrentSQL, req.TargetSQL)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("build failed: %v", err), requestID)
		return
	}

	resp := PlanResponse{
		State:       string(p.State()),
		Plan:        compiled,
		Validation:  validation,
		Diagnostics: p.Diagnostics(),
		Summary:     compiled.Summary(),
		RequestID:   requestID,
	}

	if validation.Valid && req.EnableRollback {
		rollback, err := p.Rollback()
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("rollback derivation failed: %v", err), requestID)
			return
		}
		resp.Rollback = rollback
	}

	if h.catalog != nil {
		buildID, err := h.catalog.RegisterBuild(r.Context(), &history.BuildRecord{
			PlanID:             compiled.ID,
			PlanName:           compiled.Name,
			State:              string(p.State()),
			CurrentFingerprint: snapshot.Fingerprint(req.CurrentSQL),
			TargetFingerprint:  snapshot.Fingerprint(req.TargetSQL),
			StepCount:          len(compiled.Steps),
			Summary:            compiled.Summary(),
			EstimatedSeconds:   compiled.EstimatedSeconds,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to record build: %v", err), requestID)
			return
		}
		resp.BuildID = buildID
	}

	if h.notifier != nil {
		evType := events.BuildValidated
		detail := fmt.Sprintf("%d step(s)", len(compiled.Steps))
		if !validation.Valid {
			evType = events.BuildFailed
			detail = fmt.Sprintf("%d validation error(s)", len(validation.Errors))
		}
		h.notifier.Publish(events.Event{
			Type:      evType,
			PlanID:    compiled.ID,
			PlanName:  compiled.Name,
			Detail:    detail,
			Timestamp: time.Now().UnixNano(),
		})
	}

	// Validation failures are structured results, not transport errors.
	writeJSON(w, http.StatusOK, resp)
}
