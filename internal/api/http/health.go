package http

import "net/http"

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler handles GET /healthz.
type HealthHandler struct{}

// ServeHTTP reports liveness. The planning server holds no external
// connections that could degrade, so this is a constant response.
func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", GetRequestID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Routes wires all API handlers into a mux behind the default middleware
// chain.
func Routes(planH *PlanHandler, buildsH *BuildsHandler, snapsH *SnapshotsHandler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/plan", planH)
	mux.Handle("/v1/builds", buildsH)
	mux.Handle("/v1/builds/", buildsH)
	mux.Handle("/v1/snapshots", snapsH)
	mux.Handle("/healthz", HealthHandler{})
	return DefaultMiddleware()(mux)
}
