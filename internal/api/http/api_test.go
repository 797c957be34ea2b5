package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftline/driftline/internal/events"
	"github.com/driftline/driftline/internal/history"
	"github.com/driftline/driftline/internal/snapshot"
	"github.com/driftline/driftline/internal/storage"
)

// newTestServer wires the full handler stack over temp-dir storage.
func newTestServer(t *testing.T) (*httptest.Server, *history.SQLiteCatalog, *events.Notifier) {
	t.Helper()

	catalog, err := history.NewCatalog(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	backend, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	store := snapshot.NewStore(backend)
	notifier := events.NewNotifier(16)

	handler := Routes(
		NewPlanHandler(catalog, notifier),
		NewBuildsHandler(catalog),
		NewSnapshotsHandler(store, catalog, notifier),
	)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, catalog, notifier
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	decode(t, resp, &health)
	assert.Equal(t, "ok", health.Status)
}

func TestPlanEndpointHappyPath(t *testing.T) {
	srv, _, notifier := newTestServer(t)
	sub := notifier.Subscribe("test", nil)

	resp := postJSON(t, srv.URL+"/v1/plan", PlanRequest{
		CurrentSQL:     `CREATE TABLE users (id uuid PRIMARY KEY);`,
		TargetSQL:      `CREATE TABLE users (id uuid PRIMARY KEY, email text);`,
		PlanName:       "add-email",
		EnableRollback: true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out PlanResponse
	decode(t, resp, &out)
	assert.Equal(t, "VALIDATED", out.State)
	assert.True(t, out.Validation.Valid)
	assert.NotEmpty(t, out.BuildID)
	assert.NotNil(t, out.Plan)
	assert.Len(t, out.Plan.Steps, 1)
	assert.NotNil(t, out.Rollback)
	assert.Len(t, out.Rollback.Steps, 1)
	assert.Equal(t, 1, out.Summary.Safe)
	assert.NotEmpty(t, out.RequestID)

	ev := <-sub.Ch
	assert.Equal(t, events.BuildValidated, ev.Type)
	assert.Equal(t, "add-email", ev.PlanName)
}

func TestPlanEndpointRequiresTargetSQL(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/plan", PlanRequest{CurrentSQL: "CREATE TABLE t (id int);"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlanEndpointRejectsMalformedBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/plan", "application/json", strings.NewReader("{not json"))
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlanEndpointBuildErrorIsUnprocessable(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Unterminated string literal: the pipeline fails before compiling.
	resp := postJSON(t, srv.URL+"/v1/plan", PlanRequest{
		TargetSQL: `CREATE TABLE t (v text DEFAULT 'oops);`,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPlanEndpointDestructivePlanIsStillOK(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Destructive builds are structured results, not transport errors.
	resp := postJSON(t, srv.URL+"/v1/plan", PlanRequest{
		CurrentSQL: "CREATE TABLE keep (id int);\nCREATE TABLE legacy (id int);",
		TargetSQL:  `CREATE TABLE keep (id int);`,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out PlanResponse
	decode(t, resp, &out)
	assert.True(t, out.Validation.Valid)
	assert.Equal(t, 1, out.Summary.Destructive)
	assert.Equal(t, "VALIDATED", out.State)
}

func TestBuildsEndpointListsAndFetches(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/plan", PlanRequest{
		TargetSQL: `CREATE TABLE t (id int);`,
		PlanName:  "bootstrap",
	})
	var planned PlanResponse
	decode(t, resp, &planned)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	listResp, err := http.Get(srv.URL + "/v1/builds")
	assert.NoError(t, err)
	var builds BuildsResponse
	decode(t, listResp, &builds)
	if assert.Len(t, builds.Builds, 1) {
		assert.Equal(t, planned.BuildID, builds.Builds[0].BuildID)
		assert.Equal(t, "bootstrap", builds.Builds[0].PlanName)
	}

	oneResp, err := http.Get(srv.URL + "/v1/builds/" + planned.BuildID)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, oneResp.StatusCode)
	var one BuildSummary
	decode(t, oneResp, &one)
	assert.Equal(t, "VALIDATED", one.State)
	assert.Equal(t, 1, one.StepCount)
}

func TestBuildsEndpointUnknownID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/builds/nonexistent")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBuildsEndpointRejectsBadLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/builds?limit=zero")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSnapshotsEndpointRegisterAndList(t *testing.T) {
	srv, _, notifier := newTestServer(t)
	sub := notifier.Subscribe("snaps", nil)

	resp := postJSON(t, srv.URL+"/v1/snapshots", SnapshotRequest{
		Environment: "staging",
		Name:        "v1",
		SQL:         `CREATE TABLE t (id int);`,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var info SnapshotInfo
	decode(t, resp, &info)
	assert.Equal(t, "staging", info.Environment)
	assert.Equal(t, "v1", info.Name)
	assert.NotEmpty(t, info.Fingerprint)
	assert.NotZero(t, info.SizeBytes)

	ev := <-sub.Ch
	assert.Equal(t, events.SnapshotSaved, ev.Type)
	assert.Equal(t, "staging", ev.Environment)

	listResp, err := http.Get(srv.URL + "/v1/snapshots?environment=staging")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, listResp.StatusCode)
	var list SnapshotsResponse
	decode(t, listResp, &list)
	if assert.Len(t, list.Snapshots, 1) {
		assert.Equal(t, "v1", list.Snapshots[0].Name)
	}
}

func TestSnapshotsEndpointValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/snapshots", SnapshotRequest{Environment: "staging"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	listResp, err := http.Get(srv.URL + "/v1/snapshots")
	assert.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, listResp.StatusCode)
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/builds", nil)
	assert.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-42")

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	var builds BuildsResponse
	decode(t, resp, &builds)
	assert.Equal(t, "req-42", builds.RequestID)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/plan")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
