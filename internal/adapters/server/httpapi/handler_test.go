package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hylla/atelier/internal/adapters/server/common"
	"github.com/hylla/atelier/internal/domain"
)

// stubSyncService provides deterministic sync responses for handler tests.
type stubSyncService struct {
	status      common.SyncStatus
	pending     []common.PendingRecord
	submit      common.SubmitMutationResult
	run         common.DrainRun
	conn        common.ConnectivityResult
	view        common.ProjectView
	history     []common.DrainRun
	cached      []common.CachedProject
	err         error
	lastSubmit  common.SubmitMutationRequest
	lastDrain   common.DrainRequest
	lastConn    common.SetConnectivityRequest
	lastProject string
	lastLimit   int
	lastForget  string
}

// SyncStatus returns the configured status.
func (s *stubSyncService) SyncStatus(context.Context) (common.SyncStatus, error) {
	return s.status, s.err
}

// ListPending returns the configured records.
func (s *stubSyncService) ListPending(context.Context) ([]common.PendingRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.PendingRecord(nil), s.pending...), nil
}

// SubmitMutation records the request and returns the configured result.
func (s *stubSyncService) SubmitMutation(_ context.Context, req common.SubmitMutationRequest) (common.SubmitMutationResult, error) {
	s.lastSubmit = req
	if s.err != nil {
		return common.SubmitMutationResult{}, s.err
	}
	return s.submit, nil
}

// Drain records the request and returns the configured run.
func (s *stubSyncService) Drain(_ context.Context, req common.DrainRequest) (common.DrainRun, error) {
	s.lastDrain = req
	if s.err != nil {
		return common.DrainRun{}, s.err
	}
	return s.run, nil
}

// SetConnectivity records the request and returns the configured result.
func (s *stubSyncService) SetConnectivity(_ context.Context, req common.SetConnectivityRequest) (common.ConnectivityResult, error) {
	s.lastConn = req
	if s.err != nil {
		return common.ConnectivityResult{}, s.err
	}
	return s.conn, nil
}

// LoadProject records the id and returns the configured view.
func (s *stubSyncService) LoadProject(_ context.Context, projectID string) (common.ProjectView, error) {
	s.lastProject = projectID
	if s.err != nil {
		return common.ProjectView{}, s.err
	}
	return s.view, nil
}

// DrainHistory records the limit and returns the configured runs.
func (s *stubSyncService) DrainHistory(_ context.Context, limit int) ([]common.DrainRun, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.history, nil
}

// ListCachedProjects returns the configured cached projects.
func (s *stubSyncService) ListCachedProjects(context.Context) ([]common.CachedProject, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.CachedProject(nil), s.cached...), nil
}

// ForgetProject records the id.
func (s *stubSyncService) ForgetProject(_ context.Context, projectID string) error {
	s.lastForget = projectID
	return s.err
}

// serve runs one request through the handler.
func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeResponse decodes one JSON response body into the requested type.
func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

// TestHandlerStatusAndQueue verifies read endpoints.
func TestHandlerStatusAndQueue(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	stub := &stubSyncService{
		status: common.SyncStatus{Online: true, EngineState: "idle", Pending: 1, MaxPending: 1000},
		pending: []common.PendingRecord{
			{ID: "r1", Kind: string(domain.KindItemCreate), ProjectID: "p1", EnqueuedAt: now, Payload: json.RawMessage(`{"name":"Lamp"}`)},
		},
	}
	handler := NewHandler(stub)

	rec := serve(t, handler, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	status := decodeResponse[common.SyncStatus](t, rec)
	if !status.Online || status.Pending != 1 {
		t.Fatalf("unexpected status %#v", status)
	}

	rec = serve(t, handler, http.MethodGet, "/queue/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("queue status = %d, want %d", rec.Code, http.StatusOK)
	}
	queue := decodeResponse[struct {
		Records []common.PendingRecord `json:"records"`
		Size    int                    `json:"size"`
	}](t, rec)
	if queue.Size != 1 || queue.Records[0].ID != "r1" {
		t.Fatalf("unexpected queue %#v", queue)
	}
}

// TestHandlerSubmitMutation verifies submit routing and status codes.
func TestHandlerSubmitMutation(t *testing.T) {
	stub := &stubSyncService{submit: common.SubmitMutationResult{Record: common.PendingRecord{ID: "r1"}, Queued: true}}
	handler := NewHandler(stub)

	rec := serve(t, handler, http.MethodPost, "/mutations", `{"kind":"item.create","payload":{"project_id":"p1","name":"Lamp"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if stub.lastSubmit.Kind != "item.create" || !strings.Contains(string(stub.lastSubmit.Payload), "Lamp") {
		t.Fatalf("unexpected submit request %#v", stub.lastSubmit)
	}

	stub.submit.Queued = false
	rec = serve(t, handler, http.MethodPost, "/mutations", `{"kind":"item.delete","payload":{"project_id":"p1","id":"i1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("direct send status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = serve(t, handler, http.MethodPost, "/mutations", `{"kind":"item.delete","extra":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	rec = serve(t, handler, http.MethodPost, "/mutations", `{"kind":"item.delete"}{"kind":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("trailing content status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

// TestHandlerDrainAndConnectivity verifies drain force parsing and connectivity signals.
func TestHandlerDrainAndConnectivity(t *testing.T) {
	stub := &stubSyncService{
		run:  common.DrainRun{ID: "d1", Outcome: "idle", Applied: []string{"r1"}},
		conn: common.ConnectivityResult{Online: true, Changed: true},
	}
	handler := NewHandler(stub)

	rec := serve(t, handler, http.MethodPost, "/drain", "")
	if rec.Code != http.StatusOK || stub.lastDrain.Force {
		t.Fatalf("drain status = %d force = %v", rec.Code, stub.lastDrain.Force)
	}
	rec = serve(t, handler, http.MethodPost, "/drain?force=true", "")
	if rec.Code != http.StatusOK || !stub.lastDrain.Force {
		t.Fatalf("forced drain status = %d force = %v", rec.Code, stub.lastDrain.Force)
	}
	rec = serve(t, handler, http.MethodPost, "/drain", `{"force":true}`)
	if rec.Code != http.StatusOK || !stub.lastDrain.Force {
		t.Fatalf("body force drain status = %d force = %v", rec.Code, stub.lastDrain.Force)
	}
	rec = serve(t, handler, http.MethodPost, "/drain?force=maybe", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad force status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = serve(t, handler, http.MethodPost, "/connectivity", `{"online":true,"source":"browser"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("connectivity status = %d", rec.Code)
	}
	if !stub.lastConn.Online || stub.lastConn.Source != "browser" {
		t.Fatalf("unexpected connectivity request %#v", stub.lastConn)
	}
	got := decodeResponse[common.ConnectivityResult](t, rec)
	if !got.Changed {
		t.Fatalf("unexpected connectivity result %#v", got)
	}
}

// TestHandlerProjectAndHistory verifies path and query parsing.
func TestHandlerProjectAndHistory(t *testing.T) {
	stub := &stubSyncService{
		view:    common.ProjectView{ProjectID: "p1", Stale: true},
		history: []common.DrainRun{{ID: "d2"}, {ID: "d1"}},
	}
	handler := NewHandler(stub)

	rec := serve(t, handler, http.MethodGet, "/projects/p1", "")
	if rec.Code != http.StatusOK || stub.lastProject != "p1" {
		t.Fatalf("project status = %d id = %q", rec.Code, stub.lastProject)
	}
	if view := decodeResponse[common.ProjectView](t, rec); !view.Stale {
		t.Fatalf("unexpected view %#v", view)
	}

	rec = serve(t, handler, http.MethodGet, "/history?limit=5", "")
	if rec.Code != http.StatusOK || stub.lastLimit != 5 {
		t.Fatalf("history status = %d limit = %d", rec.Code, stub.lastLimit)
	}
	rec = serve(t, handler, http.MethodGet, "/history?limit=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	rec = serve(t, handler, http.MethodGet, "/projects/p1/rooms", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("nested project path status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestHandlerCachedProjectsAndForget verifies the offline cache listing and removal routes.
func TestHandlerCachedProjectsAndForget(t *testing.T) {
	stub := &stubSyncService{
		cached: []common.CachedProject{{ProjectID: "p1", Name: "Hotel", Pending: 2}},
	}
	handler := NewHandler(stub)

	rec := serve(t, handler, http.MethodGet, "/projects", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("projects status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeResponse[struct {
		Projects []common.CachedProject `json:"projects"`
	}](t, rec)
	if len(body.Projects) != 1 || body.Projects[0].ProjectID != "p1" || body.Projects[0].Pending != 2 {
		t.Fatalf("unexpected projects %#v", body.Projects)
	}

	rec = serve(t, handler, http.MethodDelete, "/projects/p1", "")
	if rec.Code != http.StatusNoContent || stub.lastForget != "p1" {
		t.Fatalf("forget status = %d id = %q", rec.Code, stub.lastForget)
	}
	rec = serve(t, handler, http.MethodPost, "/projects/p1", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, DELETE" {
		t.Fatalf("project method status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(t, handler, http.MethodDelete, "/projects", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("projects delete status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}

	missing := NewHandler(&stubSyncService{err: errors.Join(common.ErrNotFound, errors.New("no snapshot"))})
	rec = serve(t, missing, http.MethodDelete, "/projects/p9", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("forget missing status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// TestHandlerErrorMapping verifies structured status mapping for service errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid", err: errors.Join(common.ErrInvalidRequest, errors.New("bad")), wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("missing")), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "queue full", err: common.ErrQueueFull, wantStatus: http.StatusConflict, wantCode: "queue_full"},
		{name: "backoff", err: common.ErrBackoffActive, wantStatus: http.StatusTooManyRequests, wantCode: "backoff_active"},
		{name: "rejected", err: common.ErrRemoteRejected, wantStatus: http.StatusUnprocessableEntity, wantCode: "remote_rejected"},
		{name: "unavailable", err: common.ErrRemoteUnavailable, wantStatus: http.StatusBadGateway, wantCode: "remote_unavailable"},
		{name: "internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(&stubSyncService{err: tt.err})
			rec := serve(t, handler, http.MethodPost, "/drain", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			envelope := decodeResponse[ErrorEnvelope](t, rec)
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("error.code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
		})
	}
}

// TestHandlerRoutingFailures verifies 404, 405, and missing service handling.
func TestHandlerRoutingFailures(t *testing.T) {
	handler := NewHandler(&stubSyncService{})

	rec := serve(t, handler, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = serve(t, handler, http.MethodDelete, "/status", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("method status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(t, NewHandler(nil), http.MethodGet, "/status", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil service status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
