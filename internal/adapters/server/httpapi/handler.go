// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/atelier/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	sync common.SyncService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the sync service.
func NewHandler(sync common.SyncService) *Handler {
	return &Handler{sync: sync}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "sync service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch path {
	case "status":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleStatus(w, r)
	case "queue":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleQueue(w, r)
	case "mutations":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleSubmit(w, r)
	case "drain":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleDrain(w, r)
	case "connectivity":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleConnectivity(w, r)
	case "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleHistory(w, r)
	case "projects":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleCachedProjects(w, r)
	default:
		projectID, ok := resolveProjectID(path)
		if !ok {
			writeJSONError(w, http.StatusNotFound, APIError{
				Code:    "not_found",
				Message: "endpoint not found",
			})
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleProject(w, r, projectID)
		case http.MethodDelete:
			h.handleForgetProject(w, r, projectID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	}
}

// handleStatus serves GET `/status`.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.sync.SyncStatus(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleQueue serves GET `/queue`.
func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	records, err := h.sync.ListPending(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"size":    len(records),
	})
}

// handleSubmit serves POST `/mutations`.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req common.SubmitMutationRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	res, err := h.sync.SubmitMutation(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	statusCode := http.StatusOK
	if res.Queued {
		statusCode = http.StatusAccepted
	}
	writeJSON(w, statusCode, res)
}

// handleDrain serves POST `/drain`.
func (h *Handler) handleDrain(w http.ResponseWriter, r *http.Request) {
	var req common.DrainRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if force := strings.TrimSpace(r.URL.Query().Get("force")); force != "" {
		parsed, err := strconv.ParseBool(force)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "force must be a boolean",
			})
			return
		}
		req.Force = parsed
	}
	run, err := h.sync.Drain(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleConnectivity serves POST `/connectivity`.
func (h *Handler) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req common.SetConnectivityRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	res, err := h.sync.SetConnectivity(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleProject serves GET `/projects/{id}`.
func (h *Handler) handleProject(w http.ResponseWriter, r *http.Request, projectID string) {
	view, err := h.sync.LoadProject(r.Context(), projectID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCachedProjects serves GET `/projects`.
func (h *Handler) handleCachedProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.sync.ListCachedProjects(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
	})
}

// handleForgetProject serves DELETE `/projects/{id}`.
func (h *Handler) handleForgetProject(w http.ResponseWriter, r *http.Request, projectID string) {
	if err := h.sync.ForgetProject(r.Context(), projectID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory serves GET `/history`.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	runs, err := h.sync.DrainHistory(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
	})
}

// resolveProjectID parses `projects/{id}` and returns `{id}`.
func resolveProjectID(path string) (string, bool) {
	const prefix = "projects/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(path, prefix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
			Hint:    "Fetch the project once while online to seed the offline cache.",
		})
	case errors.Is(err, common.ErrQueueFull):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "queue_full",
			Message: err.Error(),
			Hint:    "Drain the queue before submitting more offline changes.",
		})
	case errors.Is(err, common.ErrBackoffActive):
		writeJSONError(w, http.StatusTooManyRequests, APIError{
			Code:    "backoff_active",
			Message: err.Error(),
			Hint:    "Retry later or POST /drain with force=true.",
		})
	case errors.Is(err, common.ErrRemoteRejected):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "remote_rejected",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrRemoteUnavailable):
		writeJSONError(w, http.StatusBadGateway, APIError{
			Code:    "remote_unavailable",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
