// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hylla/atelier/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrQueueFull reports that the offline queue reached its bound.
var ErrQueueFull = errors.New("queue full")

// ErrBackoffActive reports a drain deferred by backoff.
var ErrBackoffActive = errors.New("backoff active")

// ErrRemoteRejected reports that the remote declined a mutation.
var ErrRemoteRejected = errors.New("remote rejected mutation")

// ErrRemoteUnavailable reports network or remote-side failure.
var ErrRemoteUnavailable = errors.New("remote unavailable")

// ErrServiceUnavailable reports a missing backing service.
var ErrServiceUnavailable = errors.New("service unavailable")

// PendingRecord is one queued mutation as transports expose it.
type PendingRecord struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	ProjectID  string          `json:"project_id"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

// DrainRun summarizes one drain cycle.
type DrainRun struct {
	ID             string    `json:"id"`
	Trigger        string    `json:"trigger"`
	Outcome        string    `json:"outcome"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Applied        []string  `json:"applied"`
	Remaining      int       `json:"remaining"`
	StoppedOffline bool      `json:"stopped_offline,omitempty"`
	FailedRecordID string    `json:"failed_record_id,omitempty"`
	FailureKind    string    `json:"failure_kind,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// SyncStatus is the summary-first offline manager state.
type SyncStatus struct {
	Online       bool       `json:"online"`
	OnlineSince  time.Time  `json:"online_since"`
	Source       string     `json:"source"`
	EngineState  string     `json:"engine_state"`
	Pending      int        `json:"pending"`
	MaxPending   int        `json:"max_pending"`
	Dirty        bool       `json:"dirty"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	LastDrain    *DrainRun  `json:"last_drain,omitempty"`
}

// SubmitMutationRequest carries one mutation in envelope form.
type SubmitMutationRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitMutationResult reports where a submitted mutation went.
type SubmitMutationResult struct {
	Record   PendingRecord `json:"record"`
	Queued   bool          `json:"queued"`
	RemoteID string        `json:"remote_id,omitempty"`
	Warning  string        `json:"warning,omitempty"`
}

// DrainRequest selects a normal drain or a retry that ignores backoff.
type DrainRequest struct {
	Force bool `json:"force,omitempty"`
}

// SetConnectivityRequest carries an explicit client connectivity signal.
type SetConnectivityRequest struct {
	Online bool   `json:"online"`
	Source string `json:"source,omitempty"`
}

// ConnectivityResult reports the state after a connectivity signal.
type ConnectivityResult struct {
	Online  bool `json:"online"`
	Changed bool `json:"changed"`
	Pending int  `json:"pending"`
}

// ProjectView is one project with local pending changes overlaid.
type ProjectView struct {
	ProjectID      string              `json:"project_id"`
	Stale          bool                `json:"stale"`
	FetchedAt      time.Time           `json:"fetched_at"`
	State          domain.ProjectState `json:"state"`
	Pending        []string            `json:"pending"`
	TotalCostCents int64               `json:"total_cost_cents"`
}

// CachedProject is one project available offline.
type CachedProject struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	FetchedAt time.Time `json:"fetched_at"`
	Pending   int       `json:"pending"`
}

// SyncService is the app-facing surface served over HTTP and MCP.
type SyncService interface {
	SyncStatus(context.Context) (SyncStatus, error)
	ListPending(context.Context) ([]PendingRecord, error)
	SubmitMutation(context.Context, SubmitMutationRequest) (SubmitMutationResult, error)
	Drain(context.Context, DrainRequest) (DrainRun, error)
	SetConnectivity(context.Context, SetConnectivityRequest) (ConnectivityResult, error)
	LoadProject(context.Context, string) (ProjectView, error)
	DrainHistory(context.Context, int) ([]DrainRun, error)
	ListCachedProjects(context.Context) ([]CachedProject, error)
	ForgetProject(context.Context, string) error
}
