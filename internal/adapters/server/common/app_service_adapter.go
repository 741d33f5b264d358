package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/atelier/internal/app"
	"github.com/hylla/atelier/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// SyncStatus returns the current offline manager state.
func (a *AppServiceAdapter) SyncStatus(context.Context) (SyncStatus, error) {
	if a == nil || a.service == nil {
		return SyncStatus{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	return convertStatus(a.service.Status()), nil
}

// ListPending lists queued records in replay order.
func (a *AppServiceAdapter) ListPending(context.Context) ([]PendingRecord, error) {
	if a == nil || a.service == nil {
		return nil, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	records := a.service.Pending()
	out := make([]PendingRecord, 0, len(records))
	for _, rec := range records {
		pr, err := convertRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, nil
}

// SubmitMutation decodes the envelope and routes it through the offline manager.
func (a *AppServiceAdapter) SubmitMutation(ctx context.Context, in SubmitMutationRequest) (SubmitMutationResult, error) {
	if a == nil || a.service == nil {
		return SubmitMutationResult{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	if strings.TrimSpace(in.Kind) == "" {
		return SubmitMutationResult{}, fmt.Errorf("kind is required: %w", ErrInvalidRequest)
	}
	mutation, err := domain.DecodeMutation(domain.Kind(in.Kind), in.Payload)
	if err != nil {
		return SubmitMutationResult{}, mapAppError("submit mutation", err)
	}

	res, err := a.service.Submit(ctx, mutation)
	var warning string
	if err != nil {
		if !errors.Is(err, app.ErrStorageWriteFailed) || !res.Queued {
			return SubmitMutationResult{}, mapAppError("submit mutation", err)
		}
		warning = "queued in memory only: " + err.Error()
	}
	record, err := convertRecord(res.Record)
	if err != nil {
		return SubmitMutationResult{}, err
	}
	out := SubmitMutationResult{Record: record, Queued: res.Queued, Warning: warning}
	if res.Ack != nil {
		out.RemoteID = res.Ack.RemoteID
	}
	return out, nil
}

// Drain runs one drain cycle. A cycle that stopped on a failed record is
// reported through DrainRun, not as an error.
func (a *AppServiceAdapter) Drain(ctx context.Context, in DrainRequest) (DrainRun, error) {
	if a == nil || a.service == nil {
		return DrainRun{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	var (
		report app.DrainReport
		err    error
	)
	if in.Force {
		report, err = a.service.Retry(ctx)
	} else {
		report, err = a.service.Drain(ctx)
	}
	if err != nil && report.Outcome != app.OutcomeDrainFailed {
		return DrainRun{}, mapAppError("drain", err)
	}
	return convertReport(report), nil
}

// SetConnectivity forwards an explicit online/offline signal.
func (a *AppServiceAdapter) SetConnectivity(_ context.Context, in SetConnectivityRequest) (ConnectivityResult, error) {
	if a == nil || a.service == nil {
		return ConnectivityResult{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "client"
	}
	changed := a.service.SetOnline(in.Online, source)
	return ConnectivityResult{
		Online:  a.service.Monitor().Online(),
		Changed: changed,
		Pending: a.service.Queue().Size(),
	}, nil
}

// LoadProject returns fresh or cached project state with pending changes overlaid.
func (a *AppServiceAdapter) LoadProject(ctx context.Context, projectID string) (ProjectView, error) {
	if a == nil || a.service == nil {
		return ProjectView{}, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ProjectView{}, fmt.Errorf("project_id is required: %w", ErrInvalidRequest)
	}
	view, err := a.service.LoadProject(ctx, projectID)
	if err != nil {
		return ProjectView{}, mapAppError("load project", err)
	}
	return ProjectView{
		ProjectID:      projectID,
		Stale:          view.Stale,
		FetchedAt:      view.Snapshot.FetchedAt,
		State:          view.State,
		Pending:        append([]string{}, view.Pending...),
		TotalCostCents: view.State.TotalCostCents(),
	}, nil
}

// DrainHistory lists recent drain cycles, newest first.
func (a *AppServiceAdapter) DrainHistory(ctx context.Context, limit int) ([]DrainRun, error) {
	if a == nil || a.service == nil {
		return nil, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	reports, err := a.service.DrainHistory(ctx, limit)
	if err != nil {
		return nil, mapAppError("drain history", err)
	}
	out := make([]DrainRun, 0, len(reports))
	for _, report := range reports {
		out = append(out, convertReport(report))
	}
	return out, nil
}

// ListCachedProjects lists projects with an offline snapshot.
func (a *AppServiceAdapter) ListCachedProjects(ctx context.Context) ([]CachedProject, error) {
	if a == nil || a.service == nil {
		return nil, fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	cached, err := a.service.CachedProjects(ctx)
	if err != nil {
		return nil, mapAppError("list cached projects", err)
	}
	out := make([]CachedProject, 0, len(cached))
	for _, p := range cached {
		out = append(out, CachedProject(p))
	}
	return out, nil
}

// ForgetProject drops one project's offline snapshot.
func (a *AppServiceAdapter) ForgetProject(ctx context.Context, projectID string) error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project_id is required: %w", ErrInvalidRequest)
	}
	if err := a.service.ForgetProject(ctx, projectID); err != nil {
		return mapAppError("forget project", err)
	}
	return nil
}

// convertRecord maps one queue record into its transport form.
func convertRecord(rec domain.Record) (PendingRecord, error) {
	payload, err := domain.EncodeMutation(rec.Mutation)
	if err != nil {
		return PendingRecord{}, fmt.Errorf("encode record %q: %w", rec.ID, err)
	}
	return PendingRecord{
		ID:         rec.ID,
		Kind:       string(rec.Kind()),
		ProjectID:  rec.ProjectID(),
		EnqueuedAt: rec.EnqueuedAt,
		Payload:    payload,
	}, nil
}

// convertReport maps one app drain report into its transport form.
func convertReport(r app.DrainReport) DrainRun {
	applied := append([]string{}, r.Applied...)
	return DrainRun{
		ID:             r.ID,
		Trigger:        string(r.Trigger),
		Outcome:        string(r.Outcome),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Applied:        applied,
		Remaining:      r.Remaining,
		StoppedOffline: r.StoppedOffline,
		FailedRecordID: r.FailedRecordID,
		FailureKind:    r.FailureKind,
		Error:          r.Error,
	}
}

// convertStatus maps app status into its transport form.
func convertStatus(s app.Status) SyncStatus {
	out := SyncStatus{
		Online:       s.Connectivity.Online,
		OnlineSince:  s.Connectivity.Since,
		Source:       s.Connectivity.Source,
		EngineState:  string(s.EngineState),
		Pending:      s.Pending,
		MaxPending:   s.MaxPending,
		Dirty:        s.Dirty,
		BackoffUntil: s.BackoffUntil,
	}
	if s.LastDrain != nil {
		last := convertReport(*s.LastDrain)
		out.LastDrain = &last
	}
	return out
}

// mapAppError maps app and domain errors onto transport-facing sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrQueueFull):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrQueueFull, err))
	case errors.Is(err, app.ErrBackoffActive):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrBackoffActive, err))
	case errors.Is(err, app.ErrRemoteApplyRejected):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRemoteRejected, err))
	case errors.Is(err, app.ErrRemoteApplyFailed):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRemoteUnavailable, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidCost),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrEmptyPatch),
		errors.Is(err, app.ErrInvalidLimit):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
