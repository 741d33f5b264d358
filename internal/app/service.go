package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hylla/atelier/internal/domain"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	MaxPending     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	BackoffJitter  float64
	DrainOnStart   bool
	Logger         Logger
}

// Stores groups the persistence ports the service writes through.
type Stores struct {
	Queue     QueueStore
	Snapshots SnapshotStore
	History   DrainHistoryStore
}

// Service is the offline manager: it routes submissions, owns the queue, and runs drains.
type Service struct {
	queue     *Queue
	engine    *SyncEngine
	monitor   *Monitor
	remote    RemoteClient
	snapshots SnapshotStore
	history   DrainHistoryStore
	idGen     IDGenerator
	clock     Clock
	logger    Logger
	cfg       ServiceConfig

	submitMu sync.Mutex

	loadMu sync.Mutex
	loaded bool

	runMu       sync.Mutex
	runCtx      context.Context
	cancel      context.CancelFunc
	unsubscribe []func()
	retryTimer  *time.Timer
	wg          sync.WaitGroup
}

// NewService constructs a new value for this package.
func NewService(stores Stores, remote RemoteClient, monitor *Monitor, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if monitor == nil {
		monitor = NewMonitor(false, clock)
	}
	queue := NewQueue(stores.Queue, idGen, clock, cfg.MaxPending)
	engine := NewSyncEngine(queue, remote, monitor, idGen, clock, SyncConfig{
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
		BackoffJitter:  cfg.BackoffJitter,
		Logger:         cfg.Logger,
	})
	s := &Service{
		queue:     queue,
		engine:    engine,
		monitor:   monitor,
		remote:    remote,
		snapshots: stores.Snapshots,
		history:   stores.History,
		idGen:     idGen,
		clock:     clock,
		logger:    cfg.Logger,
		cfg:       cfg,
	}
	engine.Observe(s.recordDrain)
	return s
}

// Queue returns the underlying persisted queue.
func (s *Service) Queue() *Queue { return s.queue }

// Engine returns the underlying sync engine.
func (s *Service) Engine() *SyncEngine { return s.engine }

// Monitor returns the connectivity monitor.
func (s *Service) Monitor() *Monitor { return s.monitor }

// Load restores the persisted queue.
func (s *Service) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if err := s.queue.Load(ctx); err != nil {
		return err
	}
	s.loaded = true
	s.logger.Debug("pending queue loaded", "pending", s.queue.Size())
	return nil
}

// Start loads the queue unless Load already ran, then drains on every reconnect
// until ctx ends or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.loadMu.Lock()
	loaded := s.loaded
	s.loadMu.Unlock()
	if !loaded {
		if err := s.Load(ctx); err != nil {
			return err
		}
	}
	s.runMu.Lock()
	if s.cancel != nil {
		s.runMu.Unlock()
		return nil
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.unsubscribe = append(s.unsubscribe,
		s.monitor.Subscribe(func(ev Transition) {
			s.logger.Info("connectivity restored", "source", ev.Source, "pending", s.queue.Size())
			s.triggerDrain(TriggerReconnect)
		}),
		s.engine.Observe(s.scheduleRetry),
	)
	s.runMu.Unlock()

	if s.cfg.DrainOnStart && s.monitor.Online() && s.queue.Size() > 0 {
		s.triggerDrain(TriggerStartup)
	}
	return nil
}

// Stop cancels background drains, waits for them, and flushes the queue.
func (s *Service) Stop(ctx context.Context) error {
	s.runMu.Lock()
	cancel := s.cancel
	unsubscribe := s.unsubscribe
	s.cancel = nil
	s.unsubscribe = nil
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.runMu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if s.queue.Dirty() {
		return s.queue.Flush(ctx)
	}
	return nil
}

// triggerDrain runs one background drain when the service is started.
func (s *Service) triggerDrain(trigger DrainTrigger) {
	s.runMu.Lock()
	ctx := s.runCtx
	running := s.cancel != nil
	if running {
		s.wg.Add(1)
	}
	s.runMu.Unlock()
	if !running {
		return
	}
	go func() {
		defer s.wg.Done()
		if _, err := s.engine.Drain(ctx, trigger); err != nil && !errors.Is(err, ErrBackoffActive) {
			s.logger.Debug("background drain ended with error", "trigger", trigger, "err", err)
		}
	}()
}

// scheduleRetry arms one timer to drain again when a failed cycle's backoff closes.
func (s *Service) scheduleRetry(report DrainReport) {
	if !report.Failed() {
		return
	}
	wait := s.engine.NextAttempt().Sub(s.clock())
	if wait < 0 {
		wait = 0
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel == nil {
		return
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = time.AfterFunc(wait, func() {
		if s.monitor.Online() {
			s.triggerDrain(TriggerBackoff)
		}
	})
	s.logger.Debug("drain retry scheduled", "in", wait)
}

// recordDrain appends finished cycles to history.
func (s *Service) recordDrain(report DrainReport) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.AppendDrainReport(ctx, report); err != nil {
		s.logger.Warn("append drain history failed", "drain_id", report.ID, "err", err)
	}
}

// SubmitResult describes where a submitted mutation went.
type SubmitResult struct {
	Record domain.Record `json:"record"`
	Queued bool          `json:"queued"`
	Ack    *domain.Ack   `json:"ack,omitempty"`
}

// Submit sends m directly when online with an empty queue and queues it otherwise.
//
// A direct send that fails at the network level falls back to the queue under the
// same record id. A rejection is returned to the caller and nothing is queued.
func (s *Service) Submit(ctx context.Context, m domain.Mutation) (SubmitResult, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	rec, err := domain.NewRecord(s.idGen(), m, s.clock())
	if err != nil {
		return SubmitResult{}, err
	}

	if s.monitor.Online() && s.queue.Size() == 0 {
		ack, err := s.remote.Apply(ctx, rec)
		switch {
		case err == nil:
			s.logger.Debug("mutation applied directly", "record_id", rec.ID, "kind", rec.Kind())
			return SubmitResult{Record: rec, Ack: &ack}, nil
		case errors.Is(err, ErrRemoteApplyRejected):
			return SubmitResult{Record: rec}, err
		default:
			s.logger.Warn("direct send failed, queueing", "record_id", rec.ID, "err", err)
		}
	}

	queued, err := s.queue.EnqueueRecord(ctx, rec)
	if err != nil && !errors.Is(err, ErrStorageWriteFailed) {
		return SubmitResult{}, err
	}
	s.logger.Info("mutation queued", "record_id", queued.ID, "kind", queued.Kind(), "pending", s.queue.Size())
	if s.monitor.Online() {
		s.triggerDrain(TriggerEnqueue)
	}
	return SubmitResult{Record: queued, Queued: true}, err
}

// Drain runs one drain cycle, honoring backoff.
func (s *Service) Drain(ctx context.Context) (DrainReport, error) {
	return s.engine.Drain(ctx, TriggerManual)
}

// Retry runs one drain cycle immediately.
func (s *Service) Retry(ctx context.Context) (DrainReport, error) {
	return s.engine.Retry(ctx)
}

// Pending returns copies of every queued record in replay order.
func (s *Service) Pending() []domain.Record {
	return s.queue.Pending()
}

// SetOnline forwards an explicit connectivity signal.
func (s *Service) SetOnline(online bool, source string) bool {
	if source == "" {
		source = "manual"
	}
	changed := s.monitor.SetOnline(online, source)
	if changed {
		s.logger.Info("connectivity changed", "online", online, "source", source)
	}
	return changed
}

// Status is a point-in-time view of the offline manager.
type Status struct {
	Connectivity ConnectivityState `json:"connectivity"`
	EngineState  EngineState       `json:"engine_state"`
	Pending      int               `json:"pending"`
	MaxPending   int               `json:"max_pending"`
	Dirty        bool              `json:"dirty"`
	BackoffUntil *time.Time        `json:"backoff_until,omitempty"`
	LastDrain    *DrainReport      `json:"last_drain,omitempty"`
}

// Status returns the current offline manager state.
func (s *Service) Status() Status {
	out := Status{
		Connectivity: s.monitor.State(),
		EngineState:  s.engine.State(),
		Pending:      s.queue.Size(),
		MaxPending:   s.queue.Capacity(),
		Dirty:        s.queue.Dirty(),
	}
	if next := s.engine.NextAttempt(); !next.IsZero() && next.After(s.clock()) {
		out.BackoffUntil = &next
	}
	if last, ok := s.engine.LastReport(); ok {
		out.LastDrain = &last
	}
	return out
}

// ProjectView is a project snapshot plus the locally pending changes for it.
type ProjectView struct {
	Snapshot domain.ProjectSnapshot `json:"snapshot"`
	State    domain.ProjectState    `json:"state"`
	Stale    bool                   `json:"stale"`
	Pending  []string               `json:"pending"`
}

// LoadProject fetches fresh state when online and falls back to the cached snapshot.
func (s *Service) LoadProject(ctx context.Context, projectID string) (ProjectView, error) {
	if projectID == "" {
		return ProjectView{}, domain.ErrInvalidID
	}
	var fetchErr error
	if s.monitor.Online() {
		state, err := s.remote.FetchProject(ctx, projectID)
		if err == nil {
			snap := domain.ProjectSnapshot{State: state, FetchedAt: s.clock().UTC()}
			if s.snapshots != nil {
				if err := s.snapshots.PutSnapshot(ctx, snap); err != nil {
					s.logger.Warn("cache project snapshot failed", "project_id", projectID, "err", err)
				}
			}
			return s.projectView(snap, false), nil
		}
		if errors.Is(err, ErrNotFound) {
			return ProjectView{}, err
		}
		fetchErr = err
		s.logger.Warn("fetch project failed, serving cache", "project_id", projectID, "err", err)
	}

	if s.snapshots == nil {
		return ProjectView{}, ErrNotFound
	}
	snap, err := s.snapshots.GetSnapshot(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) && fetchErr != nil {
			return ProjectView{}, fmt.Errorf("%w: no cached snapshot for %q (fetch: %v)", ErrNotFound, projectID, fetchErr)
		}
		return ProjectView{}, err
	}
	return s.projectView(snap, true), nil
}

func (s *Service) projectView(snap domain.ProjectSnapshot, stale bool) ProjectView {
	var mine []domain.Record
	for _, rec := range s.queue.Pending() {
		if rec.ProjectID() == snap.State.ProjectID {
			mine = append(mine, rec)
		}
	}
	return ProjectView{
		Snapshot: snap,
		State:    snap.State.WithPending(mine),
		Stale:    stale,
		Pending:  pendingIDs(mine),
	}
}

// DrainHistory lists recent drain reports, newest first.
func (s *Service) DrainHistory(ctx context.Context, limit int) ([]DrainReport, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	if limit == 0 {
		limit = 20
	}
	if s.history == nil {
		return []DrainReport{}, nil
	}
	return s.history.ListDrainReports(ctx, limit)
}

// CachedProject summarizes one project held in the offline cache.
type CachedProject struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	FetchedAt time.Time `json:"fetched_at"`
	Pending   int       `json:"pending"`
}

// CachedProjects lists every project with a cached snapshot, sorted by id.
func (s *Service) CachedProjects(ctx context.Context) ([]CachedProject, error) {
	if s.snapshots == nil {
		return []CachedProject{}, nil
	}
	ids, err := s.snapshots.ListSnapshotIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached projects: %w", err)
	}
	pendingByProject := map[string]int{}
	for _, rec := range s.queue.Pending() {
		pendingByProject[rec.ProjectID()]++
	}
	out := make([]CachedProject, 0, len(ids))
	for _, id := range ids {
		snap, err := s.snapshots.GetSnapshot(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read cached project %q: %w", id, err)
		}
		out = append(out, CachedProject{
			ProjectID: id,
			Name:      snap.State.Name,
			FetchedAt: snap.FetchedAt,
			Pending:   pendingByProject[id],
		})
	}
	return out, nil
}

// ForgetProject drops a project's cached snapshot. Queued records for it stay queued.
func (s *Service) ForgetProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return domain.ErrInvalidID
	}
	if s.snapshots == nil {
		return ErrNotFound
	}
	if err := s.snapshots.DeleteSnapshot(ctx, projectID); err != nil {
		return err
	}
	s.logger.Info("cached project dropped", "project_id", projectID)
	return nil
}
