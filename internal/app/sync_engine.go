package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/hylla/atelier/internal/domain"
)

// EngineState is the live state of the sync engine.
type EngineState string

// EngineState values.
const (
	EngineIdle     EngineState = "idle"
	EngineDraining EngineState = "draining"
)

// DrainOutcome is how one drain cycle ended.
type DrainOutcome string

// DrainOutcome values.
const (
	OutcomeIdle        DrainOutcome = "idle"
	OutcomeDrainFailed DrainOutcome = "drain_failed"
	OutcomeCanceled    DrainOutcome = "canceled"
)

// DrainTrigger names what started a drain.
type DrainTrigger string

// DrainTrigger values.
const (
	TriggerManual    DrainTrigger = "manual"
	TriggerRetry     DrainTrigger = "retry"
	TriggerReconnect DrainTrigger = "reconnect"
	TriggerEnqueue   DrainTrigger = "enqueue"
	TriggerStartup   DrainTrigger = "startup"
	TriggerBackoff   DrainTrigger = "backoff"
)

// DrainReport summarizes one drain cycle.
type DrainReport struct {
	ID             string       `json:"id"`
	Trigger        DrainTrigger `json:"trigger"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at"`
	Applied        []string     `json:"applied"`
	Remaining      int          `json:"remaining"`
	Outcome        DrainOutcome `json:"outcome"`
	StoppedOffline bool         `json:"stopped_offline,omitempty"`
	FailedRecordID string       `json:"failed_record_id,omitempty"`
	FailureKind    string       `json:"failure_kind,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// Failed reports whether the cycle stopped on a record failure.
func (r DrainReport) Failed() bool {
	return r.Outcome == OutcomeDrainFailed
}

// SyncConfig holds sync engine tuning.
type SyncConfig struct {
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// BackoffJitter is the randomization factor in [0, 1). Negative disables jitter.
	BackoffJitter float64
	Logger        Logger
}

// Default backoff bounds.
const (
	DefaultBackoffInitial = 2 * time.Second
	DefaultBackoffMax     = 5 * time.Minute
)

// SyncEngine drains the queue against the remote in strict FIFO order.
//
// At most one drain runs per engine; concurrent callers share its report.
// A failed record blocks everything behind it until a later drain applies it.
type SyncEngine struct {
	queue   *Queue
	remote  RemoteClient
	monitor *Monitor
	idGen   IDGenerator
	clock   Clock
	logger  Logger

	group singleflight.Group

	mu          sync.Mutex
	state       EngineState
	backoff     *backoff.ExponentialBackOff
	nextAttempt time.Time
	last        *DrainReport
	nextObs     int
	observers   map[int]func(DrainReport)
}

// NewSyncEngine constructs an idle engine.
func NewSyncEngine(queue *Queue, remote RemoteClient, monitor *Monitor, idGen IDGenerator, clock Clock, cfg SyncConfig) *SyncEngine {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultBackoffInitial
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffInitial
	b.MaxInterval = cfg.BackoffMax
	switch {
	case cfg.BackoffJitter < 0:
		b.RandomizationFactor = 0
	case cfg.BackoffJitter > 0 && cfg.BackoffJitter < 1:
		b.RandomizationFactor = cfg.BackoffJitter
	}
	b.Reset()

	return &SyncEngine{
		queue:     queue,
		remote:    remote,
		monitor:   monitor,
		idGen:     idGen,
		clock:     clock,
		logger:    cfg.Logger,
		state:     EngineIdle,
		backoff:   b,
		observers: map[int]func(DrainReport){},
	}
}

// State returns the live engine state.
func (e *SyncEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// NextAttempt returns when the backoff window closes. Zero means no window is active.
func (e *SyncEngine) NextAttempt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextAttempt
}

// LastReport returns the most recent drain report, when one exists.
func (e *SyncEngine) LastReport() (DrainReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return DrainReport{}, false
	}
	return cloneReport(*e.last), true
}

// Observe registers fn for every finished drain cycle and returns its unsubscribe func.
func (e *SyncEngine) Observe(fn func(DrainReport)) func() {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.observers, id)
		e.mu.Unlock()
	}
}

// Drain replays pending records while online. It returns ErrBackoffActive without
// contacting the remote when a previous failure's backoff window is still open.
func (e *SyncEngine) Drain(ctx context.Context, trigger DrainTrigger) (DrainReport, error) {
	if e.queue.Size() == 0 {
		return DrainReport{Trigger: trigger, Outcome: OutcomeIdle, Applied: []string{}}, nil
	}
	if wait := e.backoffRemaining(); wait > 0 {
		return DrainReport{}, fmt.Errorf("%w: next attempt in %s", ErrBackoffActive, wait.Round(time.Millisecond))
	}
	return e.run(ctx, trigger)
}

// Retry drains immediately, ignoring any open backoff window.
func (e *SyncEngine) Retry(ctx context.Context) (DrainReport, error) {
	return e.run(ctx, TriggerRetry)
}

func (e *SyncEngine) backoffRemaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nextAttempt.IsZero() {
		return 0
	}
	return e.nextAttempt.Sub(e.clock())
}

// run joins or starts the single in-flight drain. The drain runs under the
// starting caller's ctx, so a joiner whose own ctx is still live starts a new
// cycle when the shared one was canceled.
func (e *SyncEngine) run(ctx context.Context, trigger DrainTrigger) (DrainReport, error) {
	for {
		v, err, shared := e.group.Do("drain", func() (any, error) {
			return e.drainOnce(ctx, trigger)
		})
		report, _ := v.(DrainReport)
		if !shared {
			return cloneReport(report), err
		}
		e.logger.Debug("joined in-flight drain", "trigger", trigger, "drain_id", report.ID)
		if report.Outcome == OutcomeCanceled && ctx.Err() == nil {
			e.logger.Debug("joined drain was canceled by its caller, draining again", "trigger", trigger, "drain_id", report.ID)
			continue
		}
		return cloneReport(report), err
	}
}

func (e *SyncEngine) drainOnce(ctx context.Context, trigger DrainTrigger) (DrainReport, error) {
	e.setState(EngineDraining)
	report := DrainReport{
		ID:        e.idGen(),
		Trigger:   trigger,
		StartedAt: e.clock().UTC(),
		Applied:   []string{},
		Outcome:   OutcomeIdle,
	}
	e.logger.Info("drain started", "drain_id", report.ID, "trigger", trigger, "pending", e.queue.Size())

	drainErr := e.replay(ctx, &report)

	report.Remaining = e.queue.Size()
	report.FinishedAt = e.clock().UTC()
	switch {
	case drainErr == nil:
	case errors.Is(drainErr, context.Canceled), errors.Is(drainErr, context.DeadlineExceeded):
		report.Outcome = OutcomeCanceled
		report.Error = drainErr.Error()
	default:
		report.Outcome = OutcomeDrainFailed
		report.FailureKind = FailureKind(drainErr)
		report.Error = drainErr.Error()
	}

	observers := e.finish(report)
	if report.Failed() {
		e.logger.Warn("drain failed", "drain_id", report.ID, "record_id", report.FailedRecordID, "kind", report.FailureKind, "applied", len(report.Applied), "remaining", report.Remaining, "err", drainErr)
	} else {
		e.logger.Info("drain finished", "drain_id", report.ID, "outcome", report.Outcome, "applied", len(report.Applied), "remaining", report.Remaining)
	}
	for _, fn := range observers {
		fn(cloneReport(report))
	}
	return report, drainErr
}

// replay applies records head first and stops at the first failure.
func (e *SyncEngine) replay(ctx context.Context, report *DrainReport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.monitor.Online() {
			report.StoppedOffline = true
			return nil
		}
		rec, err := e.queue.Peek()
		if errors.Is(err, ErrQueueEmpty) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := e.remote.Apply(ctx, rec); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			report.FailedRecordID = rec.ID
			if !errors.Is(err, ErrRemoteApplyFailed) && !errors.Is(err, ErrRemoteApplyRejected) {
				err = fmt.Errorf("%w: %v", ErrRemoteApplyFailed, err)
			}
			return fmt.Errorf("apply %s %s: %w", rec.Kind(), rec.ID, err)
		}

		head, err := e.queue.Dequeue(ctx)
		switch {
		case errors.Is(err, ErrStorageWriteFailed):
			e.logger.Warn("queue persist failed after apply", "record_id", rec.ID, "err", err)
		case err != nil:
			return err
		}
		if head.ID != rec.ID {
			return fmt.Errorf("queue head changed during drain: applied %s, removed %s", rec.ID, head.ID)
		}
		report.Applied = append(report.Applied, rec.ID)
		e.logger.Debug("record applied", "record_id", rec.ID, "kind", rec.Kind())
	}
}

func (e *SyncEngine) setState(state EngineState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// finish updates backoff and last report, returns the engine to idle, and snapshots observers.
func (e *SyncEngine) finish(report DrainReport) []func(DrainReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch report.Outcome {
	case OutcomeDrainFailed:
		e.nextAttempt = e.clock().Add(e.backoff.NextBackOff())
	case OutcomeIdle:
		e.backoff.Reset()
		e.nextAttempt = time.Time{}
	}
	e.state = EngineIdle
	last := cloneReport(report)
	e.last = &last
	out := make([]func(DrainReport), 0, len(e.observers))
	for _, fn := range e.observers {
		out = append(out, fn)
	}
	return out
}

func cloneReport(r DrainReport) DrainReport {
	r.Applied = append([]string(nil), r.Applied...)
	if r.Applied == nil {
		r.Applied = []string{}
	}
	return r
}

// pendingIDs lists record ids in order.
func pendingIDs(records []domain.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ID)
	}
	return out
}
