package connectivity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hylla/atelier/internal/app"
)

// DefaultSchedule is the probe cadence when none is configured.
const DefaultSchedule = "@every 15s"

// probeSource labels signals this adapter sends.
const probeSource = "probe"

// Pinger checks remote reachability.
type Pinger interface {
	Ping(context.Context) error
}

// Sink receives connectivity signals.
type Sink interface {
	SetOnline(online bool, source string) bool
}

// Options configures a Probe.
type Options struct {
	Schedule         string
	Timeout          time.Duration
	FailureThreshold int
	Logger           app.Logger
}

// Result is the outcome of the most recent check.
type Result struct {
	At                  time.Time
	Online              bool
	Err                 string
	ConsecutiveFailures int
}

// Probe pings the remote on a cron schedule and reports online/offline to a sink.
type Probe struct {
	pinger    Pinger
	sink      Sink
	spec      string
	schedule  cron.Schedule
	timeout   time.Duration
	threshold int
	logger    app.Logger

	mu       sync.Mutex
	last     Result
	failures int
	cron     *cron.Cron
}

// NewProbe validates the schedule and constructs an idle probe.
func NewProbe(pinger Pinger, sink Sink, opts Options) (*Probe, error) {
	if pinger == nil || sink == nil {
		return nil, errors.New("probe requires a pinger and a sink")
	}
	spec := strings.TrimSpace(opts.Schedule)
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse probe schedule %q: %w", spec, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger{}
	}
	return &Probe{
		pinger:    pinger,
		sink:      sink,
		spec:      spec,
		schedule:  schedule,
		timeout:   opts.Timeout,
		threshold: opts.FailureThreshold,
		logger:    logger,
	}, nil
}

// Check pings once and forwards the result. Offline is reported only after
// FailureThreshold consecutive failures.
func (p *Probe) Check(ctx context.Context) Result {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.pinger.Ping(pingCtx)
	cancel()

	p.mu.Lock()
	if err == nil {
		p.failures = 0
	} else {
		p.failures++
	}
	res := Result{At: time.Now().UTC(), Online: err == nil, ConsecutiveFailures: p.failures}
	if err != nil {
		res.Err = err.Error()
	}
	p.last = res
	reportOffline := err != nil && p.failures >= p.threshold
	p.mu.Unlock()

	switch {
	case err == nil:
		if p.sink.SetOnline(true, probeSource) {
			p.logger.Info("probe: remote reachable")
		}
	case reportOffline:
		if p.sink.SetOnline(false, probeSource) {
			p.logger.Warn("probe: remote unreachable", "err", err, "failures", res.ConsecutiveFailures)
		}
	default:
		p.logger.Debug("probe: ping failed", "err", err, "failures", res.ConsecutiveFailures)
	}
	return res
}

// Last returns the most recent check result.
func (p *Probe) Last() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Schedule returns the normalized cron spec.
func (p *Probe) Schedule() string {
	return p.spec
}

// Next returns the next scheduled check after from.
func (p *Probe) Next(from time.Time) time.Time {
	return p.schedule.Next(from)
}

// Start runs one check immediately and then checks on schedule until Stop.
func (p *Probe) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cron != nil {
		p.mu.Unlock()
		return
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(p.schedule, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		p.Check(ctx)
	}))
	p.cron = c
	p.mu.Unlock()

	p.Check(ctx)
	c.Start()
	p.logger.Debug("probe started", "schedule", p.spec)
}

// Stop halts scheduling and waits for a running check to finish.
func (p *Probe) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

type discardLogger struct{}

func (discardLogger) Debug(any, ...any) {}
func (discardLogger) Info(any, ...any)  {}
func (discardLogger) Warn(any, ...any)  {}
func (discardLogger) Error(any, ...any) {}
