package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hylla/atelier/internal/app"
)

type scriptedPinger struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedPinger) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedPinger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestProbeCheckDrivesMonitor(t *testing.T) {
	down := errors.New("connection refused")
	pinger := &scriptedPinger{errs: []error{down, down, nil}}
	monitor := app.NewMonitor(true, nil)
	var reconnects int
	monitor.Subscribe(func(app.Transition) { reconnects++ })

	probe, err := NewProbe(pinger, monitor, Options{FailureThreshold: 2})
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}

	if res := probe.Check(context.Background()); res.Online || res.ConsecutiveFailures != 1 {
		t.Fatalf("unexpected first result %#v", res)
	}
	if !monitor.Online() {
		t.Fatal("single failure below threshold must not flip offline")
	}
	probe.Check(context.Background())
	if monitor.Online() {
		t.Fatal("expected offline after reaching failure threshold")
	}
	if res := probe.Check(context.Background()); !res.Online || res.ConsecutiveFailures != 0 {
		t.Fatalf("unexpected recovery result %#v", res)
	}
	if !monitor.Online() || reconnects != 1 {
		t.Fatalf("expected one reconnect, online=%v reconnects=%d", monitor.Online(), reconnects)
	}
	if state := monitor.State(); state.Source != "probe" {
		t.Fatalf("monitor source = %q, want probe", state.Source)
	}
	if probe.Last().Err != "" {
		t.Fatalf("expected last result to be healthy, got %#v", probe.Last())
	}
}

func TestProbeScheduleValidation(t *testing.T) {
	monitor := app.NewMonitor(false, nil)
	if _, err := NewProbe(&scriptedPinger{}, monitor, Options{Schedule: "every now and then"}); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if _, err := NewProbe(nil, monitor, Options{}); err == nil {
		t.Fatal("expected missing pinger error")
	}
	probe, err := NewProbe(&scriptedPinger{}, monitor, Options{Schedule: "*/5 * * * *"})
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	from := time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC)
	if next := probe.Next(from); !next.Equal(time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)) {
		t.Fatalf("Next() = %v", next)
	}
	def, err := NewProbe(&scriptedPinger{}, monitor, Options{})
	if err != nil {
		t.Fatalf("NewProbe() default error = %v", err)
	}
	if def.Schedule() != DefaultSchedule {
		t.Fatalf("Schedule() = %q, want %q", def.Schedule(), DefaultSchedule)
	}
}

func TestProbeStartChecksImmediatelyAndStops(t *testing.T) {
	pinger := &scriptedPinger{}
	monitor := app.NewMonitor(false, nil)
	probe, err := NewProbe(pinger, monitor, Options{Schedule: "@every 1h"})
	if err != nil {
		t.Fatalf("NewProbe() error = %v", err)
	}
	probe.Start(context.Background())
	probe.Start(context.Background())
	defer probe.Stop()

	if pinger.callCount() != 1 {
		t.Fatalf("expected one immediate check, got %d", pinger.callCount())
	}
	if !monitor.Online() {
		t.Fatal("expected monitor online after healthy check")
	}
	probe.Stop()
	probe.Stop()
}
