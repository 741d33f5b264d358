package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	serveradapter "github.com/hylla/atelier/internal/adapters/server"
	servercommon "github.com/hylla/atelier/internal/adapters/server/common"
	"github.com/hylla/atelier/internal/config"
	"github.com/hylla/atelier/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("ATELIER_DEV_MODE", "false")
	os.Exit(m.Run())
}

// fakeProgram stands in for the TUI program loop.
type fakeProgram struct {
	model  tea.Model
	runErr error
}

// Run returns the configured result without touching the terminal.
func (f fakeProgram) Run() (tea.Model, error) {
	return f.model, f.runErr
}

// fakeRemote records applied mutations and serves one project.
type fakeRemote struct {
	mu      sync.Mutex
	applied []string
	down    bool
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/healthz":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Path == "/projects/p1":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"project_id":"p1","name":"Hotel","rooms":[{"id":"lobby","project_id":"p1","name":"Lobby"}],"items":[]}`))
	case r.Method == http.MethodPost && r.URL.Path == "/projects/p1/items":
		f.applied = append(f.applied, r.Header.Get("Idempotency-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"id":"srv-%d"}`, len(f.applied))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRemote) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeRemote) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

// cliEnv holds temp locations for one CLI test.
type cliEnv struct {
	configPath string
	dbPath     string
}

func newCLIEnv(t *testing.T, remoteURL string) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		configPath: filepath.Join(dir, "config.toml"),
		dbPath:     filepath.Join(dir, "data", "atelier.db"),
	}
	content := fmt.Sprintf(`
[remote]
base_url = %q
timeout = "2s"

[sync]
backoff_initial = "1ms"
backoff_max = "5ms"

[logging]
level = "error"
`, remoteURL)
	if remoteURL == "" {
		content = "[logging]\nlevel = \"error\"\n"
	}
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return env
}

// exec runs one CLI invocation and returns stdout.
func (e cliEnv) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", e.configPath, "--db", e.dbPath}, args...)
	err := run(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func (e cliEnv) mustExec(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.exec(t, args...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("Unmarshal(%q) error = %v", out, err)
	}
	return v
}

func TestRunPaths(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"paths", "--app", "demo"}, &stdout, nil); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"app: demo", "dev_mode: false", "config:", "db:", "log_dir:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("paths output missing %q:\n%s", want, out)
		}
	}
}

func TestRunPathsFollowOverrides(t *testing.T) {
	env := newCLIEnv(t, "")
	out := env.mustExec(t, "paths")
	dataDir := filepath.Dir(env.dbPath)
	for _, want := range []string{
		"config: " + env.configPath,
		"data_dir: " + dataDir,
		"db: " + env.dbPath,
		"log_dir: " + filepath.Join(dataDir, "log"),
		"dev_log: false",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("paths output missing %q:\n%s", want, out)
		}
	}

	logDir := filepath.Join(t.TempDir(), "logs")
	content := fmt.Sprintf("[logging]\nlevel = \"error\"\n\n[logging.dev_file]\ndir = %q\n", logDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	out = env.mustExec(t, "--dev", "paths")
	if !strings.Contains(out, "log_dir: "+logDir) || !strings.Contains(out, "dev_log: true") {
		t.Fatalf("expected configured log dir in output:\n%s", out)
	}
}

func TestRunCreatesDevLogUnderDataDir(t *testing.T) {
	env := newCLIEnv(t, "")
	env.mustExec(t, "--dev", "--offline", "queue")

	logDir := filepath.Join(filepath.Dir(env.dbPath), "log")
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir(%q) error = %v", logDir, err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected one dev log file, got %v", entries)
	}
}

func TestRunOfflineSubmitQueueAndDrain(t *testing.T) {
	remote := &fakeRemote{}
	server := httptest.NewServer(remote)
	defer server.Close()
	env := newCLIEnv(t, server.URL)

	out := env.mustExec(t, "--offline", "submit", "item.create", `{"project_id":"p1","name":"Lamp","unit_cost_cents":12900}`)
	submitted := decodeOutput[servercommon.SubmitMutationResult](t, out)
	if !submitted.Queued || submitted.Record.Kind != "item.create" {
		t.Fatalf("unexpected offline submit %#v", submitted)
	}
	if remote.appliedCount() != 0 {
		t.Fatal("offline submit must not reach the remote")
	}

	queue := decodeOutput[struct {
		Records []servercommon.PendingRecord `json:"records"`
		Size    int                          `json:"size"`
	}](t, env.mustExec(t, "--offline", "queue"))
	if queue.Size != 1 || queue.Records[0].ID != submitted.Record.ID {
		t.Fatalf("unexpected queue after reopen %#v", queue)
	}

	run := decodeOutput[servercommon.DrainRun](t, env.mustExec(t, "drain"))
	if len(run.Applied) != 1 || run.Applied[0] != submitted.Record.ID || run.Remaining != 0 {
		t.Fatalf("unexpected drain run %#v", run)
	}
	if remote.appliedCount() != 1 || remote.applied[0] != submitted.Record.ID {
		t.Fatalf("expected idempotency key %q, got %v", submitted.Record.ID, remote.applied)
	}

	status := decodeOutput[servercommon.SyncStatus](t, env.mustExec(t, "--offline", "status"))
	if status.Pending != 0 || status.LastDrain == nil || status.LastDrain.ID != run.ID {
		t.Fatalf("unexpected status %#v", status)
	}

	history := decodeOutput[struct {
		Runs []servercommon.DrainRun `json:"runs"`
	}](t, env.mustExec(t, "--offline", "history", "--limit", "5"))
	if len(history.Runs) != 1 || history.Runs[0].ID != run.ID {
		t.Fatalf("unexpected history %#v", history)
	}
}

func TestRunOnlineSubmitSendsDirectly(t *testing.T) {
	remote := &fakeRemote{}
	server := httptest.NewServer(remote)
	defer server.Close()
	env := newCLIEnv(t, server.URL)

	out := env.mustExec(t, "submit", "item.create", `{"project_id":"p1","name":"Lamp"}`)
	res := decodeOutput[servercommon.SubmitMutationResult](t, out)
	if res.Queued || res.RemoteID != "srv-1" {
		t.Fatalf("unexpected direct submit %#v", res)
	}
}

func TestRunDrainFailureReportsAndKeepsQueue(t *testing.T) {
	// Healthy for the probe, failing for every apply.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	env := newCLIEnv(t, server.URL)

	env.mustExec(t, "--offline", "submit", "item.create", `{"project_id":"p1","name":"Lamp"}`)
	out, err := env.exec(t, "drain")
	if err == nil {
		t.Fatal("expected drain failure error")
	}
	run := decodeOutput[servercommon.DrainRun](t, out)
	if run.FailureKind != "apply_failed" || run.Remaining != 1 || len(run.Applied) != 0 {
		t.Fatalf("unexpected failed run %#v", run)
	}
	queue := decodeOutput[struct {
		Size int `json:"size"`
	}](t, env.mustExec(t, "--offline", "queue"))
	if queue.Size != 1 {
		t.Fatalf("expected failed record to stay queued, size=%d", queue.Size)
	}
}

func TestRunSnapshotFallsBackToCache(t *testing.T) {
	remote := &fakeRemote{}
	server := httptest.NewServer(remote)
	defer server.Close()
	env := newCLIEnv(t, server.URL)

	fresh := decodeOutput[servercommon.ProjectView](t, env.mustExec(t, "snapshot", "p1"))
	if fresh.Stale || fresh.State.Name != "Hotel" {
		t.Fatalf("unexpected fresh view %#v", fresh)
	}

	remote.setDown(true)
	env.mustExec(t, "--offline", "submit", "room.create", `{"project_id":"p1","name":"Bar"}`)
	cached := decodeOutput[servercommon.ProjectView](t, env.mustExec(t, "snapshot", "p1"))
	if !cached.Stale || len(cached.State.Rooms) != 2 || len(cached.Pending) != 1 {
		t.Fatalf("unexpected cached view %#v", cached)
	}

	if _, err := env.exec(t, "--offline", "snapshot", "missing"); err == nil {
		t.Fatal("expected error for uncached project")
	}
}

func TestRunProjectsAndForget(t *testing.T) {
	remote := &fakeRemote{}
	server := httptest.NewServer(remote)
	defer server.Close()
	env := newCLIEnv(t, server.URL)

	env.mustExec(t, "snapshot", "p1")
	env.mustExec(t, "--offline", "submit", "room.create", `{"project_id":"p1","name":"Bar"}`)

	listed := decodeOutput[struct {
		Projects []servercommon.CachedProject `json:"projects"`
	}](t, env.mustExec(t, "--offline", "projects"))
	if len(listed.Projects) != 1 || listed.Projects[0].ProjectID != "p1" || listed.Projects[0].Name != "Hotel" || listed.Projects[0].Pending != 1 {
		t.Fatalf("unexpected cached projects %#v", listed.Projects)
	}

	env.mustExec(t, "--offline", "forget", "p1")
	if _, err := env.exec(t, "--offline", "snapshot", "p1"); err == nil {
		t.Fatal("expected forgotten project to be uncached")
	}
	if _, err := env.exec(t, "--offline", "forget", "p1"); err == nil {
		t.Fatal("expected error forgetting an uncached project")
	}
	queue := decodeOutput[struct {
		Size int `json:"size"`
	}](t, env.mustExec(t, "--offline", "queue"))
	if queue.Size != 1 {
		t.Fatalf("forget must keep queued records, size = %d", queue.Size)
	}
}

func TestRunStatusReportsReachabilityChecks(t *testing.T) {
	remote := &fakeRemote{}
	server := httptest.NewServer(remote)
	defer server.Close()
	env := newCLIEnv(t, server.URL)

	type statusDoc struct {
		Online bool `json:"online"`
		Probe  struct {
			Enabled    bool       `json:"enabled"`
			Schedule   string     `json:"schedule"`
			LastCheck  *time.Time `json:"last_check"`
			LastOnline bool       `json:"last_online"`
			NextCheck  *time.Time `json:"next_check"`
		} `json:"probe"`
	}
	online := decodeOutput[statusDoc](t, env.mustExec(t, "status"))
	if !online.Online || !online.Probe.Enabled || online.Probe.Schedule != config.DefaultProbeSchedule {
		t.Fatalf("unexpected status %#v", online)
	}
	if online.Probe.LastCheck == nil || !online.Probe.LastOnline {
		t.Fatalf("expected a successful startup check, got %#v", online.Probe)
	}
	if online.Probe.NextCheck == nil || !online.Probe.NextCheck.After(*online.Probe.LastCheck) {
		t.Fatalf("expected a scheduled next check, got %#v", online.Probe)
	}

	skipped := decodeOutput[statusDoc](t, env.mustExec(t, "--offline", "status"))
	if skipped.Online || skipped.Probe.LastCheck != nil {
		t.Fatalf("offline start must not check reachability, got %#v", skipped)
	}
}

func TestRunSubmitValidation(t *testing.T) {
	env := newCLIEnv(t, "")
	cases := [][]string{
		{"--offline", "submit", "item.create"},
		{"--offline", "submit", "item.create", "{not json"},
		{"--offline", "submit", "item.explode", `{"project_id":"p1"}`},
		{"--offline", "submit", "item.create", `{"project_id":"p1","name":""}`},
	}
	for _, args := range cases {
		if _, err := env.exec(t, args...); err == nil {
			t.Fatalf("run(%v) error = nil, want error", args)
		}
	}
}

func TestRunSubmitReadsPayloadFile(t *testing.T) {
	env := newCLIEnv(t, "")
	payloadPath := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(payloadPath, []byte(`{"project_id":"p1","id":"lobby"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	out := env.mustExec(t, "--offline", "submit", "room.delete", "--file", payloadPath)
	res := decodeOutput[servercommon.SubmitMutationResult](t, out)
	if !res.Queued || res.Record.Kind != "room.delete" {
		t.Fatalf("unexpected submit %#v", res)
	}
}

func TestRunServeUsesConfigDefaults(t *testing.T) {
	env := newCLIEnv(t, "")
	original := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = original })

	var gotCfg serveradapter.Config
	serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		if deps.Sync == nil {
			return errors.New("missing sync dependency")
		}
		if _, err := deps.Sync.SyncStatus(ctx); err != nil {
			return err
		}
		return nil
	}
	env.mustExec(t, "--offline", "serve", "--http", "127.0.0.1:9999")
	defaults := config.Default("")
	if gotCfg.HTTPBind != "127.0.0.1:9999" || gotCfg.APIEndpoint != defaults.Server.APIEndpoint || gotCfg.ServerName != "atelier" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
}

func TestRunMonitorStartsProgram(t *testing.T) {
	env := newCLIEnv(t, "")
	original := programFactory
	t.Cleanup(func() { programFactory = original })

	var seen tea.Model
	programFactory = func(m tea.Model) program {
		seen = m
		return fakeProgram{model: m}
	}
	env.mustExec(t, "--offline", "monitor")
	if _, ok := seen.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", seen)
	}

	programFactory = func(m tea.Model) program {
		return fakeProgram{runErr: errors.New("tty gone")}
	}
	if _, err := env.exec(t, "--offline", "monitor"); err == nil {
		t.Fatal("expected program error to propagate")
	}
}

func TestDevLogFilePath(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	path, err := devLogFilePath("/var/tmp/logs", "my app", now)
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if path != filepath.Join("/var/tmp/logs", "my-app-20260302.log") {
		t.Fatalf("unexpected path %q", path)
	}
	if got := sanitizeLogFileStem(" / "); got != "atelier" {
		t.Fatalf("sanitizeLogFileStem() = %q", got)
	}
	if _, err := devLogFilePath("  ", "atelier", now); err == nil {
		t.Fatal("expected error for an unset log dir")
	}
}

func TestRuntimeLoggerWritesDevFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, "atelier", true, config.LoggingConfig{
		Level:   "info",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.SetConsoleEnabled(false)
	logger.Info("drain finished", "applied", 2)
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if console.Len() != 0 {
		t.Fatalf("expected muted console, got %q", console.String())
	}
	data, err := os.ReadFile(logger.DevLogPath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "drain finished") || !strings.Contains(string(data), "applied=2") || strings.Contains(string(data), "hidden") {
		t.Fatalf("unexpected dev log %q", data)
	}
}

func TestRuntimeLoggerRejectsBadLevel(t *testing.T) {
	if _, err := newRuntimeLogger(nil, "atelier", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected level parse error")
	}
}
