package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/atelier/internal/adapters/connectivity"
	"github.com/hylla/atelier/internal/adapters/remote/httpclient"
	serveradapter "github.com/hylla/atelier/internal/adapters/server"
	servercommon "github.com/hylla/atelier/internal/adapters/server/common"
	"github.com/hylla/atelier/internal/adapters/storage/sqlite"
	"github.com/hylla/atelier/internal/app"
	"github.com/hylla/atelier/internal/config"
	"github.com/hylla/atelier/internal/domain"
	"github.com/hylla/atelier/internal/platform"
	"github.com/hylla/atelier/internal/tui"
)

var version = "dev"

// program is the part of tea.Program the monitor command needs.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes it through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalOptions holds persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	offline    bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("ATELIER_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("ATELIER_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:           "atelier",
		Short:         "Offline-first sync for design project items and rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.BoolVar(&opts.offline, "offline", false, "skip the reachability check and start offline")

	root.AddCommand(
		newPathsCommand(opts, stdout),
		newSubmitCommand(opts, stdout, stderr),
		newQueueCommand(opts, stdout, stderr),
		newDrainCommand(opts, stdout, stderr),
		newStatusCommand(opts, stdout, stderr),
		newSnapshotCommand(opts, stdout, stderr),
		newProjectsCommand(opts, stdout, stderr),
		newForgetCommand(opts, stderr),
		newHistoryCommand(opts, stdout, stderr),
		newServeCommand(opts, stderr),
		newMonitorCommand(opts, stderr),
	)
	return root
}

func newPathsCommand(opts *globalOptions, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and log locations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, cfg, err := resolveRuntimePaths(opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "log_dir: %s\n", paths.LogDir)
			_, _ = fmt.Fprintf(stdout, "dev_log: %t\n", devFileLogging(opts, cfg))
			return nil
		},
	}
}

func newSubmitCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var payloadFile string
	cmd := &cobra.Command{
		Use:   "submit KIND [PAYLOAD_JSON]",
		Short: "Send one mutation now, or queue it while offline",
		Long:  "KIND is one of: " + strings.Join(kindNames(), ", ") + ". The payload comes from the argument, --file, or stdin when --file is -.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args, payloadFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				res, err := rt.sync.SubmitMutation(ctx, servercommon.SubmitMutationRequest{
					Kind:    args[0],
					Payload: payload,
				})
				if err != nil {
					return fmt.Errorf("submit mutation: %w", err)
				}
				return writeJSON(stdout, res)
			})
		},
	}
	cmd.Flags().StringVarP(&payloadFile, "file", "f", "", "read the payload JSON from a file (- for stdin)")
	return cmd
}

func newQueueCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List queued mutations oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				records, err := rt.sync.ListPending(ctx)
				if err != nil {
					return err
				}
				return writeJSON(stdout, map[string]any{"records": records, "size": len(records)})
			})
		},
	}
}

func newDrainCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Replay queued mutations against the remote in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				run, err := rt.sync.Drain(ctx, servercommon.DrainRequest{Force: force})
				if err != nil {
					return fmt.Errorf("drain: %w", err)
				}
				if err := writeJSON(stdout, run); err != nil {
					return err
				}
				if run.FailureKind != "" {
					return fmt.Errorf("drain stopped at %s: %s", run.FailedRecordID, run.FailureKind)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore an open backoff window")
	return cmd
}

// statusOutput is the status command document: sync state plus reachability checks.
type statusOutput struct {
	servercommon.SyncStatus
	Probe probeStatus `json:"probe"`
}

type probeStatus struct {
	Enabled             bool       `json:"enabled"`
	Schedule            string     `json:"schedule"`
	LastCheck           *time.Time `json:"last_check,omitempty"`
	LastOnline          bool       `json:"last_online"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	NextCheck           *time.Time `json:"next_check,omitempty"`
}

// describeProbe reports the last reachability check and, when scheduled, the next one.
func describeProbe(probe *connectivity.Probe, enabled bool, now time.Time) probeStatus {
	out := probeStatus{Enabled: enabled}
	if probe == nil {
		return out
	}
	out.Schedule = probe.Schedule()
	last := probe.Last()
	if !last.At.IsZero() {
		at := last.At
		out.LastCheck = &at
		out.LastOnline = last.Online
		out.LastError = last.Err
		out.ConsecutiveFailures = last.ConsecutiveFailures
	}
	if enabled {
		if next := probe.Next(now); !next.IsZero() {
			out.NextCheck = &next
		}
	}
	return out
}

func newStatusCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue depth, reachability checks, and the last drain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				status, err := rt.sync.SyncStatus(ctx)
				if err != nil {
					return err
				}
				if status.LastDrain == nil {
					if runs, err := rt.sync.DrainHistory(ctx, 1); err == nil && len(runs) > 0 {
						status.LastDrain = &runs[0]
					}
				}
				return writeJSON(stdout, statusOutput{
					SyncStatus: status,
					Probe:      describeProbe(rt.probe, rt.cfg.Probe.Enabled, time.Now()),
				})
			})
		},
	}
}

func newSnapshotCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot PROJECT_ID",
		Short: "Show project state with pending mutations overlaid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				view, err := rt.sync.LoadProject(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load project %q: %w", args[0], err)
				}
				return writeJSON(stdout, view)
			})
		},
	}
}

func newProjectsCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects held in the offline cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				projects, err := rt.sync.ListCachedProjects(ctx)
				if err != nil {
					return err
				}
				return writeJSON(stdout, map[string]any{"projects": projects})
			})
		},
	}
}

func newForgetCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "forget PROJECT_ID",
		Short: "Drop a project's offline snapshot; its queued mutations stay queued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				if err := rt.sync.ForgetProject(ctx, args[0]); err != nil {
					return fmt.Errorf("forget project %q: %w", args[0], err)
				}
				return nil
			})
		},
	}
}

func newHistoryCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent drain cycles newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				runs, err := rt.sync.DrainHistory(ctx, limit)
				if err != nil {
					return err
				}
				return writeJSON(stdout, map[string]any{"runs": runs})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}

func newServeCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service with REST and MCP endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				if err := rt.startBackground(ctx); err != nil {
					return err
				}
				serverCfg := serveradapter.Config{
					HTTPBind:      firstNonEmpty(httpBind, rt.cfg.Server.HTTPBind),
					APIEndpoint:   firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
					MCPEndpoint:   firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
					ServerName:    rt.appName,
					ServerVersion: version,
					Logger:        rt.logger,
				}
				return serveCommandRunner(ctx, serverCfg, serveradapter.Dependencies{Sync: rt.sync})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	return cmd
}

func newMonitorCommand(opts *globalOptions, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Open the terminal sync monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), opts, stderr, func(ctx context.Context, rt *runtimeEnv) error {
				// Logs go to the dev file only while the monitor owns the terminal.
				rt.logger.SetConsoleEnabled(false)
				if err := rt.startBackground(ctx); err != nil {
					return err
				}
				rt.logger.Info("starting tui program loop")
				if _, err := programFactory(tui.NewModel(rt.svc)).Run(); err != nil {
					rt.logger.Error("tui program terminated with error", "err", err)
					return fmt.Errorf("run tui program: %w", err)
				}
				return nil
			})
		},
	}
}

// runtimeEnv is the wired application graph for one command run.
type runtimeEnv struct {
	appName string
	cfg     config.Config
	logger  *runtimeLogger
	repo    *sqlite.Repository
	remote  app.RemoteClient
	svc     *app.Service
	sync    *servercommon.AppServiceAdapter
	probe   *connectivity.Probe
}

// withRuntime opens the runtime, runs fn, and tears everything down.
func withRuntime(ctx context.Context, opts *globalOptions, stderr io.Writer, fn func(context.Context, *runtimeEnv) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, opts, stderr)
	if err != nil {
		return err
	}
	runErr := fn(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		runErr = errors.Join(runErr, closeErr)
	}
	return runErr
}

// resolveRuntimePaths applies flag, env, and config overrides to the per-user
// locations and returns them with the loaded config.
func resolveRuntimePaths(opts *globalOptions) (platform.Paths, config.Config, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return platform.Paths{}, config.Config{}, err
	}
	configPath := firstNonEmpty(opts.configPath, os.Getenv("ATELIER_CONFIG"), paths.ConfigPath)
	dbOverride := firstNonEmpty(opts.dbPath, os.Getenv("ATELIER_DB_PATH"))

	cfg, err := config.Load(configPath, config.Default(firstNonEmpty(dbOverride, paths.DBPath)))
	if err != nil {
		return platform.Paths{}, config.Config{}, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverride != "" {
		cfg.Database.Path = dbOverride
	}
	logDir, err := resolveLogDir(cfg.Logging.DevFile.Dir)
	if err != nil {
		return platform.Paths{}, config.Config{}, fmt.Errorf("resolve logging.dev_file.dir: %w", err)
	}

	paths = paths.With(platform.Overrides{
		ConfigPath: configPath,
		DBPath:     cfg.Database.Path,
		LogDir:     logDir,
	})
	cfg.Logging.DevFile.Dir = paths.LogDir
	return paths, cfg, nil
}

// devFileLogging reports whether this run writes the dev log file.
func devFileLogging(opts *globalOptions, cfg config.Config) bool {
	return opts.devMode && cfg.Logging.DevFile.Enabled
}

// openRuntime resolves paths and config, then wires storage, remote, and the service.
func openRuntime(ctx context.Context, opts *globalOptions, stderr io.Writer) (*runtimeEnv, error) {
	paths, cfg, err := resolveRuntimePaths(opts)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(devFileLogging(opts, cfg)); err != nil {
		return nil, fmt.Errorf("create app dirs: %w", err)
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("configuration loaded", "config_path", paths.ConfigPath, "db_path", paths.DBPath, "log_dir", paths.LogDir, "remote", cfg.Remote.BaseURL)

	repo, err := sqlite.Open(paths.DBPath)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", paths.DBPath, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}

	rt := &runtimeEnv{
		appName: opts.appName,
		cfg:     cfg,
		logger:  logger,
		repo:    repo,
	}
	rt.remote, err = newRemote(cfg.Remote)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	monitor := app.NewMonitor(false, time.Now)
	rt.svc = app.NewService(
		app.Stores{Queue: repo, Snapshots: repo, History: repo},
		rt.remote,
		monitor,
		newRecordID,
		time.Now,
		app.ServiceConfig{
			MaxPending:     cfg.Queue.MaxPending,
			BackoffInitial: cfg.Sync.BackoffInitial.Std(),
			BackoffMax:     cfg.Sync.BackoffMax.Std(),
			DrainOnStart:   cfg.Sync.DrainOnStart,
			Logger:         logger,
		},
	)
	rt.sync = servercommon.NewAppServiceAdapter(rt.svc)
	if err := rt.svc.Load(ctx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("load pending queue: %w", err)
	}

	rt.probe, err = connectivity.NewProbe(rt.remote, monitor, connectivity.Options{
		Schedule:         cfg.Probe.Schedule,
		Timeout:          cfg.Probe.Timeout.Std(),
		FailureThreshold: cfg.Probe.FailureThreshold,
		Logger:           logger,
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("configure connectivity probe: %w", err)
	}
	if !opts.offline {
		result := rt.probe.Check(ctx)
		logger.Debug("initial reachability", "online", result.Online, "err", result.Err)
	}
	return rt, nil
}

// startBackground starts reconnect drains and, when enabled, the scheduled probe.
func (rt *runtimeEnv) startBackground(ctx context.Context) error {
	if err := rt.svc.Start(ctx); err != nil {
		return fmt.Errorf("start sync service: %w", err)
	}
	if rt.cfg.Probe.Enabled {
		rt.probe.Start(ctx)
		rt.logger.Info("connectivity probe scheduled", "schedule", rt.probe.Schedule())
	}
	return nil
}

// Close stops background work, flushes the queue, and closes storage.
func (rt *runtimeEnv) Close() error {
	var errs []error
	if rt.probe != nil {
		rt.probe.Stop()
	}
	if rt.svc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rt.svc.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop sync service: %w", err))
		}
		cancel()
	}
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sqlite repository: %w", err))
		}
	}
	if err := rt.logger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close runtime log sink: %w", err))
	}
	return errors.Join(errs...)
}

// newRemote builds the HTTP remote, or a stand-in that always reports unreachable.
func newRemote(cfg config.RemoteConfig) (app.RemoteClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return unconfiguredRemote{}, nil
	}
	client, err := httpclient.New(httpclient.Options{
		BaseURL:   cfg.BaseURL,
		AuthToken: cfg.AuthToken,
		Timeout:   cfg.Timeout.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("configure remote client: %w", err)
	}
	return client, nil
}

// errRemoteNotConfigured marks calls made without remote.base_url.
var errRemoteNotConfigured = errors.New("remote.base_url is not configured")

// unconfiguredRemote keeps the service usable offline-only.
type unconfiguredRemote struct{}

func (unconfiguredRemote) Apply(context.Context, domain.Record) (domain.Ack, error) {
	return domain.Ack{}, fmt.Errorf("%w: %w", app.ErrRemoteApplyFailed, errRemoteNotConfigured)
}

func (unconfiguredRemote) FetchProject(context.Context, string) (domain.ProjectState, error) {
	return domain.ProjectState{}, fmt.Errorf("%w: %w", app.ErrRemoteApplyFailed, errRemoteNotConfigured)
}

func (unconfiguredRemote) Ping(context.Context) error {
	return errRemoteNotConfigured
}

// newRecordID returns a time-ordered UUIDv7, falling back to v4.
func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// readPayload resolves the mutation payload from args, a file, or stdin.
func readPayload(args []string, file string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case len(args) > 1 && file != "":
		return nil, errors.New("pass the payload as an argument or with --file, not both")
	case len(args) > 1:
		raw = []byte(args[1])
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		raw = data
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		raw = data
	default:
		return nil, errors.New("payload JSON is required")
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func kindNames() []string {
	kinds := domain.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}

// writeJSON prints one indented JSON document.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseBoolEnv reads one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
