// Package server mounts the REST and MCP surfaces of the sync service on one listener.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/atelier/internal/adapters/server/common"
	"github.com/hylla/atelier/internal/adapters/server/httpapi"
	"github.com/hylla/atelier/internal/adapters/server/mcpapi"
	"github.com/hylla/atelier/internal/app"
)

const (
	defaultBindAddress     = "127.0.0.1:8080"
	defaultAPIEndpoint     = "/api/v1"
	defaultMCPEndpoint     = "/mcp"
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Config selects the listener, mount points, and MCP identity for serve mode.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
	// ShutdownTimeout bounds in-flight requests once the context ends.
	ShutdownTimeout time.Duration
	Logger          app.Logger
}

// Dependencies holds the service every surface is served from.
type Dependencies struct {
	Sync common.SyncService
}

// NewHandler builds the root mux: /healthz, /readyz, the REST API under
// APIEndpoint, and MCP at MCPEndpoint. It returns the normalized config.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Sync == nil {
		return nil, Config{}, errors.New("sync dependency is required")
	}

	mcpHandler, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, deps.Sync)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.Sync))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", writeHealthStatus)
	mux.HandleFunc("/readyz", readinessHandler(deps.Sync))
	mux.Handle(cfg.MCPEndpoint, mcpHandler)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)
	return mux, cfg, nil
}

// Run binds the listener, serves until ctx ends, then drains in-flight
// requests. Bind failures are returned before any request is served.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	ln, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	cfg.Logger.Info("serve listening", "addr", ln.Addr().String(), "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	shutdownErr := httpServer.Shutdown(shutdownCtx)
	serveErr := <-serveErrCh
	if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve after shutdown: %w", serveErr)
	}
	cfg.Logger.Info("serve stopped")
	return nil
}

// normalizeConfig fills defaults and rejects an API mount that collides with MCP.
func normalizeConfig(cfg Config) (Config, error) {
	cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind)
	if cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}
	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = normalizeEndpoint(cfg.MCPEndpoint, defaultMCPEndpoint)
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ, both are %q", cfg.APIEndpoint)
	}
	if cfg.ServerName = strings.TrimSpace(cfg.ServerName); cfg.ServerName == "" {
		cfg.ServerName = "atelier"
	}
	if cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion); cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger{}
	}
	return cfg, nil
}

// normalizeEndpoint returns "/a/b" for any spelling of a mount path, or fallback for root.
func normalizeEndpoint(path, fallback string) string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return fallback
	}
	return "/" + path
}

// readiness is the /readyz document.
type readiness struct {
	Status       string     `json:"status"`
	Error        string     `json:"error,omitempty"`
	Online       bool       `json:"online"`
	EngineState  string     `json:"engine_state,omitempty"`
	Pending      int        `json:"pending"`
	Accepting    bool       `json:"accepting"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
}

// readinessHandler answers 200 once the service can report status. Accepting is
// false while the queue is at capacity, since offline submissions would be refused.
func readinessHandler(sync common.SyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := sync.SyncStatus(r.Context())
		if err != nil {
			writeReadiness(w, http.StatusServiceUnavailable, readiness{Status: "unavailable", Error: err.Error()})
			return
		}
		writeReadiness(w, http.StatusOK, readiness{
			Status:       "ok",
			Online:       status.Online,
			EngineState:  status.EngineState,
			Pending:      status.Pending,
			Accepting:    status.MaxPending <= 0 || status.Pending < status.MaxPending,
			BackoffUntil: status.BackoffUntil,
		})
	}
}

func writeReadiness(w http.ResponseWriter, code int, body readiness) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// writeHealthStatus is liveness only; it never touches the service.
func writeHealthStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

type discardLogger struct{}

func (discardLogger) Debug(any, ...any) {}
func (discardLogger) Info(any, ...any)  {}
func (discardLogger) Warn(any, ...any)  {}
func (discardLogger) Error(any, ...any) {}
