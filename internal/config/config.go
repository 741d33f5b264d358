package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// DefaultProbeSchedule checks reachability every fifteen seconds.
const DefaultProbeSchedule = "@every 15s"

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Remote   RemoteConfig   `toml:"remote"`
	Queue    QueueConfig    `toml:"queue"`
	Sync     SyncConfig     `toml:"sync"`
	Probe    ProbeConfig    `toml:"probe"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type RemoteConfig struct {
	BaseURL   string   `toml:"base_url"`
	Timeout   Duration `toml:"timeout"`
	AuthToken string   `toml:"auth_token"`
}

type QueueConfig struct {
	MaxPending int `toml:"max_pending"`
}

type SyncConfig struct {
	BackoffInitial Duration `toml:"backoff_initial"`
	BackoffMax     Duration `toml:"backoff_max"`
	DrainOnStart   bool     `toml:"drain_on_start"`
}

type ProbeConfig struct {
	Enabled          bool     `toml:"enabled"`
	Schedule         string   `toml:"schedule"`
	Timeout          Duration `toml:"timeout"`
	FailureThreshold int      `toml:"failure_threshold"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"` // debug | info | warn | error
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the dev-mode log file. An empty Dir means the
// per-user log dir next to the database.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Duration decodes TOML strings such as "2s" or "5m".
type Duration time.Duration

// UnmarshalText parses one Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Remote: RemoteConfig{
			Timeout: Duration(10 * time.Second),
		},
		Queue: QueueConfig{
			MaxPending: 1000,
		},
		Sync: SyncConfig{
			BackoffInitial: Duration(2 * time.Second),
			BackoffMax:     Duration(5 * time.Minute),
			DrainOnStart:   true,
		},
		Probe: ProbeConfig{
			Enabled:          true,
			Schedule:         DefaultProbeSchedule,
			Timeout:          Duration(5 * time.Second),
			FailureThreshold: 1,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
			},
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if raw := strings.TrimSpace(c.Remote.BaseURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("invalid remote.base_url: %q", c.Remote.BaseURL)
		}
	}
	if c.Remote.Timeout < 0 {
		return errors.New("remote.timeout must be >= 0")
	}

	if c.Queue.MaxPending <= 0 {
		return fmt.Errorf("queue.max_pending must be > 0, got %d", c.Queue.MaxPending)
	}

	if c.Sync.BackoffInitial <= 0 {
		return errors.New("sync.backoff_initial must be > 0")
	}
	if c.Sync.BackoffMax < c.Sync.BackoffInitial {
		return errors.New("sync.backoff_max must be >= sync.backoff_initial")
	}

	if c.Probe.Enabled {
		if _, err := cron.ParseStandard(strings.TrimSpace(c.Probe.Schedule)); err != nil {
			return fmt.Errorf("invalid probe.schedule %q: %w", c.Probe.Schedule, err)
		}
	}
	if c.Probe.Timeout < 0 {
		return errors.New("probe.timeout must be >= 0")
	}
	if c.Probe.FailureThreshold < 0 {
		return errors.New("probe.failure_threshold must be >= 0")
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	return nil
}
