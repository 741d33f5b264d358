package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultAppName names the config and data directories.
const DefaultAppName = "atelier"

// Paths locates the config file, the offline database, and dev logs for one app.
type Paths struct {
	ConfigPath string
	DataDir    string
	DBPath     string
	LogDir     string
}

// Options selects the app directory name and the dev-mode suffix.
type Options struct {
	AppName string
	DevMode bool
}

// baseEnv names the variables that relocate the config and data bases on one OS.
type baseEnv struct {
	config string
	data   string
}

// baseEnvByOS lists the OSes whose bases move with the environment. macOS and
// anything unlisted keep the os.UserConfigDir defaults.
var baseEnvByOS = map[string]baseEnv{
	"linux":   {config: "XDG_CONFIG_HOME", data: "XDG_DATA_HOME"},
	"windows": {config: "APPDATA", data: "LOCALAPPDATA"},
}

// DefaultPaths returns the production locations for the default app name.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: DefaultAppName})
}

// DefaultPathsWithOptions resolves locations from the current OS and environment.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir, err := userDataDir(runtime.GOOS, configDir)
	if err != nil {
		return Paths{}, err
	}
	env := map[string]string{}
	if names, ok := baseEnvByOS[runtime.GOOS]; ok {
		env[names.config] = os.Getenv(names.config)
		env[names.data] = os.Getenv(names.data)
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appDirName(opts))
}

// appDirName applies the default name and the "-dev" suffix.
func appDirName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = DefaultAppName
	}
	if opts.DevMode {
		name += "-dev"
	}
	return name
}

// userDataDir is ~/.local/share on linux and the config dir elsewhere.
func userDataDir(goos, configDir string) (string, error) {
	if goos != "linux" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("user home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share"), nil
}

// PathsFor resolves locations for one OS using explicit env and base dirs.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	appName = strings.TrimSpace(appName)
	switch {
	case userConfigDir == "" || userDataDir == "":
		return Paths{}, errors.New("empty base dirs")
	case appName == "":
		return Paths{}, errors.New("empty app name")
	}

	configBase, dataBase := userConfigDir, userDataDir
	if names, ok := baseEnvByOS[goos]; ok {
		if v := env[names.config]; v != "" {
			configBase = v
		}
		if v := env[names.data]; v != "" {
			dataBase = v
		}
	}

	dataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, appName+".db"),
		LogDir:     filepath.Join(dataDir, "log"),
	}, nil
}

// Overrides replaces resolved locations. Empty fields keep the resolved value.
type Overrides struct {
	ConfigPath string
	DBPath     string
	LogDir     string
}

// With applies o. Moving the database moves the data dir with it, and the log
// dir follows the data dir unless o.LogDir is set.
func (p Paths) With(o Overrides) Paths {
	if v := strings.TrimSpace(o.ConfigPath); v != "" {
		p.ConfigPath = v
	}
	if v := strings.TrimSpace(o.DBPath); v != "" && v != p.DBPath {
		p.DBPath = v
		p.DataDir = filepath.Dir(v)
		p.LogDir = filepath.Join(p.DataDir, "log")
	}
	if v := strings.TrimSpace(o.LogDir); v != "" {
		p.LogDir = v
	}
	return p
}

// EnsureDirs creates the data dir, and the log dir when withLogs is set. The
// config dir is never created; a missing config file means defaults.
func (p Paths) EnsureDirs(withLogs bool) error {
	dirs := []string{p.DataDir}
	if withLogs {
		dirs = append(dirs, p.LogDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
