package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths locates the daemon's state directory and the files inside it. Every
// file path defaults to a well-known name under StateDir and may be
// overridden individually.
type Paths struct {
	StateDir     string `toml:"state_dir"`
	Socket       string `toml:"socket"`
	StateFile    string `toml:"state_file"`
	ProgressFile string `toml:"progress_file"`
	HistoryFile  string `toml:"history_file"`
	PIDFile      string `toml:"pid_file"`
	DaemonLog    string `toml:"daemon_log"`
	LockFile     string `toml:"lock_file"`
}

// Daemon configures how the supervisor launches and signals the daemon
// process.
type Daemon struct {
	Runtime            string   `toml:"runtime"`
	Entrypoint         string   `toml:"entrypoint"`
	Args               []string `toml:"args"`
	SettleSeconds      int      `toml:"settle_seconds"`
	StopGraceSeconds   int      `toml:"stop_grace_seconds"`
	RestartDelayMillis int      `toml:"restart_delay_millis"`
	LivenessSeconds    int      `toml:"liveness_seconds"`
}

// Poll configures the snapshot poller cycle periods.
type Poll struct {
	StateMillis    int `toml:"state_millis"`
	ProgressMillis int `toml:"progress_millis"`
	HistoryMillis  int `toml:"history_millis"`
}

// Transport configures socket reconnection behavior.
type Transport struct {
	ReconnectSeconds int `toml:"reconnect_seconds"`
}

// Archive configures the local sqlite transcript archive. The daemon caps
// history.json at 50 records; the archive retains everything ever observed.
type Archive struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the client.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Daemon    Daemon    `toml:"daemon"`
	Poll      Poll      `toml:"poll"`
	Transport Transport `toml:"transport"`
	Archive   Archive   `toml:"archive"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.whisperx/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A missing file is not
// an error; defaults apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureStateDir creates the daemon state directory when absent.
func (c *Config) EnsureStateDir() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
