package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalize expands paths and fills in file locations derived from StateDir.
func (c *Config) normalize() error {
	stateDir, err := expandPath(c.Paths.StateDir)
	if err != nil {
		return err
	}
	c.Paths.StateDir = stateDir

	derived := []struct {
		field *string
		name  string
	}{
		{&c.Paths.Socket, "whisperxd.sock"},
		{&c.Paths.StateFile, "state.json"},
		{&c.Paths.ProgressFile, "progress.json"},
		{&c.Paths.HistoryFile, "history.json"},
		{&c.Paths.PIDFile, "daemon.pid"},
		{&c.Paths.DaemonLog, "daemon.log"},
		{&c.Paths.LockFile, "state.lock"},
	}
	for _, entry := range derived {
		value := strings.TrimSpace(*entry.field)
		if value == "" {
			*entry.field = filepath.Join(stateDir, entry.name)
			continue
		}
		expanded, err := expandPath(value)
		if err != nil {
			return err
		}
		*entry.field = expanded
	}

	if strings.TrimSpace(c.Archive.Path) == "" {
		c.Archive.Path = filepath.Join(stateDir, "archive.db")
	} else {
		expanded, err := expandPath(c.Archive.Path)
		if err != nil {
			return err
		}
		c.Archive.Path = expanded
	}

	if strings.TrimSpace(c.Daemon.Entrypoint) != "" {
		expanded, err := expandPath(c.Daemon.Entrypoint)
		if err != nil {
			return err
		}
		c.Daemon.Entrypoint = expanded
	}
	// Runtime stays a bare command name when it has no separator so the
	// supervisor can resolve it on PATH.
	if strings.ContainsAny(c.Daemon.Runtime, "/\\") || strings.HasPrefix(c.Daemon.Runtime, "~") {
		expanded, err := expandPath(c.Daemon.Runtime)
		if err != nil {
			return err
		}
		c.Daemon.Runtime = expanded
	}

	return nil
}

// Validate rejects configurations the client cannot operate with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return fmt.Errorf("config: paths.state_dir must not be empty")
	}
	if c.Poll.StateMillis <= 0 {
		return fmt.Errorf("config: poll.state_millis must be positive, got %d", c.Poll.StateMillis)
	}
	if c.Poll.ProgressMillis <= 0 {
		return fmt.Errorf("config: poll.progress_millis must be positive, got %d", c.Poll.ProgressMillis)
	}
	if c.Poll.HistoryMillis <= 0 {
		return fmt.Errorf("config: poll.history_millis must be positive, got %d", c.Poll.HistoryMillis)
	}
	if c.Transport.ReconnectSeconds <= 0 {
		return fmt.Errorf("config: transport.reconnect_seconds must be positive, got %d", c.Transport.ReconnectSeconds)
	}
	if c.Daemon.LivenessSeconds <= 0 {
		return fmt.Errorf("config: daemon.liveness_seconds must be positive, got %d", c.Daemon.LivenessSeconds)
	}
	if strings.TrimSpace(c.Daemon.Runtime) == "" {
		return fmt.Errorf("config: daemon.runtime must not be empty")
	}
	if strings.TrimSpace(c.Daemon.Entrypoint) == "" {
		return fmt.Errorf("config: daemon.entrypoint must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
