package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/jimmystridh/whisperx-transcription/internal/config"
	"github.com/jimmystridh/whisperx-transcription/internal/daemonctl"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
	"github.com/jimmystridh/whisperx-transcription/internal/snapshot"
)

type commandContext struct {
	configFlag *string
	socketFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, socketFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		socketFlag: socketFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.socketFlag != nil {
			if socket := strings.TrimSpace(*c.socketFlag); socket != "" {
				cfg.Paths.Socket = socket
			}
		}
		if err := cfg.EnsureStateDir(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerValue builds the shared CLI logger. Logs go to stderr so command
// output on stdout stays parseable.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg := c.configValue()
		if cfg == nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Writer: os.Stderr,
		})
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) supervisor() (*daemonctl.Supervisor, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonctl.New(cfg, c.loggerValue()), nil
}

func (c *commandContext) snapshotPaths() snapshot.Paths {
	cfg := c.configValue()
	if cfg == nil {
		return snapshot.Paths{}
	}
	return snapshot.Paths{
		StateFile:    cfg.Paths.StateFile,
		ProgressFile: cfg.Paths.ProgressFile,
		HistoryFile:  cfg.Paths.HistoryFile,
		LockFile:     cfg.Paths.LockFile,
	}
}
