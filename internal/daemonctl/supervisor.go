package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jimmystridh/whisperx-transcription/internal/config"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
)

// Typed failures surfaced to the presentation layer. Everything else in this
// package degrades to "not running" without raising.
var (
	ErrRuntimeMissing    = errors.New("daemon runtime not found")
	ErrEntrypointMissing = errors.New("daemon entrypoint not found")
	ErrSpawnFailed       = errors.New("daemon spawn failed")
	ErrSignalFailed      = errors.New("daemon signal failed")
)

// Status reports the supervised process state.
type Status struct {
	Running bool
	PID     int
}

// Supervisor tracks and controls the daemon process via its PID file.
type Supervisor struct {
	pidFile      string
	daemonLog    string
	runtime      string
	entrypoint   string
	args         []string
	settle       time.Duration
	stopGrace    time.Duration
	restartDelay time.Duration
	liveness     time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a supervisor from config.
func New(cfg *config.Config, logger *slog.Logger) *Supervisor {
	settle := time.Duration(cfg.Daemon.SettleSeconds) * time.Second
	if settle <= 0 {
		settle = time.Second
	}
	grace := time.Duration(cfg.Daemon.StopGraceSeconds) * time.Second
	if grace <= 0 {
		grace = 2 * time.Second
	}
	restartDelay := time.Duration(cfg.Daemon.RestartDelayMillis) * time.Millisecond
	if restartDelay <= 0 {
		restartDelay = 500 * time.Millisecond
	}
	liveness := time.Duration(cfg.Daemon.LivenessSeconds) * time.Second
	if liveness <= 0 {
		liveness = 3 * time.Second
	}
	return &Supervisor{
		pidFile:      cfg.Paths.PIDFile,
		daemonLog:    cfg.Paths.DaemonLog,
		runtime:      cfg.Daemon.Runtime,
		entrypoint:   cfg.Daemon.Entrypoint,
		args:         append([]string(nil), cfg.Daemon.Args...),
		settle:       settle,
		stopGrace:    grace,
		restartDelay: restartDelay,
		liveness:     liveness,
		logger:       logging.WithComponent(logger, "daemonctl"),
	}
}

// Status probes the PID file. An absent file, an unparseable PID, or any
// probe failure (no such process, no permission) yields not-running; the
// probe delivers signal 0, an existence check with no side effect.
func (s *Supervisor) Status() Status {
	data, err := os.ReadFile(s.pidFile)
	if err != nil {
		return Status{}
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return Status{}
	}
	if err := unix.Kill(pid, 0); err != nil {
		return Status{PID: pid}
	}
	return Status{Running: true, PID: pid}
}

// Start launches the daemon when it is not already running: the configured
// runtime executes the entrypoint detached from the terminal with combined
// output appended to the daemon log. After a fixed settle delay the status
// is re-checked; the result is best-effort confirmation, not a guarantee.
func (s *Supervisor) Start(ctx context.Context) (Status, error) {
	if st := s.Status(); st.Running {
		return st, nil
	}

	runtimePath, err := s.resolveRuntime()
	if err != nil {
		return Status{}, err
	}
	if _, err := os.Stat(s.entrypoint); err != nil {
		return Status{}, fmt.Errorf("%w: %s", ErrEntrypointMissing, s.entrypoint)
	}

	logFile, err := os.OpenFile(s.daemonLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Status{}, fmt.Errorf("%w: open daemon log: %v", ErrSpawnFailed, err)
	}
	defer logFile.Close()

	args := append([]string{s.entrypoint}, s.args...)
	proc := exec.Command(runtimePath, args...)
	proc.Stdout = logFile
	proc.Stderr = logFile
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := proc.Start(); err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	pid := proc.Process.Pid
	if err := proc.Process.Release(); err != nil {
		return Status{}, fmt.Errorf("%w: release process: %v", ErrSpawnFailed, err)
	}

	s.logger.Info("daemon launched",
		logging.String("runtime", runtimePath),
		logging.String("entrypoint", s.entrypoint),
		logging.Int("pid", pid))

	if err := sleepCtx(ctx, s.settle); err != nil {
		return s.Status(), nil
	}
	return s.Status(), nil
}

// Stop delivers SIGTERM to the tracked PID, waits the grace period, and
// re-checks. There is no escalation to SIGKILL.
func (s *Supervisor) Stop(ctx context.Context) (Status, error) {
	st := s.Status()
	if !st.Running {
		return st, nil
	}

	if err := unix.Kill(st.PID, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return Status{PID: st.PID}, nil
		}
		return st, fmt.Errorf("%w: pid %d: %v", ErrSignalFailed, st.PID, err)
	}
	s.logger.Info("sent SIGTERM", logging.Int("pid", st.PID))

	_ = sleepCtx(ctx, s.stopGrace)
	return s.Status(), nil
}

// Restart stops then starts the daemon with a short delay in between. Not
// atomic: a concurrent status read may observe not-running transiently.
func (s *Supervisor) Restart(ctx context.Context) (Status, error) {
	if _, err := s.Stop(ctx); err != nil {
		return Status{}, err
	}
	if err := sleepCtx(ctx, s.restartDelay); err != nil {
		return s.Status(), nil
	}
	return s.Start(ctx)
}

// StartWatch begins periodic liveness polling, invoking onChange whenever
// the running flag flips. Idempotent to repeated start/stop.
func (s *Supervisor) StartWatch(ctx context.Context, onChange func(Status)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watching {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.watching = true

	s.wg.Add(1)
	go s.watchLoop(runCtx, onChange)
	return nil
}

// StopWatch halts liveness polling. Idempotent.
func (s *Supervisor) StopWatch() {
	s.mu.Lock()
	if !s.watching {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.watching = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Supervisor) watchLoop(ctx context.Context, onChange func(Status)) {
	defer s.wg.Done()

	last := s.Status()
	if onChange != nil {
		onChange(last)
	}

	ticker := time.NewTicker(s.liveness)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := s.Status()
			if current.Running != last.Running && onChange != nil {
				onChange(current)
			}
			last = current
		}
	}
}

func (s *Supervisor) resolveRuntime() (string, error) {
	if strings.ContainsAny(s.runtime, "/\\") {
		if _, err := os.Stat(s.runtime); err != nil {
			return "", fmt.Errorf("%w: %s", ErrRuntimeMissing, s.runtime)
		}
		return s.runtime, nil
	}
	path, err := exec.LookPath(s.runtime)
	if err != nil {
		return "", fmt.Errorf("%w: %s not on PATH", ErrRuntimeMissing, s.runtime)
	}
	return path, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
