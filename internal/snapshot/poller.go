package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
)

// Paths names the daemon files the poller reads.
type Paths struct {
	StateFile    string
	ProgressFile string
	HistoryFile  string
	LockFile     string
}

// Intervals sets the three cycle periods.
type Intervals struct {
	State    time.Duration
	Progress time.Duration
	History  time.Duration
}

// Callbacks receive freshly read snapshots. Invoked from poller goroutines;
// a nil callback disables that cycle's delivery.
type Callbacks struct {
	State    func(api.StateSnapshot)
	Progress func(api.ProgressSnapshot)
	History  func([]api.Transcript)
}

// Poller runs the three periodic read cycles against the daemon's files.
type Poller struct {
	paths     Paths
	intervals Intervals
	callbacks Callbacks
	logger    *slog.Logger

	refresh chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller builds a poller. Non-positive intervals fall back to the daemon's
// observed write cadence (2s state, 500ms progress, 10s history).
func NewPoller(paths Paths, intervals Intervals, callbacks Callbacks, logger *slog.Logger) *Poller {
	if intervals.State <= 0 {
		intervals.State = 2 * time.Second
	}
	if intervals.Progress <= 0 {
		intervals.Progress = 500 * time.Millisecond
	}
	if intervals.History <= 0 {
		intervals.History = 10 * time.Second
	}
	return &Poller{
		paths:     paths,
		intervals: intervals,
		callbacks: callbacks,
		logger:    logging.WithComponent(logger, "snapshot"),
		refresh:   make(chan struct{}, 1),
	}
}

// Start launches the three cycles. Idempotent while running.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("poller already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(3)
	go p.loop(runCtx, p.intervals.State, p.readState, nil)
	go p.loop(runCtx, p.intervals.Progress, p.readProgress, nil)
	go p.loop(runCtx, p.intervals.History, p.readHistory, p.refresh)
	return nil
}

// Stop cancels the cycles and waits for them to exit. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// RefreshHistory requests an out-of-band history read, used right after a
// completed event. Coalesces when a refresh is already pending.
func (p *Poller) RefreshHistory() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, read func(), kick <-chan struct{}) {
	defer p.wg.Done()

	read()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if kick == nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				read()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			read()
		case <-kick:
			read()
		}
	}
}

func (p *Poller) readState() {
	snap, err := api.ReadStateSnapshot(p.paths.StateFile)
	if err != nil {
		p.logger.Debug("state snapshot skipped", logging.Error(err))
		return
	}
	if snap == nil || p.callbacks.State == nil {
		return
	}
	p.callbacks.State(*snap)
}

func (p *Poller) readProgress() {
	snap, err := api.ReadProgressSnapshot(p.paths.ProgressFile)
	if err != nil {
		p.logger.Debug("progress snapshot skipped", logging.Error(err))
		return
	}
	if snap == nil || p.callbacks.Progress == nil {
		return
	}
	p.callbacks.Progress(*snap)
}

func (p *Poller) readHistory() {
	transcripts, err := api.ReadHistorySnapshot(p.paths.HistoryFile)
	if err != nil {
		p.logger.Debug("history snapshot skipped", logging.Error(err))
		return
	}
	if transcripts == nil || p.callbacks.History == nil {
		return
	}
	p.callbacks.History(transcripts)
}
