// Package monitor wires the socket transport, the snapshot poller, and the
// two reconcilers together. Every input (event, snapshot, connectivity flip)
// funnels through one channel consumed by one goroutine, so reconciler state
// is only ever mutated from a single thread of control and inputs are
// applied in arrival order.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/config"
	"github.com/jimmystridh/whisperx-transcription/internal/history"
	"github.com/jimmystridh/whisperx-transcription/internal/ipc"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
	"github.com/jimmystridh/whisperx-transcription/internal/snapshot"
	"github.com/jimmystridh/whisperx-transcription/internal/status"
)

const archiveWriteTimeout = 2 * time.Second

// input carries exactly one of its fields.
type input struct {
	event     api.Event
	state     *api.StateSnapshot
	progress  *api.ProgressSnapshot
	history   []api.Transcript
	connected *bool
}

// Monitor owns the composite monitoring pipeline.
type Monitor struct {
	logger  *slog.Logger
	client  *ipc.Client
	poller  *snapshot.Poller
	status  *status.Reconciler
	history *history.Reconciler
	archive *history.Archive

	inputs chan input

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New assembles the pipeline from config. An archive that fails to open is
// logged and skipped; archival is an enhancement, never a precondition.
func New(cfg *config.Config, logger *slog.Logger) *Monitor {
	m := &Monitor{
		logger:  logging.WithComponent(logger, "monitor"),
		status:  status.NewReconciler(logger),
		history: history.NewReconciler(logger),
		inputs:  make(chan input, 256),
	}

	if cfg.Archive.Enabled {
		archive, err := history.OpenArchive(cfg.Archive.Path)
		if err != nil {
			m.logger.Warn("transcript archive unavailable",
				logging.String("path", cfg.Archive.Path),
				logging.Error(err))
		} else {
			m.archive = archive
		}
	}

	m.client = ipc.NewClient(cfg.Paths.Socket,
		time.Duration(cfg.Transport.ReconnectSeconds)*time.Second, logger)
	m.client.OnConnectivity(func(connected bool) {
		v := connected
		m.post(input{connected: &v})
	})

	m.poller = snapshot.NewPoller(
		snapshot.Paths{
			StateFile:    cfg.Paths.StateFile,
			ProgressFile: cfg.Paths.ProgressFile,
			HistoryFile:  cfg.Paths.HistoryFile,
			LockFile:     cfg.Paths.LockFile,
		},
		snapshot.Intervals{
			State:    time.Duration(cfg.Poll.StateMillis) * time.Millisecond,
			Progress: time.Duration(cfg.Poll.ProgressMillis) * time.Millisecond,
			History:  time.Duration(cfg.Poll.HistoryMillis) * time.Millisecond,
		},
		snapshot.Callbacks{
			State: func(snap api.StateSnapshot) {
				m.post(input{state: &snap})
			},
			Progress: func(snap api.ProgressSnapshot) {
				m.post(input{progress: &snap})
			},
			History: func(list []api.Transcript) {
				m.post(input{history: list})
			},
		},
		logger)

	return m
}

// Start launches the apply loop, the poller, and the first connection
// attempt. Idempotent while running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.wg.Add(2)
	go m.run(runCtx)
	go m.forwardEvents(runCtx)

	if err := m.poller.Start(runCtx); err != nil {
		m.logger.Warn("poller start failed", logging.Error(err))
	}
	m.client.Connect()
	return nil
}

// Stop tears the pipeline down. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.client.Disconnect()
	m.poller.Stop()
	m.wg.Wait()

	if m.archive != nil {
		_ = m.archive.Close()
	}
}

// Status returns the current reconciled state.
func (m *Monitor) Status() status.State { return m.status.Current() }

// SubscribeStatus registers an observer for reconciled state changes.
func (m *Monitor) SubscribeStatus(fn func(status.State)) { m.status.Subscribe(fn) }

// History returns the merged transcript list.
func (m *Monitor) History() []api.Transcript { return m.history.Records() }

// Archive exposes the optional transcript archive; nil when disabled or
// unavailable.
func (m *Monitor) Archive() *history.Archive { return m.archive }

// RequestHistory asks the daemon for a history push. Fire-and-forget.
func (m *Monitor) RequestHistory() { m.client.SendCommand(api.CommandHistory) }

// forwardEvents moves transport events onto the single input channel so they
// interleave with connectivity flips and snapshots in arrival order.
func (m *Monitor) forwardEvents(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.client.Events():
			select {
			case m.inputs <- input{event: ev}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (m *Monitor) post(in input) {
	m.mu.Lock()
	ctx := m.runCtx
	running := m.running
	m.mu.Unlock()
	if !running || ctx == nil {
		return
	}
	select {
	case m.inputs <- in:
	case <-ctx.Done():
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-m.inputs:
			m.apply(ctx, in)
		}
	}
}

func (m *Monitor) apply(ctx context.Context, in input) {
	switch {
	case in.connected != nil:
		m.status.SetConnected(*in.connected)
	case in.event != nil:
		m.applyEvent(ctx, in.event)
	case in.state != nil:
		m.status.ApplyState(*in.state)
	case in.progress != nil:
		m.status.ApplyProgress(*in.progress)
	case in.history != nil:
		m.mergeHistory(ctx, in.history)
	}
}

func (m *Monitor) applyEvent(ctx context.Context, ev api.Event) {
	m.status.ApplyEvent(ev)

	switch ev := ev.(type) {
	case api.CompletedEvent:
		if record, ok := m.history.ApplyCompleted(ev); ok {
			m.archiveRecords(ctx, record)
		}
		// The durable file may carry fields the event missed; read it now
		// rather than waiting out the history poll interval.
		m.poller.RefreshHistory()
	case api.FailedEvent:
		// Failure records carry no id on the wire; the daemon writes one to
		// the history file, so pull that instead of inventing a duplicate.
		m.poller.RefreshHistory()
	case api.StateEvent:
		if len(ev.History) > 0 {
			m.mergeHistory(ctx, ev.History)
		}
	case api.HistoryEvent:
		m.mergeHistory(ctx, ev.Transcripts)
	}
}

func (m *Monitor) mergeHistory(ctx context.Context, list []api.Transcript) {
	added := m.history.Merge(list)
	m.archiveRecords(ctx, added...)
}

func (m *Monitor) archiveRecords(ctx context.Context, records ...api.Transcript) {
	if m.archive == nil || len(records) == 0 {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
	defer cancel()
	for _, record := range records {
		if err := m.archive.Record(writeCtx, record); err != nil {
			m.logger.Warn("archive write failed",
				logging.String("transcript_id", record.ID),
				logging.Error(err))
			return
		}
	}
}
