package status

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
)

// Status is the reconciled, externally observed daemon status.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusIdle         Status = "idle"
	StatusTranscribing Status = "transcribing"
	StatusError        Status = "error"
)

// StageLoading is the initial stage marker set when a job starts.
const StageLoading = "loading"

// State is the composite reconciled view handed to the presentation layer.
// Queue is read-only for receivers.
type State struct {
	Status   Status
	Filename string
	Stage    string
	Percent  float64
	Message  string
	Queue    []string
}

func (s State) equal(other State) bool {
	return s.Status == other.Status &&
		s.Filename == other.Filename &&
		s.Stage == other.Stage &&
		s.Percent == other.Percent &&
		s.Message == other.Message &&
		slices.Equal(s.Queue, other.Queue)
}

// Reconciler merges transport events and snapshot reads into a single state,
// suppressing updates that would not change the held value so observers
// never re-render on no-ops.
type Reconciler struct {
	logger *slog.Logger

	mu        sync.Mutex
	connected bool
	state     State
	listeners []func(State)
}

// NewReconciler starts in the Disconnected state.
func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{
		logger: logging.WithComponent(logger, "status"),
		state:  State{Status: StatusDisconnected},
	}
}

// Subscribe registers an observer for state changes. Observers run on the
// goroutine that applied the change, after the internal lock is released.
func (r *Reconciler) Subscribe(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Current returns a copy of the reconciled state.
func (r *Reconciler) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.state
	current.Queue = slices.Clone(current.Queue)
	return current
}

// SetConnected records the transport connectivity flag. Losing the
// connection moves the status to Disconnected until the next event or, per
// the disconnected fallback, the next state snapshot.
func (r *Reconciler) SetConnected(connected bool) {
	r.mu.Lock()
	r.connected = connected
	next := r.state
	if !connected {
		next.Status = StatusDisconnected
	}
	notify := r.commitLocked(next)
	r.mu.Unlock()
	notify()
}

// ApplyEvent folds one wire event into the state. Events are authoritative
// for status, filename, and the coarse stage while the socket is live.
func (r *Reconciler) ApplyEvent(ev api.Event) {
	r.mu.Lock()
	next := r.state

	switch ev := ev.(type) {
	case api.StartedEvent:
		next.Status = StatusTranscribing
		next.Filename = ev.Filename
		next.Stage = StageLoading
		next.Percent = 0
		next.Message = ""
	case api.ProgressEvent:
		next.Status = StatusTranscribing
		next.Percent = clampPercent(ev.Percent)
		if stage := strings.TrimSpace(ev.Stage); stage != "" {
			next.Stage = stage
		}
	case api.CompletedEvent:
		next = terminalState(StatusIdle, "", next.Queue)
	case api.FailedEvent:
		next = terminalState(StatusError, ev.Error, next.Queue)
	case api.StateEvent:
		next = r.foldStatePush(next, ev)
	default:
		// Unknown and history events carry nothing for the status view.
		r.mu.Unlock()
		return
	}

	notify := r.commitLocked(next)
	r.mu.Unlock()
	notify()
}

// ApplyState folds a polled state snapshot. Only consulted while
// disconnected, and then only for status, filename, and queue: stage and
// percent belong to the progress snapshot, which is strictly more current.
func (r *Reconciler) ApplyState(snap api.StateSnapshot) {
	r.mu.Lock()
	if r.connected {
		r.mu.Unlock()
		return
	}

	next := r.state
	switch snap.Status {
	case api.DaemonTranscribing:
		next.Status = StatusTranscribing
		next.Message = ""
		if snap.Current != nil {
			next.Filename = snap.Current.Filename
			if next.Stage == "" {
				// Filling an empty stage is not an overwrite; the progress
				// cycle replaces it as soon as the file exists.
				next.Stage = snap.Current.Stage
			}
		}
	case api.DaemonError:
		next = terminalState(StatusError, snap.ErrorMessage, next.Queue)
	default:
		next = terminalState(StatusIdle, "", next.Queue)
	}
	next.Queue = slices.Clone(snap.Queue)

	notify := r.commitLocked(next)
	r.mu.Unlock()
	notify()
}

// ApplyProgress folds a polled progress snapshot. Always wins for percent
// and stage regardless of connectivity, but only while a job is active so a
// stale file is never presented once the daemon is idle.
func (r *Reconciler) ApplyProgress(snap api.ProgressSnapshot) {
	r.mu.Lock()
	if r.state.Status != StatusTranscribing {
		r.mu.Unlock()
		return
	}

	next := r.state
	next.Percent = clampPercent(snap.Percent)
	if stage := strings.TrimSpace(snap.Stage); stage != "" {
		next.Stage = stage
	}

	notify := r.commitLocked(next)
	r.mu.Unlock()
	notify()
}

// foldStatePush applies a pushed state event, which is authoritative for
// every field it carries.
func (r *Reconciler) foldStatePush(next State, ev api.StateEvent) State {
	switch ev.Status {
	case api.DaemonTranscribing:
		next.Status = StatusTranscribing
		next.Message = ""
		if ev.Current != nil {
			next.Filename = ev.Current.Filename
			next.Stage = ev.Current.Stage
			next.Percent = clampPercent(ev.Current.ProgressPercent)
		}
	case api.DaemonError:
		// The pushed state omits the error message; keep the last one seen.
		next = terminalState(StatusError, next.Message, next.Queue)
	default:
		next = terminalState(StatusIdle, "", next.Queue)
	}
	next.Queue = slices.Clone(ev.Queue)
	return next
}

// terminalState builds the cleared state entered on Completed, Failed, or an
// idle/error snapshot: no job fields, percent reset to zero.
func terminalState(status Status, message string, queue []string) State {
	return State{
		Status:  status,
		Message: message,
		Queue:   queue,
	}
}

// commitLocked installs next if it differs from the held state and returns
// the observer notification to run after the lock is released. Callers hold
// r.mu.
func (r *Reconciler) commitLocked(next State) func() {
	if r.state.equal(next) {
		return func() {}
	}
	r.state = next
	listeners := slices.Clone(r.listeners)
	snapshot := next
	snapshot.Queue = slices.Clone(snapshot.Queue)
	return func() {
		for _, fn := range listeners {
			fn(snapshot)
		}
	}
}

func clampPercent(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
