package history

import (
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
)

// Reconciler merges event-sourced and file-sourced transcript records into
// one ordered list: completed_at descending, records with an unparseable
// timestamp after all parseable ones.
type Reconciler struct {
	logger *slog.Logger

	mu      sync.Mutex
	records []api.Transcript
	ids     map[string]struct{}
}

// NewReconciler returns an empty reconciler.
func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{
		logger: logging.WithComponent(logger, "history"),
		ids:    make(map[string]struct{}),
	}
}

// ApplyCompleted records the transcript carried by a completed event. The
// returned record includes any generated id; ok is false when the id was
// already known.
func (r *Reconciler) ApplyCompleted(ev api.CompletedEvent) (api.Transcript, bool) {
	record := api.Transcript{
		ID:               ev.ID,
		OriginalFilename: ev.Filename,
		TranscriptPath:   ev.TranscriptPath,
		CompletedAt:      ev.Timestamp,
		DurationSeconds:  ev.DurationSeconds,
		Language:         ev.Language,
		SpeakerCount:     ev.SpeakerCount,
		Success:          true,
	}
	if record.CompletedAt == "" {
		record.CompletedAt = time.Now().Format(time.RFC3339)
	}

	added := r.Merge([]api.Transcript{record})
	if len(added) == 0 {
		return api.Transcript{}, false
	}
	return added[0], true
}

// Merge incorporates a list from any source, appending only records whose id
// is not already held. An existing record is never overwritten, so an
// event-sourced record survives later file reads. Records arriving without
// an id get one assigned. Returns the records actually added.
func (r *Reconciler) Merge(list []api.Transcript) []api.Transcript {
	if len(list) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var added []api.Transcript
	for _, record := range list {
		record.ID = strings.TrimSpace(record.ID)
		if record.ID == "" {
			record.ID = newTranscriptID()
		}
		if _, exists := r.ids[record.ID]; exists {
			continue
		}
		r.ids[record.ID] = struct{}{}
		r.records = append(r.records, record)
		added = append(added, record)
	}

	if len(added) > 0 {
		sortTranscripts(r.records)
		r.logger.Debug("history merged", logging.Int("added", len(added)), logging.Int("total", len(r.records)))
	}
	return added
}

// Records returns a copy of the merged, ordered list.
func (r *Reconciler) Records() []api.Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.records)
}

// Len reports the number of merged records.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// sortTranscripts orders by completed_at descending with unparseable
// timestamps last; ties break on id for determinism.
func sortTranscripts(records []api.Transcript) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, okI := records[i].CompletedTime()
		tj, okJ := records[j].CompletedTime()
		switch {
		case okI && !okJ:
			return true
		case !okI && okJ:
			return false
		case !okI && !okJ:
			return records[i].ID < records[j].ID
		}
		if ti.Equal(tj) {
			return records[i].ID < records[j].ID
		}
		return ti.After(tj)
	})
}

// newTranscriptID mirrors the daemon's 8-character uuid-prefix id shape.
func newTranscriptID() string {
	return uuid.NewString()[:8]
}
