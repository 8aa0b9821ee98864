package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// DaemonStatus is the coarse daemon state written to state.json.
type DaemonStatus string

const (
	DaemonIdle         DaemonStatus = "idle"
	DaemonTranscribing DaemonStatus = "transcribing"
	DaemonError        DaemonStatus = "error"
)

// CurrentJob describes the in-flight transcription within a state snapshot.
type CurrentJob struct {
	Filename        string  `json:"filename"`
	StartedAt       string  `json:"started_at"`
	DurationSeconds float64 `json:"duration_seconds"`
	ProgressPercent float64 `json:"progress_percent"`
	Stage           string  `json:"stage"`
}

// StateSnapshot mirrors state.json, the daemon's coarse on-disk state.
type StateSnapshot struct {
	Status       DaemonStatus `json:"status"`
	Current      *CurrentJob  `json:"current"`
	Queue        []string     `json:"queue"`
	History      []Transcript `json:"history,omitempty"`
	LastUpdated  string       `json:"last_updated"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// ProgressSnapshot mirrors progress.json, the fine-grained progress file the
// daemon rewrites many times per job and deletes when the job ends.
type ProgressSnapshot struct {
	Percent   float64 `json:"percent"`
	Stage     string  `json:"stage"`
	Detail    string  `json:"detail"`
	Timestamp string  `json:"timestamp"`
}

// Transcript is one completed (or failed) job record.
type Transcript struct {
	ID               string  `json:"id"`
	OriginalFilename string  `json:"original_filename"`
	TranscriptPath   string  `json:"transcript_path"`
	CompletedAt      string  `json:"completed_at"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Language         string  `json:"language"`
	SpeakerCount     int     `json:"speaker_count"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
}

// completedAtLayouts covers RFC 3339 and the fraction-bearing local-time
// format Python's datetime.isoformat produces.
var completedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// CompletedTime parses the record timestamp. The second return reports
// whether the timestamp was parseable; unparseable records sort after all
// parseable ones.
func (t Transcript) CompletedTime() (time.Time, bool) {
	for _, layout := range completedAtLayouts {
		if ts, err := time.Parse(layout, t.CompletedAt); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// historyFile is the top-level shape of history.json.
type historyFile struct {
	Transcripts []Transcript `json:"transcripts"`
}

// ReadStateSnapshot reads state.json. An absent file yields (nil, nil).
func ReadStateSnapshot(path string) (*StateSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state snapshot: %w", err)
	}
	var snap StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: state snapshot: %v", ErrMalformed, err)
	}
	return &snap, nil
}

// ReadProgressSnapshot reads progress.json. An absent file yields (nil, nil);
// the daemon removes the file between jobs, so absence is the common case.
func ReadProgressSnapshot(path string) (*ProgressSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read progress snapshot: %w", err)
	}
	var snap ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: progress snapshot: %v", ErrMalformed, err)
	}
	return &snap, nil
}

// ReadHistorySnapshot reads history.json. An absent file yields (nil, nil).
func ReadHistorySnapshot(path string) ([]Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history snapshot: %w", err)
	}
	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: history snapshot: %v", ErrMalformed, err)
	}
	return file.Transcripts, nil
}
