package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed indicates a line or file that could not be decoded.
var ErrMalformed = errors.New("malformed daemon payload")

// EventKind is the string discriminator carried in the wire "event" field.
type EventKind string

const (
	EventKindStarted   EventKind = "started"
	EventKindProgress  EventKind = "progress"
	EventKindCompleted EventKind = "completed"
	EventKindFailed    EventKind = "failed"
	EventKindState     EventKind = "state"
	EventKindHistory   EventKind = "history"
)

// Event is one decoded daemon push. Exactly one concrete type backs each
// value; consumers switch on the concrete type and ignore UnknownEvent.
type Event interface {
	Kind() EventKind
}

// StartedEvent announces the beginning of a transcription job.
type StartedEvent struct {
	Filename        string  `json:"filename"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

func (StartedEvent) Kind() EventKind { return EventKindStarted }

// ProgressEvent reports percent/stage movement within the active job.
type ProgressEvent struct {
	Percent float64 `json:"percent"`
	Stage   string  `json:"stage"`
}

func (ProgressEvent) Kind() EventKind { return EventKindProgress }

// CompletedEvent announces a successful job, carrying the full transcript
// record so history can be updated without a file read.
type CompletedEvent struct {
	ID              string  `json:"id"`
	Filename        string  `json:"filename"`
	TranscriptPath  string  `json:"transcript_path"`
	DurationSeconds float64 `json:"duration_seconds"`
	Language        string  `json:"language"`
	SpeakerCount    int     `json:"speaker_count"`
	Timestamp       string  `json:"timestamp"`
}

func (CompletedEvent) Kind() EventKind { return EventKindCompleted }

// FailedEvent announces a failed job.
type FailedEvent struct {
	Filename  string `json:"filename"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func (FailedEvent) Kind() EventKind { return EventKindFailed }

// StateEvent is the daemon's pushed equivalent of the state snapshot file.
// The daemon sends one on connect and in reply to a "status" command; the
// history list is only populated on the connect push.
type StateEvent struct {
	Status  DaemonStatus `json:"status"`
	Current *CurrentJob  `json:"current"`
	Queue   []string     `json:"queue"`
	History []Transcript `json:"history"`
}

func (StateEvent) Kind() EventKind { return EventKindState }

// HistoryEvent is the daemon's reply to a "history" command.
type HistoryEvent struct {
	Transcripts []Transcript `json:"transcripts"`
}

func (HistoryEvent) Kind() EventKind { return EventKindHistory }

// UnknownEvent preserves the discriminator of an event kind this client does
// not understand. Decoding succeeds so that newer daemons remain compatible.
type UnknownEvent struct {
	Name string
}

func (e UnknownEvent) Kind() EventKind { return EventKind(e.Name) }

// DecodeEvent parses one newline-delimited JSON event line.
func DecodeEvent(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch EventKind(envelope.Event) {
	case EventKindStarted:
		var ev StartedEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: started event: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventKindProgress:
		var ev ProgressEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: progress event: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventKindCompleted:
		var ev CompletedEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: completed event: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventKindFailed:
		var ev FailedEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: failed event: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventKindState:
		var ev StateEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: state event: %v", ErrMalformed, err)
		}
		return ev, nil
	case EventKindHistory:
		var ev HistoryEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: history event: %v", ErrMalformed, err)
		}
		return ev, nil
	default:
		return UnknownEvent{Name: envelope.Event}, nil
	}
}

// Command is an outbound socket request. The daemon replies on the normal
// event stream; there is no acknowledgement contract.
type Command struct {
	Command string `json:"command"`
}

const (
	// CommandStatus asks the daemon to push a state event.
	CommandStatus = "status"
	// CommandHistory asks the daemon to push a history event.
	CommandHistory = "history"
)

// EncodeCommand renders a command as one newline-terminated JSON frame.
func EncodeCommand(command string) ([]byte, error) {
	data, err := json.Marshal(Command{Command: command})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
