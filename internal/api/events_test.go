package api

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeEventStarted(t *testing.T) {
	line := []byte(`{"event":"started","filename":"interview.mp4","duration_seconds":183.4,"timestamp":"2026-08-27T10:00:00"}` + "\n")

	ev, err := DecodeEvent(line)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	started, ok := ev.(StartedEvent)
	if !ok {
		t.Fatalf("expected StartedEvent, got %T", ev)
	}
	if started.Filename != "interview.mp4" {
		t.Errorf("Filename mismatch: got %q", started.Filename)
	}
	if started.DurationSeconds != 183.4 {
		t.Errorf("DurationSeconds mismatch: got %v", started.DurationSeconds)
	}
}

func TestDecodeEventProgress(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"progress","percent":42.5,"stage":"transcribe"}`))
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	progress, ok := ev.(ProgressEvent)
	if !ok {
		t.Fatalf("expected ProgressEvent, got %T", ev)
	}
	if progress.Percent != 42.5 || progress.Stage != "transcribe" {
		t.Errorf("unexpected progress payload: %+v", progress)
	}
}

func TestDecodeEventCompletedCarriesRecord(t *testing.T) {
	line := []byte(`{"event":"completed","id":"a1b2c3d4","filename":"talk.mp3","transcript_path":"/out/talk.txt","duration_seconds":61,"language":"sv","speaker_count":2,"timestamp":"2026-08-27T10:05:00"}`)

	ev, err := DecodeEvent(line)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	completed, ok := ev.(CompletedEvent)
	if !ok {
		t.Fatalf("expected CompletedEvent, got %T", ev)
	}
	if completed.ID != "a1b2c3d4" {
		t.Errorf("ID mismatch: got %q", completed.ID)
	}
	if completed.Language != "sv" || completed.SpeakerCount != 2 {
		t.Errorf("record fields mismatch: %+v", completed)
	}
}

func TestDecodeEventStateWithHistory(t *testing.T) {
	line := []byte(`{"event":"state","status":"transcribing","current":{"filename":"a.mp4","stage":"align","progress_percent":70},"queue":["b.mp4"],"history":[{"id":"x1","original_filename":"c.mp4","completed_at":"2026-08-26T09:00:00","success":true}]}`)

	ev, err := DecodeEvent(line)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	state, ok := ev.(StateEvent)
	if !ok {
		t.Fatalf("expected StateEvent, got %T", ev)
	}
	if state.Status != DaemonTranscribing {
		t.Errorf("Status mismatch: got %q", state.Status)
	}
	if state.Current == nil || state.Current.Stage != "align" {
		t.Errorf("Current mismatch: %+v", state.Current)
	}
	if len(state.Queue) != 1 || state.Queue[0] != "b.mp4" {
		t.Errorf("Queue mismatch: %v", state.Queue)
	}
	if len(state.History) != 1 || state.History[0].ID != "x1" {
		t.Errorf("History mismatch: %+v", state.History)
	}
}

func TestDecodeEventUnknownKindIsNotAnError(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"telemetry","data":123}`))
	if err != nil {
		t.Fatalf("unknown kinds must decode: %v", err)
	}
	unknown, ok := ev.(UnknownEvent)
	if !ok {
		t.Fatalf("expected UnknownEvent, got %T", ev)
	}
	if unknown.Name != "telemetry" {
		t.Errorf("Name mismatch: got %q", unknown.Name)
	}
}

func TestDecodeEventMalformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not json",
		`{"event":"progress","percent":"high"}`,
	}
	for _, line := range cases {
		if _, err := DecodeEvent([]byte(line)); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeEvent(%q) = %v, want ErrMalformed", line, err)
		}
	}
}

func TestEncodeCommand(t *testing.T) {
	data, err := EncodeCommand(CommandHistory)
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}
	payload := string(data)
	if !strings.HasSuffix(payload, "\n") {
		t.Errorf("command frame must be newline terminated: %q", payload)
	}
	if strings.TrimSpace(payload) != `{"command":"history"}` {
		t.Errorf("unexpected frame: %q", payload)
	}
}
