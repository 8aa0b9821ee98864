package history

import (
	"testing"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/logging"
)

func newTestReconciler() *Reconciler {
	return NewReconciler(logging.NewNop())
}

func TestMergeKeepsExistingRecords(t *testing.T) {
	r := newTestReconciler()

	eventRecord := api.Transcript{
		ID:               "ab12cd34",
		OriginalFilename: "from-event.mp4",
		CompletedAt:      "2026-08-27T10:00:00",
		Success:          true,
	}
	if added := r.Merge([]api.Transcript{eventRecord}); len(added) != 1 {
		t.Fatalf("first merge added %d records, want 1", len(added))
	}

	fileRecord := eventRecord
	fileRecord.OriginalFilename = "from-file.mp4"
	if added := r.Merge([]api.Transcript{fileRecord}); len(added) != 0 {
		t.Fatalf("duplicate id must not be re-added, got %d", len(added))
	}

	records := r.Records()
	if len(records) != 1 {
		t.Fatalf("Records len = %d, want 1", len(records))
	}
	if records[0].OriginalFilename != "from-event.mp4" {
		t.Errorf("the first-seen record must win, got %q", records[0].OriginalFilename)
	}
}

func TestMergeSortsByCompletedAtDescending(t *testing.T) {
	r := newTestReconciler()
	r.Merge([]api.Transcript{
		{ID: "old", CompletedAt: "2026-08-25T08:00:00"},
		{ID: "broken", CompletedAt: "not-a-time"},
		{ID: "new", CompletedAt: "2026-08-27T08:00:00"},
		{ID: "mid", CompletedAt: "2026-08-26T08:00:00"},
	})

	records := r.Records()
	got := make([]string, 0, len(records))
	for _, record := range records {
		got = append(got, record.ID)
	}

	want := []string{"new", "mid", "old", "broken"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMergeTieBreaksOnID(t *testing.T) {
	r := newTestReconciler()
	r.Merge([]api.Transcript{
		{ID: "bbb", CompletedAt: "2026-08-27T08:00:00"},
		{ID: "aaa", CompletedAt: "2026-08-27T08:00:00"},
	})

	records := r.Records()
	if records[0].ID != "aaa" || records[1].ID != "bbb" {
		t.Errorf("equal timestamps must order by id: %q, %q", records[0].ID, records[1].ID)
	}
}

func TestMergeAssignsIDsToBlankRecords(t *testing.T) {
	r := newTestReconciler()
	added := r.Merge([]api.Transcript{
		{OriginalFilename: "a.mp4", CompletedAt: "2026-08-27T08:00:00"},
		{ID: "  ", OriginalFilename: "b.mp4", CompletedAt: "2026-08-27T09:00:00"},
	})

	if len(added) != 2 {
		t.Fatalf("added %d records, want 2", len(added))
	}
	for _, record := range added {
		if len(record.ID) != 8 {
			t.Errorf("generated id %q, want 8 characters", record.ID)
		}
	}
	if added[0].ID == added[1].ID {
		t.Errorf("generated ids must be distinct")
	}
}

func TestApplyCompletedBuildsRecord(t *testing.T) {
	r := newTestReconciler()

	record, ok := r.ApplyCompleted(api.CompletedEvent{
		ID:              "ab12cd34",
		Filename:        "talk.mp3",
		TranscriptPath:  "/out/talk.txt",
		DurationSeconds: 61,
		Language:        "sv",
		SpeakerCount:    2,
		Timestamp:       "2026-08-27T10:05:00",
	})
	if !ok {
		t.Fatal("ApplyCompleted reported duplicate for a fresh event")
	}
	if record.ID != "ab12cd34" || record.OriginalFilename != "talk.mp3" || !record.Success {
		t.Errorf("unexpected record: %+v", record)
	}

	if _, ok := r.ApplyCompleted(api.CompletedEvent{ID: "ab12cd34"}); ok {
		t.Error("re-applying the same event must report a duplicate")
	}
}

func TestApplyCompletedStampsMissingTimestamp(t *testing.T) {
	r := newTestReconciler()
	record, ok := r.ApplyCompleted(api.CompletedEvent{ID: "x1", Filename: "a.mp4"})
	if !ok {
		t.Fatal("ApplyCompleted failed")
	}
	if _, parsed := record.CompletedTime(); !parsed {
		t.Errorf("generated timestamp %q must parse", record.CompletedAt)
	}
}

func TestMergeEmptyListIsNoOp(t *testing.T) {
	r := newTestReconciler()
	if added := r.Merge(nil); added != nil {
		t.Errorf("Merge(nil) = %v, want nil", added)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
