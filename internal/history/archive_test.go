package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := OpenArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("OpenArchive failed: %v", err)
	}
	t.Cleanup(func() { _ = archive.Close() })
	return archive
}

func TestArchiveRecordAndList(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	records := []api.Transcript{
		{ID: "a1", OriginalFilename: "old.mp4", CompletedAt: "2026-08-25T08:00:00", Success: true},
		{ID: "b2", OriginalFilename: "new.mp4", CompletedAt: "2026-08-27T08:00:00", Success: true, Language: "en"},
	}
	for _, record := range records {
		if err := archive.Record(ctx, record); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	listed, err := archive.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("List returned %d records, want 2", len(listed))
	}
	if listed[0].ID != "b2" {
		t.Errorf("List must order newest first, got %q", listed[0].ID)
	}
	if listed[0].Language != "en" || !listed[0].Success {
		t.Errorf("round-tripped record mismatch: %+v", listed[0])
	}
}

func TestArchiveRecordFirstWriteWins(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	first := api.Transcript{ID: "a1", OriginalFilename: "first.mp4", CompletedAt: "2026-08-27T08:00:00"}
	if err := archive.Record(ctx, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	second := first
	second.OriginalFilename = "second.mp4"
	if err := archive.Record(ctx, second); err != nil {
		t.Fatalf("duplicate Record must not error: %v", err)
	}

	listed, err := archive.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("List returned %d records, want 1", len(listed))
	}
	if listed[0].OriginalFilename != "first.mp4" {
		t.Errorf("existing record must be untouched, got %q", listed[0].OriginalFilename)
	}
}

func TestArchiveRecordRejectsEmptyID(t *testing.T) {
	archive := openTestArchive(t)
	if err := archive.Record(context.Background(), api.Transcript{}); err == nil {
		t.Error("Record must reject an empty id")
	}
}

func TestArchiveListLimit(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	for _, record := range []api.Transcript{
		{ID: "a1", CompletedAt: "2026-08-25T08:00:00"},
		{ID: "b2", CompletedAt: "2026-08-26T08:00:00"},
		{ID: "c3", CompletedAt: "2026-08-27T08:00:00"},
	} {
		if err := archive.Record(ctx, record); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	listed, err := archive.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "c3" || listed[1].ID != "b2" {
		t.Errorf("limited list mismatch: %+v", listed)
	}
}

func TestArchiveCount(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	count, err := archive.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("empty archive Count = %d, want 0", count)
	}

	if err := archive.Record(ctx, api.Transcript{ID: "a1", CompletedAt: "2026-08-27T08:00:00"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	count, err = archive.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestArchiveReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	archive, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive failed: %v", err)
	}
	if err := archive.Record(context.Background(), api.Transcript{ID: "a1", CompletedAt: "2026-08-27T08:00:00"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count after reopen = %d, want 1", count)
	}
}
