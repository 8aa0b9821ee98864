package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
	"github.com/jimmystridh/whisperx-transcription/internal/fileutil"
)

const dismissLockTimeout = 2 * time.Second

// DismissError rewrites state.json with status idle and the error message
// cleared, stamped with the current time. This is the only write the client
// ever performs into daemon state. A file lock guards against racing the
// daemon's own writer; the write itself is atomic.
func DismissError(ctx context.Context, paths Paths) error {
	lock := flock.New(paths.LockFile)
	lockCtx, cancel := context.WithTimeout(ctx, dismissLockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire state lock: %s busy", paths.LockFile)
	}
	defer func() { _ = lock.Unlock() }()

	snap, err := api.ReadStateSnapshot(paths.StateFile)
	if err != nil {
		return fmt.Errorf("dismiss error: %w", err)
	}
	if snap == nil {
		snap = &api.StateSnapshot{}
	}

	snap.Status = api.DaemonIdle
	snap.Current = nil
	snap.ErrorMessage = ""
	snap.LastUpdated = time.Now().Format(time.RFC3339)
	if snap.Queue == nil {
		snap.Queue = []string{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(paths.StateFile, data, 0o644); err != nil {
		return fmt.Errorf("write state snapshot: %w", err)
	}
	return nil
}
