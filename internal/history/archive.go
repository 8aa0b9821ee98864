package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jimmystridh/whisperx-transcription/internal/api"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current archive schema version. Bump on schema
// changes; users clear the archive database after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the archive database was created by an
// incompatible version.
var ErrSchemaMismatch = errors.New("archive schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Archive persists every transcript the client has ever observed, outliving
// the daemon's 50-record history file cap.
type Archive struct {
	db   *sql.DB
	path string
}

// OpenArchive initializes or connects to the archive database.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	archive := &Archive{db: db, path: path}
	if err := archive.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return archive, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Path returns the database file location.
func (a *Archive) Path() string { return a.path }

// Record stores a transcript. An existing id is left untouched so the first
// observation of a record wins, mirroring the in-memory merge rule.
func (a *Archive) Record(ctx context.Context, t api.Transcript) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("transcript id cannot be empty")
	}
	return a.execWithRetry(ctx, `
		INSERT OR IGNORE INTO transcripts
			(id, original_filename, transcript_path, completed_at,
			 duration_seconds, language, speaker_count, success, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OriginalFilename, t.TranscriptPath, t.CompletedAt,
		t.DurationSeconds, t.Language, t.SpeakerCount, boolToInt(t.Success), t.Error,
		time.Now().UTC().Format(time.RFC3339))
}

// List returns archived transcripts ordered by completed_at descending.
// limit <= 0 returns everything.
func (a *Archive) List(ctx context.Context, limit int) ([]api.Transcript, error) {
	query := `
		SELECT id, original_filename, transcript_path, completed_at,
		       duration_seconds, language, speaker_count, success, error
		FROM transcripts
		ORDER BY completed_at DESC, id ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var records []api.Transcript
	for rows.Next() {
		var t api.Transcript
		var success int
		if err := rows.Scan(&t.ID, &t.OriginalFilename, &t.TranscriptPath, &t.CompletedAt,
			&t.DurationSeconds, &t.Language, &t.SpeakerCount, &success, &t.Error); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		t.Success = success != 0
		records = append(records, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}
	return records, nil
}

// Count reports the number of archived transcripts.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var count int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM transcripts").Scan(&count); err != nil {
		return 0, fmt.Errorf("count archive rows: %w", err)
	}
	return count, nil
}

func (a *Archive) initSchema(ctx context.Context) error {
	var tableExists int
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return a.createSchema(ctx)
	}

	var version int
	err = a.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, a.path)
	}
	return nil
}

func (a *Archive) createSchema(ctx context.Context) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (a *Archive) execWithRetry(ctx context.Context, query string, args ...any) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = a.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
