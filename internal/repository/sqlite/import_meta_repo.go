package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
)

// attemptColumns is the scan list shared by the provenance queries.
const attemptColumns = `id, run_uuid, source_file, file_size, status,
	started_at, completed_at, records_inserted, duration_seconds, error_message`

// ImportMetaRepo owns the append-only _import_meta table: one row per load
// attempt, never deleted.
type ImportMetaRepo struct {
	db *sqlx.DB
}

// NewImportMetaRepo creates a SQLite-backed import provenance repository.
func NewImportMetaRepo(db *sqlx.DB) *ImportMetaRepo {
	return &ImportMetaRepo{db: db}
}

// EnsureSchema idempotently creates the provenance table and its indexes.
func (r *ImportMetaRepo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _import_meta (
		  id INTEGER PRIMARY KEY AUTOINCREMENT,
		  run_uuid TEXT,
		  source_file TEXT NOT NULL,
		  file_size INTEGER,
		  status TEXT NOT NULL DEFAULT 'pending',
		  started_at TEXT,
		  completed_at TEXT,
		  records_inserted INTEGER,
		  duration_seconds REAL,
		  error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_import_source ON _import_meta(source_file)`,
		`CREATE INDEX IF NOT EXISTS idx_import_status ON _import_meta(status)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("importMetaRepo.EnsureSchema: %w", err)
		}
	}
	return nil
}

// IsFileImported returns the most recent completed attempt with the exact
// same base name, or nil if there is none.
func (r *ImportMetaRepo) IsFileImported(ctx context.Context, sourcePath string) (*domain.ImportAttempt, error) {
	var attempt domain.ImportAttempt
	err := r.db.GetContext(ctx, &attempt,
		`SELECT `+attemptColumns+` FROM _import_meta
		 WHERE source_file = ? AND status = 'completed'
		 ORDER BY id DESC LIMIT 1`,
		filepath.Base(sourcePath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("importMetaRepo.IsFileImported: %w", err)
	}
	return &attempt, nil
}

// FindSuspectedDuplicate returns the most recent completed attempt whose
// recorded file size matches the given file's current size under a
// different name, or nil. A missing or empty source file never matches.
func (r *ImportMetaRepo) FindSuspectedDuplicate(ctx context.Context, sourcePath string) (*domain.ImportAttempt, error) {
	info, err := os.Stat(sourcePath)
	if err != nil || info.Size() == 0 {
		return nil, nil
	}
	var attempt domain.ImportAttempt
	err = r.db.GetContext(ctx, &attempt,
		`SELECT `+attemptColumns+` FROM _import_meta
		 WHERE file_size = ? AND source_file != ? AND status = 'completed'
		 ORDER BY id DESC LIMIT 1`,
		info.Size(), filepath.Base(sourcePath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("importMetaRepo.FindSuspectedDuplicate: %w", err)
	}
	return &attempt, nil
}

// StartImport inserts a pending attempt row, durable before any parsing
// begins, and returns its id.
func (r *ImportMetaRepo) StartImport(ctx context.Context, sourcePath, runID string) (int64, error) {
	var size *int64
	if info, err := os.Stat(sourcePath); err == nil {
		s := info.Size()
		size = &s
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO _import_meta (run_uuid, source_file, file_size, status, started_at)
		 VALUES (?, ?, ?, 'pending', ?)`,
		runID, filepath.Base(sourcePath), size, time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("importMetaRepo.StartImport: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("importMetaRepo.StartImport: %w", err)
	}
	return id, nil
}

// CompleteImport transitions the attempt to completed, stamping completion
// time, record count and duration.
func (r *ImportMetaRepo) CompleteImport(ctx context.Context, attemptID, records int64, duration time.Duration) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE _import_meta
		 SET status = 'completed', completed_at = ?, records_inserted = ?, duration_seconds = ?
		 WHERE id = ?`,
		time.Now().Format(time.RFC3339), records, duration.Seconds(), attemptID)
	if err != nil {
		return fmt.Errorf("importMetaRepo.CompleteImport: %w", err)
	}
	return checkAffected(res)
}

// FailImport transitions the attempt to failed. The triggering error's text
// is recorded as-is; nothing further is invented.
func (r *ImportMetaRepo) FailImport(ctx context.Context, attemptID int64, cause string) error {
	var msg *string
	if cause != "" {
		msg = &cause
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE _import_meta
		 SET status = 'failed', completed_at = ?, error_message = ?
		 WHERE id = ?`,
		time.Now().Format(time.RFC3339), msg, attemptID)
	if err != nil {
		return fmt.Errorf("importMetaRepo.FailImport: %w", err)
	}
	return checkAffected(res)
}

// ListImports returns all attempts, most recent first.
func (r *ImportMetaRepo) ListImports(ctx context.Context) ([]domain.ImportAttempt, error) {
	var attempts []domain.ImportAttempt
	err := r.db.SelectContext(ctx, &attempts,
		`SELECT `+attemptColumns+` FROM _import_meta ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("importMetaRepo.ListImports: %w", err)
	}
	return attempts, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}
