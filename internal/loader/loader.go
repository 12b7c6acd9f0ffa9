// Package loader drives a single load attempt: count, duplicate checks,
// schema preparation, the stream/extract/buffer/flush loop, and provenance
// completion or failure.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/extract"
	"rcn2sql/internal/gml"
	"rcn2sql/internal/repository/sqlite"
)

// Options are the boundary settings of one load invocation.
type Options struct {
	// BatchSize is the buffer threshold that triggers a coordinated flush.
	BatchSize int
	// LogEvery controls progress logging (every N processed features).
	LogEvery int
	// Force bypasses both duplicate checks.
	Force bool
}

// Result reports the outcome of one load attempt.
type Result struct {
	Skipped    bool
	SkipReason string
	SimilarTo  string

	AttemptID      int64
	RunID          string
	Processed      int64
	Inserted       int64
	SeenByKind     map[string]int64
	InsertedByKind map[string]int64
	Flushes        int
	Elapsed        time.Duration
}

// Loader composes the extractors, the batch buffers and the provenance
// tracker over one store connection.
type Loader struct {
	db         *sqlx.DB
	meta       *sqlite.ImportMetaRepo
	extractors []extract.Extractor
	byKind     map[string]extract.Extractor
	log        *slog.Logger
	opts       Options
}

// New builds a loader. The extractor registry is constructed here, once,
// and passed down — no process-wide state.
func New(db *sqlx.DB, log *slog.Logger, opts Options) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100000
	}
	extractors := extract.All(log)
	byKind := make(map[string]extract.Extractor, len(extractors))
	for _, ex := range extractors {
		byKind[ex.Kind()] = ex
	}
	return &Loader{
		db:         db,
		meta:       sqlite.NewImportMetaRepo(db),
		extractors: extractors,
		byKind:     byKind,
		log:        log,
		opts:       opts,
	}
}

// Run loads one GML file into the store. A duplicate file yields a skip
// result, not an error. Any error after the attempt row exists marks it
// failed and propagates.
func (l *Loader) Run(ctx context.Context, gmlPath string) (*Result, error) {
	log := l.log.With("source", filepath.Base(gmlPath))
	log.Info("RCN loader started", "gml", gmlPath,
		"batch_size", l.opts.BatchSize, "log_every", l.opts.LogEvery)

	log.Info("counting features in GML file")
	total, err := gml.CountFeaturesFile(gmlPath)
	if err != nil {
		return nil, fmt.Errorf("counting features: %w", err)
	}
	log.Info("total features to process", "total", total)

	if err := l.meta.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	if skip, err := l.checkDuplicates(ctx, log, gmlPath); err != nil || skip != nil {
		return skip, err
	}

	for _, ex := range l.extractors {
		if err := ex.EnsureSchema(ctx, l.db); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	attemptID, err := l.meta.StartImport(ctx, gmlPath, runID)
	if err != nil {
		return nil, err
	}
	log = log.With("attempt_id", attemptID, "run_id", runID)
	log.Info("started import")

	res := &Result{
		AttemptID:      attemptID,
		RunID:          runID,
		SeenByKind:     map[string]int64{},
		InsertedByKind: map[string]int64{},
	}
	start := time.Now()
	if err := l.ingest(ctx, log, gmlPath, attemptID, total, res); err != nil {
		if failErr := l.meta.FailImport(ctx, attemptID, err.Error()); failErr != nil {
			log.Error("recording import failure", "error", failErr)
		}
		log.Error("import failed", "error", err)
		return nil, err
	}
	res.Elapsed = time.Since(start)

	if err := l.meta.CompleteImport(ctx, attemptID, res.Inserted, res.Elapsed); err != nil {
		return nil, err
	}
	log.Info("import completed", "records", res.Inserted,
		"elapsed_secs", int(res.Elapsed.Seconds()))
	return res, nil
}

// checkDuplicates runs the exact-name then the same-size duplicate queries.
// A non-nil result means the load is skipped.
func (l *Loader) checkDuplicates(ctx context.Context, log *slog.Logger, gmlPath string) (*Result, error) {
	existing, err := l.meta.IsFileImported(ctx, gmlPath)
	if err != nil {
		return nil, err
	}
	if existing != nil && !l.opts.Force {
		log.Warn("file was already imported, use --force to re-import",
			"file_size", derefInt(existing.FileSize),
			"records", derefInt(existing.RecordsInserted))
		return &Result{Skipped: true, SkipReason: domain.SkipAlreadyImported}, nil
	}

	suspected, err := l.meta.FindSuspectedDuplicate(ctx, gmlPath)
	if err != nil {
		return nil, err
	}
	if suspected != nil && !l.opts.Force {
		log.Warn("suspected duplicate: same size as an already imported file, use --force to import anyway",
			"similar_to", suspected.SourceFile,
			"file_size", derefInt(suspected.FileSize),
			"records", derefInt(suspected.RecordsInserted))
		return &Result{
			Skipped:    true,
			SkipReason: domain.SkipSuspectedDuplicate,
			SimilarTo:  suspected.SourceFile,
		}, nil
	}
	return nil, nil
}

// ingest runs the streaming extraction loop and the coordinated flushes.
func (l *Loader) ingest(ctx context.Context, log *slog.Logger, gmlPath string, attemptID int64, total int, res *Result) error {
	reader, err := gml.OpenFeatureReader(gmlPath)
	if err != nil {
		return fmt.Errorf("opening gml file: %w", err)
	}
	defer func() { _ = reader.Close() }()

	buffers := make(map[string][]extract.Record, len(l.extractors))

	flush := func() error {
		tx, err := l.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning flush transaction: %w", err)
		}
		var batchRows int64
		var details []string
		for _, ex := range l.extractors {
			kind := ex.Kind()
			buf := buffers[kind]
			if len(buf) == 0 {
				continue
			}
			n, err := ex.InsertMany(ctx, tx, buf)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("inserting %s batch: %w", kind, err)
			}
			batchRows += int64(n)
			res.InsertedByKind[kind] += int64(n)
			details = append(details, fmt.Sprintf("%s=%d", kind, n))
			buffers[kind] = buf[:0]
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing flush: %w", err)
		}
		res.Inserted += batchRows
		res.Flushes++
		log.Info("flush", "batch_rows", batchRows,
			"detail", strings.Join(details, ", "), "total_inserted", res.Inserted)
		return nil
	}

	for {
		el, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading feature stream: %w", err)
		}
		res.Processed++

		kind := gml.Local(el.Tag)
		res.SeenByKind[kind]++

		ex, ok := l.byKind[kind]
		if !ok {
			log.Warn("unknown feature type", "kind", kind)
			continue
		}
		if rec, ok := ex.Parse(el); ok {
			if tagged, ok := rec.(domain.ImportTagged); ok {
				tagged.SetImportID(attemptID)
			}
			buffers[kind] = append(buffers[kind], rec)
			if len(buffers[kind]) >= l.opts.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}

		if l.opts.LogEvery > 0 && res.Processed%int64(l.opts.LogEvery) == 0 && total > 0 {
			pct := float64(res.Processed) / float64(total) * 100
			log.Info("progress", "pct", fmt.Sprintf("%.1f", pct),
				"processed", res.Processed, "total", total, "inserted", res.Inserted)
		}
	}

	if err := flush(); err != nil {
		return err
	}

	if int64(total) != res.Processed {
		// Pre-count is informational only; no reconciliation.
		log.Info("pre-counted total differs from processed features",
			"counted", total, "processed", res.Processed)
	}

	for _, kind := range sortedKeys(res.SeenByKind) {
		log.Info("seen by type", "kind", kind, "count", res.SeenByKind[kind])
	}
	for _, kind := range sortedKeys(res.InsertedByKind) {
		log.Info("inserted by type", "kind", kind, "count", res.InsertedByKind[kind])
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
