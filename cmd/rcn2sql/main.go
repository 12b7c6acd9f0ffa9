// Command rcn2sql converts RCN GML feature files into queryable SQLite
// tables and optionally materializes the denormalized wide table.
//
// Usage:
//
//	rcn2sql parse --gml <file.gml> --db <database.sqlite>
//	rcn2sql build-wide --db <database.sqlite> --table <table_name>
//	rcn2sql pipeline --gml <file.gml> --db <database.sqlite>
//	rcn2sql imports --db <database.sqlite>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"rcn2sql/internal/config"
	"rcn2sql/internal/domain"
	"rcn2sql/internal/export"
	"rcn2sql/internal/loader"
	"rcn2sql/internal/logging"
	"rcn2sql/internal/repository/sqlite"
	"rcn2sql/internal/widetable"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the pieces every subcommand needs.
type app struct {
	cfg *config.Config
	log *slog.Logger
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rcn2sql",
		Short:         "RCN GML to SQLite converter",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newParseCmd(), newBuildWideCmd(), newPipelineCmd(), newImportsCmd())
	return root
}

func newParseCmd() *cobra.Command {
	var (
		gmlPattern string
		dbPath     string
		batch      int
		logEvery   int
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse GML file(s) into raw SQLite tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			applyOverrides(a.cfg, dbPath, batch, logEvery, 0)
			return runParse(cmd, a, gmlPattern, force)
		},
	}
	cmd.Flags().StringVar(&gmlPattern, "gml", "", "Path or glob matching RCN GML file(s)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	cmd.Flags().IntVar(&batch, "batch", 0, "Batch size for inserts")
	cmd.Flags().IntVar(&logEvery, "log-every", 0, "Log progress every N features")
	cmd.Flags().BoolVar(&force, "force", false, "Re-import even if the file looks already imported")
	_ = cmd.MarkFlagRequired("gml")
	return cmd
}

func newBuildWideCmd() *cobra.Command {
	var (
		dbPath  string
		table   string
		limit   int
		drop    bool
		timeout int
	)
	cmd := &cobra.Command{
		Use:   "build-wide",
		Short: "Build denormalized wide table from raw tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			applyOverrides(a.cfg, dbPath, 0, 0, timeout)
			res, err := runBuildWide(cmd, a, table, limit, drop)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created table: %s (%d rows)\n", res.Table, res.RowCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	cmd.Flags().StringVar(&table, "table", "", "Output table name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit rows (for testing)")
	cmd.Flags().BoolVar(&drop, "drop", false, "Drop table if exists")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "SQLite busy timeout (seconds)")
	return cmd
}

func newPipelineCmd() *cobra.Command {
	var (
		gmlPattern string
		dbPath     string
		batch      int
		logEvery   int
		table      string
		limit      int
		timeout    int
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run full pipeline: parse -> build-wide",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			applyOverrides(a.cfg, dbPath, batch, logEvery, timeout)
			if err := runParse(cmd, a, gmlPattern, force); err != nil {
				return err
			}
			res, err := runBuildWide(cmd, a, table, limit, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline done. Wide table: %s (%d rows)\n", res.Table, res.RowCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&gmlPattern, "gml", "", "Path or glob matching RCN GML file(s)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	cmd.Flags().IntVar(&batch, "batch", 0, "Batch size for inserts")
	cmd.Flags().IntVar(&logEvery, "log-every", 0, "Log progress every N features")
	cmd.Flags().StringVar(&table, "table", "", "Output wide table name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Limit wide table rows (for testing)")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "SQLite busy timeout (seconds)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-import even if the file looks already imported")
	_ = cmd.MarkFlagRequired("gml")
	return cmd
}

func newImportsCmd() *cobra.Command {
	var (
		dbPath   string
		csvPath  string
		xlsxPath string
	)
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List import attempts, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			applyOverrides(a.cfg, dbPath, 0, 0, 0)
			return runImports(cmd, a, csvPath, xlsxPath)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write import history to a CSV file")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write import history to an Excel file")
	return cmd
}

// applyOverrides folds non-zero flag values over the config defaults.
func applyOverrides(cfg *config.Config, dbPath string, batch, logEvery, timeout int) {
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if batch > 0 {
		cfg.Load.BatchSize = batch
	}
	if logEvery > 0 {
		cfg.Load.LogEvery = logEvery
	}
	if timeout > 0 {
		cfg.DB.BusyTimeoutSecs = timeout
	}
}

func runParse(cmd *cobra.Command, a *app, gmlPattern string, force bool) error {
	matches, err := doublestar.FilepathGlob(gmlPattern)
	if err != nil {
		return fmt.Errorf("expanding gml pattern: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNoSourceFiles, gmlPattern)
	}

	db, err := sqlite.NewDB(&a.cfg.DB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	l := loader.New(db, a.log, loader.Options{
		BatchSize: a.cfg.Load.BatchSize,
		LogEvery:  a.cfg.Load.LogEvery,
		Force:     force,
	})
	for _, gmlPath := range matches {
		res, err := l.Run(cmd.Context(), gmlPath)
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s: %s\n", gmlPath, skipDetail(res))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s: processed=%d inserted=%d (%.0fs)\n",
			gmlPath, res.Processed, res.Inserted, res.Elapsed.Seconds())
	}
	return nil
}

func skipDetail(res *loader.Result) string {
	if res.SimilarTo != "" {
		return fmt.Sprintf("%s (similar to %s)", res.SkipReason, res.SimilarTo)
	}
	return res.SkipReason
}

func runBuildWide(cmd *cobra.Command, a *app, table string, limit int, drop bool) (*widetable.Result, error) {
	if table == "" {
		table = a.cfg.Wide.Table
	}
	db, err := sqlite.NewDB(&a.cfg.DB)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	return widetable.Build(cmd.Context(), db, a.log, widetable.Options{
		Table: table,
		Limit: limit,
		Drop:  drop,
	})
}

func runImports(cmd *cobra.Command, a *app, csvPath, xlsxPath string) error {
	db, err := sqlite.NewDB(&a.cfg.DB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	repo := sqlite.NewImportMetaRepo(db)
	if err := repo.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	attempts, err := repo.ListImports(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, att := range attempts {
		records := int64(0)
		if att.RecordsInserted != nil {
			records = *att.RecordsInserted
		}
		fmt.Fprintf(out, "#%d %s status=%s records=%d started=%s\n",
			att.ID, att.SourceFile, att.Status, records, stringOr(att.StartedAt, "-"))
	}
	if len(attempts) == 0 {
		fmt.Fprintln(out, "No imports recorded.")
	}

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("creating csv file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w := export.NewWriter(f)
		if err := w.WriteHeader(); err != nil {
			return err
		}
		if err := w.WriteAttempts(attempts); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if xlsxPath != "" {
		if err := export.WriteXLSX(xlsxPath, attempts); err != nil {
			return err
		}
	}
	return nil
}

func stringOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
