// Package widetable materializes the denormalized reporting table by
// joining the raw tables, transaction outward through property to parcel,
// building, unit and their addresses.
package widetable

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Options configure one build.
type Options struct {
	// Table is the output table name.
	Table string
	// Limit caps the row count; zero means no limit. Useful for testing.
	Limit int
	// Drop removes a pre-existing output table first.
	Drop bool
}

// Result reports the outcome of a build.
type Result struct {
	Table    string
	RowCount int64
	Elapsed  time.Duration
}

const wideSelectSQL = `
SELECT
	tx.id AS transakcja_id,
	tx.nieruchomosc_fk,
	tx.dokument_fk,
	tx.cena_transakcji_brutto,
	tx.data_wpisu AS transakcja_data_wpisu,
	tx.import_id,

	nier.id AS nieruchomosc_id,
	nier.rodzaj_nieruchomosci,
	nier.rodzaj_prawa_do_nieruchomosci,
	nier.udzial_w_prawie_do_nieruchomosci,
	nier.cena_nieruchomosci_brutto,
	nier.data_wpisu AS nieruchomosc_data_wpisu,

	dok.id AS dokument_id,
	dok.oznaczenie_dokumentu,
	dok.data_sporzadzenia_dokumentu,
	dok.tworca_dokumentu,

	dzi.id AS dzialka_id,
	dzi.id_dzialki,
	dzi.pole_powierzchni_ewidencyjnej,
	dzi.sposob_uzytkowania,

	bud.id AS budynek_id,
	bud.id_budynku,
	bud.liczba_kondygnacji,
	bud.liczba_mieszkan,
	bud.rodzaj_budynku,

	lok.id AS lokal_id,
	lok.id_lokalu,
	lok.numer_lokalu,
	lok.funkcja_lokalu,
	lok.liczba_izb,
	lok.nr_kondygnacji,
	lok.pow_uzytkowo_lokalu,
	lok.cena_lokalu_brutto,

	adr_dzi.id AS adres_dzialki_id,
	adr_dzi.miejscowosc AS adres_dzialki_miejscowosc,
	adr_dzi.ulica AS adres_dzialki_ulica,
	adr_dzi.numer_porzadkowy AS adres_dzialki_numer,

	adr_bud.id AS adres_budynku_id,
	adr_bud.miejscowosc AS adres_budynku_miejscowosc,
	adr_bud.ulica AS adres_budynku_ulica,
	adr_bud.numer_porzadkowy AS adres_budynku_numer,

	adr_lok.id AS adres_lokalu_id,
	adr_lok.miejscowosc AS adres_lokalu_miejscowosc,
	adr_lok.ulica AS adres_lokalu_ulica,
	adr_lok.numer_porzadkowy AS adres_lokalu_numer
FROM raw_transakcja tx
LEFT JOIN raw_nieruchomosc nier ON tx.nieruchomosc_fk = nier.id
LEFT JOIN raw_dokument dok ON tx.dokument_fk = dok.id
LEFT JOIN raw_dzialka dzi ON nier.dzialka_fk = dzi.id
LEFT JOIN raw_budynek bud ON nier.budynek_fk = bud.id
LEFT JOIN raw_lokal lok ON nier.lokal_fk = lok.id
LEFT JOIN raw_adres adr_dzi ON dzi.adres_dzialki_fk = adr_dzi.id
LEFT JOIN raw_adres adr_bud ON bud.adres_budynku_fk = adr_bud.id
LEFT JOIN raw_adres adr_lok ON lok.adres_budynku_z_lokalem_fk = adr_lok.id`

// indexColumns are the joined-through id columns indexed on the output.
var indexColumns = []string{
	"transakcja_id", "nieruchomosc_id", "dzialka_id",
	"budynek_id", "lokal_id", "import_id",
}

// Build creates the wide table and its indexes. Store-level failures such
// as lock contention surface with remediation guidance.
func Build(ctx context.Context, db *sqlx.DB, log *slog.Logger, opts Options) (*Result, error) {
	if opts.Table == "" {
		opts.Table = "rcn_wide"
	}
	log.Info("RCN build-wide started", "table", opts.Table,
		"limit", opts.Limit, "drop", opts.Drop)

	start := time.Now()

	if opts.Drop {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", opts.Table)); err != nil {
			return nil, wrapStoreErr("dropping wide table", err)
		}
		log.Info("dropped existing table", "table", opts.Table)
	}

	selectSQL := wideSelectSQL
	if opts.Limit > 0 {
		selectSQL = fmt.Sprintf("%s\nLIMIT %d", selectSQL, opts.Limit)
	}

	log.Info("building wide table")
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s AS %s", opts.Table, selectSQL)); err != nil {
		return nil, wrapStoreErr("creating wide table", err)
	}

	log.Info("creating indexes")
	for _, col := range indexColumns {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			opts.Table, col, opts.Table, col)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, wrapStoreErr("creating wide table index", err)
		}
	}

	var rowCount int64
	if err := db.GetContext(ctx, &rowCount, fmt.Sprintf("SELECT COUNT(*) FROM %s", opts.Table)); err != nil {
		return nil, wrapStoreErr("counting wide table rows", err)
	}

	elapsed := time.Since(start)
	log.Info("build-wide done", "table", opts.Table, "rows", rowCount,
		"elapsed_secs", fmt.Sprintf("%.1f", elapsed.Seconds()))
	return &Result{Table: opts.Table, RowCount: rowCount, Elapsed: elapsed}, nil
}

func wrapStoreErr(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") {
		return fmt.Errorf("%s: %w (database is locked: close other connections and retry)", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
