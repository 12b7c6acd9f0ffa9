package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/gml"
)

const insertTransactionSQL = `
INSERT OR REPLACE INTO raw_transakcja (
	id, nieruchomosc_fk, dokument_fk, cena_transakcji_brutto,
	data_wpisu, raw_xml, import_id
) VALUES (
	:id, :nieruchomosc_fk, :dokument_fk, :cena_transakcji_brutto,
	:data_wpisu, :raw_xml, :import_id
)`

// TransactionExtractor extracts RCN_Transakcja features into raw_transakcja.
type TransactionExtractor struct {
	base
}

func NewTransactionExtractor(log *slog.Logger) *TransactionExtractor {
	return &TransactionExtractor{base{log: log, kind: domain.KindTransaction}}
}

func (e *TransactionExtractor) Kind() string { return domain.KindTransaction }

func (e *TransactionExtractor) EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	err := execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS raw_transakcja (
		  id                TEXT PRIMARY KEY,
		  nieruchomosc_fk   TEXT,
		  dokument_fk       TEXT,
		  cena_transakcji_brutto NUMERIC,
		  data_wpisu        DATE,
		  raw_xml           TEXT,
		  import_id         INTEGER REFERENCES _import_meta(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_nier ON raw_transakcja(nieruchomosc_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_doc  ON raw_transakcja(dokument_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_import ON raw_transakcja(import_id)`,
	)
	if err != nil {
		return fmt.Errorf("transaction schema: %w", err)
	}
	return nil
}

func (e *TransactionExtractor) Parse(el *gml.Element) (Record, bool) {
	fid, ok := e.id(el)
	if !ok {
		return nil, false
	}
	return &domain.Transaction{
		ID:          fid,
		PropertyRef: e.ref(el, "nieruchomosc", true),
		DocumentRef: e.ref(el, "podstawaPrawna", false),
		GrossPrice:  e.text(el, "cenaTransakcjiBrutto", false),
		EntryDate:   e.entryDate(fid),
		RawXML:      el.String(),
	}, true
}

func (e *TransactionExtractor) InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error) {
	recs := make([]*domain.Transaction, len(rows))
	for i, r := range rows {
		recs[i] = r.(*domain.Transaction)
	}
	return insertChunked(ctx, tx, insertTransactionSQL, recs)
}
