package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/gml"
)

const insertPropertySQL = `
INSERT OR REPLACE INTO raw_nieruchomosc (
	id, rodzaj_nieruchomosci, rodzaj_prawa_do_nieruchomosci,
	udzial_w_prawie_do_nieruchomosci, cena_nieruchomosci_brutto,
	dzialka_fk, budynek_fk, lokal_fk, data_wpisu, raw_xml
) VALUES (
	:id, :rodzaj_nieruchomosci, :rodzaj_prawa_do_nieruchomosci,
	:udzial_w_prawie_do_nieruchomosci, :cena_nieruchomosci_brutto,
	:dzialka_fk, :budynek_fk, :lokal_fk, :data_wpisu, :raw_xml
)`

// PropertyExtractor extracts RCN_Nieruchomosc features into raw_nieruchomosc.
type PropertyExtractor struct {
	base
}

func NewPropertyExtractor(log *slog.Logger) *PropertyExtractor {
	return &PropertyExtractor{base{log: log, kind: domain.KindProperty}}
}

func (e *PropertyExtractor) Kind() string { return domain.KindProperty }

func (e *PropertyExtractor) EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	err := execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS raw_nieruchomosc (
		  id                                  TEXT PRIMARY KEY,
		  rodzaj_nieruchomosci                TEXT,
		  rodzaj_prawa_do_nieruchomosci       TEXT,
		  udzial_w_prawie_do_nieruchomosci    TEXT,
		  cena_nieruchomosci_brutto           NUMERIC,
		  dzialka_fk                          TEXT,
		  budynek_fk                          TEXT,
		  lokal_fk                            TEXT,
		  data_wpisu                          DATE,
		  raw_xml                             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nier_dzialka ON raw_nieruchomosc(dzialka_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_nier_budynek ON raw_nieruchomosc(budynek_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_nier_lokal ON raw_nieruchomosc(lokal_fk)`,
	)
	if err != nil {
		return fmt.Errorf("property schema: %w", err)
	}
	return nil
}

func (e *PropertyExtractor) Parse(el *gml.Element) (Record, bool) {
	fid, ok := e.id(el)
	if !ok {
		return nil, false
	}
	return &domain.Property{
		ID:           fid,
		PropertyType: e.text(el, "rodzajNieruchomosci", false),
		RightType:    e.text(el, "rodzajPrawaDoNieruchomosci", false),
		RightShare:   e.text(el, "udzialWPrawieDoNieruchomosci", false),
		GrossPrice:   e.text(el, "cenaNieruchomosciBrutto", false),
		ParcelRef:    e.ref(el, "dzialka", false),
		BuildingRef:  e.ref(el, "budynek", false),
		UnitRef:      e.ref(el, "lokal", false),
		EntryDate:    e.entryDate(fid),
		RawXML:       el.String(),
	}, true
}

func (e *PropertyExtractor) InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error) {
	recs := make([]*domain.Property, len(rows))
	for i, r := range rows {
		recs[i] = r.(*domain.Property)
	}
	return insertChunked(ctx, tx, insertPropertySQL, recs)
}
