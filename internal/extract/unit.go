package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/gml"
)

const insertUnitSQL = `
INSERT OR REPLACE INTO raw_lokal (
	id, id_lokalu, numer_lokalu, funkcja_lokalu, liczba_izb,
	nr_kondygnacji, pow_uzytkowo_lokalu, cena_lokalu_brutto,
	adres_budynku_z_lokalem_fk, data_wpisu, raw_xml, import_id
) VALUES (
	:id, :id_lokalu, :numer_lokalu, :funkcja_lokalu, :liczba_izb,
	:nr_kondygnacji, :pow_uzytkowo_lokalu, :cena_lokalu_brutto,
	:adres_budynku_z_lokalem_fk, :data_wpisu, :raw_xml, :import_id
)`

// unitMarker precedes the unit number inside a compound lokal identifier,
// e.g. "146519_8.0204.4/3.7_BUD.21_LOK" -> "21".
const unitMarker = "BUD."

// UnitExtractor extracts RCN_Lokal features into raw_lokal.
type UnitExtractor struct {
	base
}

func NewUnitExtractor(log *slog.Logger) *UnitExtractor {
	return &UnitExtractor{base{log: log, kind: domain.KindUnit}}
}

func (e *UnitExtractor) Kind() string { return domain.KindUnit }

func (e *UnitExtractor) EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	err := execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS raw_lokal (
		  id                          TEXT PRIMARY KEY,
		  id_lokalu                   TEXT,
		  numer_lokalu                TEXT,
		  funkcja_lokalu              TEXT,
		  liczba_izb                  INTEGER,
		  nr_kondygnacji              INTEGER,
		  pow_uzytkowo_lokalu         NUMERIC,
		  cena_lokalu_brutto          NUMERIC,
		  adres_budynku_z_lokalem_fk  TEXT,
		  data_wpisu                  DATE,
		  raw_xml                     TEXT,
		  import_id                   INTEGER REFERENCES _import_meta(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lok_adres ON raw_lokal(adres_budynku_z_lokalem_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_lok_id ON raw_lokal(id_lokalu)`,
		`CREATE INDEX IF NOT EXISTS idx_lok_numer ON raw_lokal(numer_lokalu)`,
		`CREATE INDEX IF NOT EXISTS idx_lok_import ON raw_lokal(import_id)`,
	)
	if err != nil {
		return fmt.Errorf("unit schema: %w", err)
	}
	return nil
}

// unitNumber reads the short numeric suffix between the marker and the next
// '_' or '.' delimiter out of a compound identifier. Empty when the marker
// is absent.
func unitNumber(compound string) string {
	i := strings.Index(compound, unitMarker)
	if i < 0 {
		return ""
	}
	after := compound[i+len(unitMarker):]
	if j := strings.IndexAny(after, "_."); j >= 0 {
		return strings.TrimSpace(after[:j])
	}
	return strings.TrimSpace(after)
}

func (e *UnitExtractor) Parse(el *gml.Element) (Record, bool) {
	fid, ok := e.id(el)
	if !ok {
		return nil, false
	}
	compound := e.text(el, "idLokalu", false)
	var number *string
	if compound != nil {
		number = optional(unitNumber(*compound))
	}
	return &domain.Unit{
		ID:         fid,
		CompoundID: compound,
		UnitNumber: number,
		Function:   e.text(el, "funkcjaLokalu", false),
		RoomCount:  e.text(el, "liczbaIzb", false),
		Storey:     e.text(el, "nrKondygnacji", false),
		UsableArea: e.text(el, "powUzytkowaLokalu", false),
		GrossPrice: e.text(el, "cenaLokaluBrutto", false),
		AddressRef: e.ref(el, "adresBudynkuZLokalem", false),
		EntryDate:  e.entryDate(fid),
		RawXML:     el.String(),
	}, true
}

func (e *UnitExtractor) InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error) {
	recs := make([]*domain.Unit, len(rows))
	for i, r := range rows {
		recs[i] = r.(*domain.Unit)
	}
	return insertChunked(ctx, tx, insertUnitSQL, recs)
}
