package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/gml"
)

const insertParcelSQL = `
INSERT OR REPLACE INTO raw_dzialka (
	id, id_dzialki, pole_powierzchni_ewidencyjnej, sposob_uzytkowania,
	adres_dzialki_fk, data_wpisu, raw_xml, import_id
) VALUES (
	:id, :id_dzialki, :pole_powierzchni_ewidencyjnej, :sposob_uzytkowania,
	:adres_dzialki_fk, :data_wpisu, :raw_xml, :import_id
)`

// ParcelExtractor extracts RCN_Dzialka features into raw_dzialka.
type ParcelExtractor struct {
	base
}

func NewParcelExtractor(log *slog.Logger) *ParcelExtractor {
	return &ParcelExtractor{base{log: log, kind: domain.KindParcel}}
}

func (e *ParcelExtractor) Kind() string { return domain.KindParcel }

func (e *ParcelExtractor) EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	err := execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS raw_dzialka (
		  id                              TEXT PRIMARY KEY,
		  id_dzialki                      TEXT,
		  pole_powierzchni_ewidencyjnej   NUMERIC,
		  sposob_uzytkowania              TEXT,
		  adres_dzialki_fk                TEXT,
		  data_wpisu                      DATE,
		  raw_xml                         TEXT,
		  import_id                       INTEGER REFERENCES _import_meta(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dzi_adres ON raw_dzialka(adres_dzialki_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_dzi_id ON raw_dzialka(id_dzialki)`,
		`CREATE INDEX IF NOT EXISTS idx_dzi_import ON raw_dzialka(import_id)`,
	)
	if err != nil {
		return fmt.Errorf("parcel schema: %w", err)
	}
	return nil
}

func (e *ParcelExtractor) Parse(el *gml.Element) (Record, bool) {
	fid, ok := e.id(el)
	if !ok {
		return nil, false
	}
	return &domain.Parcel{
		ID:           fid,
		ParcelNumber: e.text(el, "idDzialki", false),
		AreaSqm:      e.text(el, "polePowierzchniEwidencyjnej", false),
		LandUse:      e.text(el, "sposobUzytkowania", false),
		AddressRef:   e.ref(el, "adresDzialki", false),
		EntryDate:    e.entryDate(fid),
		RawXML:       el.String(),
	}, true
}

func (e *ParcelExtractor) InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error) {
	recs := make([]*domain.Parcel, len(rows))
	for i, r := range rows {
		recs[i] = r.(*domain.Parcel)
	}
	return insertChunked(ctx, tx, insertParcelSQL, recs)
}
