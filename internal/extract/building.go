package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/gml"
)

const insertBuildingSQL = `
INSERT OR REPLACE INTO raw_budynek (
	id, id_budynku, liczba_kondygnacji, liczba_mieszkan, rodzaj_budynku,
	adres_budynku_fk, data_wpisu, raw_xml, import_id
) VALUES (
	:id, :id_budynku, :liczba_kondygnacji, :liczba_mieszkan, :rodzaj_budynku,
	:adres_budynku_fk, :data_wpisu, :raw_xml, :import_id
)`

// BuildingExtractor extracts RCN_Budynek features into raw_budynek.
type BuildingExtractor struct {
	base
}

func NewBuildingExtractor(log *slog.Logger) *BuildingExtractor {
	return &BuildingExtractor{base{log: log, kind: domain.KindBuilding}}
}

func (e *BuildingExtractor) Kind() string { return domain.KindBuilding }

func (e *BuildingExtractor) EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	err := execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS raw_budynek (
		  id                      TEXT PRIMARY KEY,
		  id_budynku              TEXT,
		  liczba_kondygnacji      INTEGER,
		  liczba_mieszkan         INTEGER,
		  rodzaj_budynku          TEXT,
		  adres_budynku_fk        TEXT,
		  data_wpisu              DATE,
		  raw_xml                 TEXT,
		  import_id               INTEGER REFERENCES _import_meta(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bud_adres ON raw_budynek(adres_budynku_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_bud_id ON raw_budynek(id_budynku)`,
		`CREATE INDEX IF NOT EXISTS idx_bud_import ON raw_budynek(import_id)`,
	)
	if err != nil {
		return fmt.Errorf("building schema: %w", err)
	}
	return nil
}

func (e *BuildingExtractor) Parse(el *gml.Element) (Record, bool) {
	fid, ok := e.id(el)
	if !ok {
		return nil, false
	}
	return &domain.Building{
		ID:             fid,
		BuildingNumber: e.text(el, "idBudynku", false),
		Storeys:        e.text(el, "liczbaKondygnacji", false),
		DwellingCount:  e.text(el, "liczbaMieszkan", false),
		BuildingType:   e.text(el, "rodzajBudynku", false),
		AddressRef:     e.ref(el, "adresBudynku", false),
		EntryDate:      e.entryDate(fid),
		RawXML:         el.String(),
	}, true
}

func (e *BuildingExtractor) InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error) {
	recs := make([]*domain.Building, len(rows))
	for i, r := range rows {
		recs[i] = r.(*domain.Building)
	}
	return insertChunked(ctx, tx, insertBuildingSQL, recs)
}
