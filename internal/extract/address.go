package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/gml"
)

const insertAddressSQL = `
INSERT OR REPLACE INTO raw_adres (
	id, miejscowosc, ulica, numer_porzadkowy, data_wpisu, raw_xml
) VALUES (
	:id, :miejscowosc, :ulica, :numer_porzadkowy, :data_wpisu, :raw_xml
)`

// AddressExtractor extracts RCN_Adres features into raw_adres.
type AddressExtractor struct {
	base
}

func NewAddressExtractor(log *slog.Logger) *AddressExtractor {
	return &AddressExtractor{base{log: log, kind: domain.KindAddress}}
}

func (e *AddressExtractor) Kind() string { return domain.KindAddress }

func (e *AddressExtractor) EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	err := execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS raw_adres (
		  id                  TEXT PRIMARY KEY,
		  miejscowosc         TEXT,
		  ulica               TEXT,
		  numer_porzadkowy    TEXT,
		  data_wpisu          DATE,
		  raw_xml             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_adr_miejscowosc ON raw_adres(miejscowosc)`,
		`CREATE INDEX IF NOT EXISTS idx_adr_ulica ON raw_adres(ulica)`,
	)
	if err != nil {
		return fmt.Errorf("address schema: %w", err)
	}
	return nil
}

func (e *AddressExtractor) Parse(el *gml.Element) (Record, bool) {
	fid, ok := e.id(el)
	if !ok {
		return nil, false
	}
	return &domain.Address{
		ID:          fid,
		City:        e.text(el, "miejscowosc", false),
		Street:      e.text(el, "ulica", false),
		HouseNumber: e.text(el, "numerPorzadkowy", false),
		EntryDate:   e.entryDate(fid),
		RawXML:      el.String(),
	}, true
}

func (e *AddressExtractor) InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error) {
	recs := make([]*domain.Address, len(rows))
	for i, r := range rows {
		recs[i] = r.(*domain.Address)
	}
	return insertChunked(ctx, tx, insertAddressSQL, recs)
}
