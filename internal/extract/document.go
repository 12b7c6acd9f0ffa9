package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/domain"
	"rcn2sql/internal/gml"
)

const insertDocumentSQL = `
INSERT OR REPLACE INTO raw_dokument (
	id, oznaczenie_dokumentu, data_sporzadzenia_dokumentu,
	tworca_dokumentu, data_wpisu, raw_xml
) VALUES (
	:id, :oznaczenie_dokumentu, :data_sporzadzenia_dokumentu,
	:tworca_dokumentu, :data_wpisu, :raw_xml
)`

// DocumentExtractor extracts RCN_Dokument features into raw_dokument.
type DocumentExtractor struct {
	base
}

func NewDocumentExtractor(log *slog.Logger) *DocumentExtractor {
	return &DocumentExtractor{base{log: log, kind: domain.KindDocument}}
}

func (e *DocumentExtractor) Kind() string { return domain.KindDocument }

func (e *DocumentExtractor) EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	err := execAll(ctx, db,
		`CREATE TABLE IF NOT EXISTS raw_dokument (
		  id                              TEXT PRIMARY KEY,
		  oznaczenie_dokumentu            TEXT,
		  data_sporzadzenia_dokumentu     DATE,
		  tworca_dokumentu                TEXT,
		  data_wpisu                      DATE,
		  raw_xml                         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dok_oznaczenie ON raw_dokument(oznaczenie_dokumentu)`,
		`CREATE INDEX IF NOT EXISTS idx_dok_data ON raw_dokument(data_sporzadzenia_dokumentu)`,
	)
	if err != nil {
		return fmt.Errorf("document schema: %w", err)
	}
	return nil
}

func (e *DocumentExtractor) Parse(el *gml.Element) (Record, bool) {
	fid, ok := e.id(el)
	if !ok {
		return nil, false
	}
	return &domain.Document{
		ID:        fid,
		Reference: e.text(el, "oznaczenieDokumentu", false),
		IssueDate: e.text(el, "dataSporzadzeniaDokumentu", false),
		Creator:   e.text(el, "tworcaDokumentu", false),
		EntryDate: e.entryDate(fid),
		RawXML:    el.String(),
	}, true
}

func (e *DocumentExtractor) InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error) {
	recs := make([]*domain.Document, len(rows))
	for i, r := range rows {
		recs[i] = r.(*domain.Document)
	}
	return insertChunked(ctx, tx, insertDocumentSQL, recs)
}
