// Package extract implements the per-kind feature extractors: one for each
// of the seven RCN record kinds, all sharing the same contract and the same
// field-lookup primitives.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"rcn2sql/internal/gml"
)

const xlinkNS = "http://www.w3.org/1999/xlink"

// insertChunk bounds the number of rows per multi-row INSERT so bound
// parameters stay under SQLite's variable limit.
const insertChunk = 500

// Record is one extracted row: a pointer to a kind-specific domain struct.
type Record any

// Extractor is the shared capability set of the seven feature extractors.
type Extractor interface {
	// Kind is the feature's local tag name in the source file.
	Kind() string
	// EnsureSchema idempotently creates the target table and its indexes.
	EnsureSchema(ctx context.Context, db *sqlx.DB) error
	// Parse extracts one record from a feature of this kind. ok is false
	// when the feature has no resolvable gml:id and must be skipped.
	Parse(el *gml.Element) (rec Record, ok bool)
	// InsertMany bulk-upserts a batch by primary key and returns the number
	// of rows presented.
	InsertMany(ctx context.Context, tx sqlx.ExtContext, rows []Record) (int, error)
}

// All returns the seven extractors in their registration order.
func All(log *slog.Logger) []Extractor {
	return []Extractor{
		NewTransactionExtractor(log),
		NewUnitExtractor(log),
		NewDocumentExtractor(log),
		NewPropertyExtractor(log),
		NewParcelExtractor(log),
		NewAddressExtractor(log),
		NewBuildingExtractor(log),
	}
}

// firstText returns the trimmed text of the first descendant (or the element
// itself) whose local name matches name. missingRequired reports a required
// field whose first match had no text; the search stops at the first match
// either way, and logging is the caller's concern — parsing always continues.
func firstText(el *gml.Element, name string, required bool) (val string, missingRequired bool) {
	el.Iter(func(n *gml.Element) bool {
		if n.Local() != name {
			return true
		}
		txt := strings.TrimSpace(n.Text)
		if txt != "" {
			val = txt
		} else {
			missingRequired = required
		}
		return false
	})
	return val, missingRequired
}

// firstHref returns the link attribute of the first descendant whose local
// name matches name, preferring the namespaced xlink:href over a bare href.
// Same first-match and required-for-logging-only semantics as firstText.
func firstHref(el *gml.Element, name string, required bool) (val string, missingRequired bool) {
	el.Iter(func(n *gml.Element) bool {
		if n.Local() != name {
			return true
		}
		if href, ok := n.Attr("{" + xlinkNS + "}href"); ok && href != "" {
			val = strings.TrimSpace(href)
		} else if href, ok := n.Attr("href"); ok && href != "" {
			val = strings.TrimSpace(href)
		} else {
			missingRequired = required
		}
		return false
	})
	return val, missingRequired
}

// hrefToID resolves a reference token to the referenced identifier:
// "#ABC" or "file.gml#ABC" -> "ABC". emptyFragment reports a token that
// ends at the fragment separator with nothing after it.
func hrefToID(href string) (id string, emptyFragment bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	if i := strings.Index(href, "#"); i >= 0 {
		after := href[i+1:]
		if after == "" {
			return "", true
		}
		return strings.TrimSpace(after), false
	}
	return href, false
}

// dateFromID derives the entry date from a gml:id whose final
// underscore-delimited segment is a timestamp: the part before the literal
// 'T' must be a valid calendar date.
func dateFromID(fid string) (string, bool) {
	i := strings.LastIndex(fid, "_")
	if i < 0 || i == len(fid)-1 {
		return "", false
	}
	d, _, _ := strings.Cut(fid[i+1:], "T")
	if _, err := time.Parse("2006-01-02", d); err != nil {
		return "", false
	}
	return d, true
}

// base carries the logging context shared by all extractors. Helper methods
// wrap the pure lookup primitives with the original's logging behavior.
type base struct {
	log  *slog.Logger
	kind string
}

// id locates the feature's gml:id: a namespaced attribute ending in "}id"
// first, then a bare id attribute trimmed of whitespace.
func (b base) id(el *gml.Element) (string, bool) {
	for _, a := range el.Attrs {
		if strings.HasSuffix(a.Name, "}id") && a.Value != "" {
			return a.Value, true
		}
	}
	if v, ok := el.Attr("id"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	b.log.Error("missing gml:id, skipping feature", "kind", b.kind, "element", el.String())
	return "", false
}

func (b base) text(el *gml.Element, name string, required bool) *string {
	val, missing := firstText(el, name, required)
	if missing {
		b.log.Error("missing field text", "kind", b.kind, "field", name)
	}
	return optional(val)
}

func (b base) ref(el *gml.Element, name string, required bool) *string {
	href, missing := firstHref(el, name, required)
	if missing {
		b.log.Error("missing xlink:href for reference", "kind", b.kind, "field", name)
	}
	id, emptyFragment := hrefToID(href)
	if emptyFragment {
		b.log.Error("empty id in href", "kind", b.kind, "field", name, "href", href)
	}
	return optional(id)
}

func (b base) entryDate(fid string) *string {
	d, ok := dateFromID(fid)
	if !ok {
		b.log.Error("missing or invalid timestamp in gml:id", "kind", b.kind, "id", fid)
	}
	return optional(d)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func insertChunked[T any](ctx context.Context, tx sqlx.ExtContext, query string, rows []T) (int, error) {
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := sqlx.NamedExecContext(ctx, tx, query, rows[start:end]); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func execAll(ctx context.Context, db *sqlx.DB, stmts ...string) error {
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
