package loader_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcn2sql/internal/config"
	"rcn2sql/internal/domain"
	"rcn2sql/internal/loader"
	"rcn2sql/internal/repository/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlite.NewDB(&config.DBConfig{
		Path:            filepath.Join(t.TempDir(), "load.sqlite"),
		BusyTimeoutSecs: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeGML(t *testing.T, dir, name string, members ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<gml:FeatureCollection xmlns:gml="http://www.opengis.net/gml/3.2"` +
		` xmlns:rcn="urn:rcn" xmlns:xlink="http://www.w3.org/1999/xlink" gml:id="fc">` + "\n")
	for _, m := range members {
		b.WriteString("<gml:featureMember>" + m + "</gml:featureMember>\n")
	}
	b.WriteString("</gml:FeatureCollection>\n")
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func addressMember(id, city string) string {
	return fmt.Sprintf(`<rcn:RCN_Adres gml:id="%s"><rcn:miejscowosc>%s</rcn:miejscowosc></rcn:RCN_Adres>`, id, city)
}

const documentMember = `<rcn:RCN_Dokument gml:id="DOK_1_2025-01-01T08:00:00">
	<rcn:oznaczenieDokumentu>1234/2025</rcn:oznaczenieDokumentu>
</rcn:RCN_Dokument>`

// A transaction without a gml:id is parsed but skipped, not fatal.
const idlessTransactionMember = `<rcn:RCN_Transakcja>
	<rcn:nieruchomosc xlink:href="#NIER_1"/>
</rcn:RCN_Transakcja>`

func count(t *testing.T, db *sqlx.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Get(&n, query, args...))
	return n
}

func TestRunSkipsFeaturesWithoutID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	src := writeGML(t, t.TempDir(), "sample.gml",
		addressMember("AD_1_2025-01-01T08:00:00", "Warszawa"),
		documentMember,
		idlessTransactionMember,
	)

	res, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, src)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	assert.Equal(t, int64(3), res.Processed)
	assert.Equal(t, int64(2), res.Inserted)
	assert.Equal(t, int64(1), res.SeenByKind[domain.KindAddress])
	assert.Equal(t, int64(1), res.SeenByKind[domain.KindDocument])
	assert.Equal(t, int64(1), res.SeenByKind[domain.KindTransaction])
	assert.Equal(t, int64(1), res.InsertedByKind[domain.KindAddress])
	assert.Equal(t, int64(1), res.InsertedByKind[domain.KindDocument])
	assert.Zero(t, res.InsertedByKind[domain.KindTransaction])

	assert.Equal(t, int64(1), count(t, db, "SELECT COUNT(*) FROM raw_adres"))
	assert.Equal(t, int64(1), count(t, db, "SELECT COUNT(*) FROM raw_dokument"))
	assert.Equal(t, int64(0), count(t, db, "SELECT COUNT(*) FROM raw_transakcja"))

	// The attempt completed with the inserted count.
	repo := sqlite.NewImportMetaRepo(db)
	attempts, err := repo.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.ImportStatusCompleted, attempts[0].Status)
	require.NotNil(t, attempts[0].RecordsInserted)
	assert.Equal(t, int64(2), *attempts[0].RecordsInserted)
	assert.Equal(t, res.RunID, attempts[0].RunID)
}

func TestRunCoordinatedFlushes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	src := writeGML(t, t.TempDir(), "batched.gml",
		addressMember("AD_1", "Warszawa"),
		addressMember("AD_2", "Kraków"),
		addressMember("AD_3", "Gdańsk"),
		addressMember("AD_4", "Poznań"),
		addressMember("AD_5", "Łódź"),
		documentMember,
	)

	res, err := loader.New(db, testLogger(), loader.Options{BatchSize: 2}).Run(ctx, src)
	require.NoError(t, err)

	// Two threshold flushes while streaming plus the final flush.
	assert.Equal(t, 3, res.Flushes)
	assert.Equal(t, int64(6), res.Inserted)
	assert.Equal(t, int64(5), count(t, db, "SELECT COUNT(*) FROM raw_adres"))
	assert.Equal(t, int64(1), count(t, db, "SELECT COUNT(*) FROM raw_dokument"))
}

func TestRunStampsImportID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	src := writeGML(t, t.TempDir(), "tagged.gml",
		`<rcn:RCN_Transakcja gml:id="TRA_1_2025-03-10T12:00:00">
			<rcn:nieruchomosc xlink:href="#NIER_1"/>
			<rcn:cenaTransakcjiBrutto>100000</rcn:cenaTransakcjiBrutto>
		</rcn:RCN_Transakcja>`,
		addressMember("AD_1", "Warszawa"),
	)

	res, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, src)
	require.NoError(t, err)

	var importID int64
	require.NoError(t, db.Get(&importID, "SELECT import_id FROM raw_transakcja WHERE id = 'TRA_1_2025-03-10T12:00:00'"))
	assert.Equal(t, res.AttemptID, importID)

	// Reference data stays untagged: raw_adres has no import column at all.
	var cols []string
	require.NoError(t, db.Select(&cols, "SELECT name FROM pragma_table_info('raw_adres')"))
	assert.NotContains(t, cols, "import_id")
}

func TestRunSkipsAlreadyImportedFile(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	src := writeGML(t, t.TempDir(), "once.gml", addressMember("AD_1", "Warszawa"))

	first, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, src)
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, src)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, domain.SkipAlreadyImported, second.SkipReason)

	// The skip leaves the provenance history untouched.
	assert.Equal(t, int64(1), count(t, db, "SELECT COUNT(*) FROM _import_meta"))
}

func TestRunSkipsSuspectedDuplicate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	dir := t.TempDir()
	src := writeGML(t, dir, "powiat_a.gml", addressMember("AD_1", "Warszawa"))

	_, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, src)
	require.NoError(t, err)

	// Same bytes under a different name.
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	renamed := filepath.Join(dir, "powiat_a_copy.gml")
	require.NoError(t, os.WriteFile(renamed, data, 0o644))

	res, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, renamed)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, domain.SkipSuspectedDuplicate, res.SkipReason)
	assert.Equal(t, "powiat_a.gml", res.SimilarTo)
}

func TestRunForceReimportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	src := writeGML(t, t.TempDir(), "force.gml",
		addressMember("AD_1", "Warszawa"),
		documentMember,
	)

	_, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, src)
	require.NoError(t, err)

	res, err := loader.New(db, testLogger(), loader.Options{Force: true}).Run(ctx, src)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	// Upsert by primary key: re-running the same file changes no row counts.
	assert.Equal(t, int64(1), count(t, db, "SELECT COUNT(*) FROM raw_adres"))
	assert.Equal(t, int64(1), count(t, db, "SELECT COUNT(*) FROM raw_dokument"))

	// Each attempt keeps its own provenance row.
	assert.Equal(t, int64(2), count(t, db, "SELECT COUNT(*) FROM _import_meta WHERE status = 'completed'"))
}

func TestRunUnknownKindIsCountedNotInserted(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	src := writeGML(t, t.TempDir(), "unknown.gml",
		`<rcn:RCN_Nowosc gml:id="X_1"/>`,
		addressMember("AD_1", "Warszawa"),
	)

	res, err := loader.New(db, testLogger(), loader.Options{}).Run(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Processed)
	assert.Equal(t, int64(1), res.SeenByKind["RCN_Nowosc"])
	assert.Equal(t, int64(1), res.Inserted)
}

func TestRunMissingFile(t *testing.T) {
	db := openTestDB(t)
	_, err := loader.New(db, testLogger(), loader.Options{}).Run(
		context.Background(), filepath.Join(t.TempDir(), "absent.gml"))
	require.Error(t, err)
}
