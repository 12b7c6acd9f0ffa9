package widetable_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcn2sql/internal/config"
	"rcn2sql/internal/extract"
	"rcn2sql/internal/repository/sqlite"
	"rcn2sql/internal/widetable"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedStore creates the raw schema and one fully linked transaction chain
// plus one transaction with no resolvable property.
func seedStore(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlite.NewDB(&config.DBConfig{
		Path:            filepath.Join(t.TempDir(), "wide.sqlite"),
		BusyTimeoutSecs: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, sqlite.NewImportMetaRepo(db).EnsureSchema(ctx))
	for _, ex := range extract.All(testLogger()) {
		require.NoError(t, ex.EnsureSchema(ctx, db))
	}

	stmts := []string{
		`INSERT INTO raw_adres (id, miejscowosc, ulica, numer_porzadkowy) VALUES ('AD_1', 'Warszawa', 'Prosta', '5')`,
		`INSERT INTO raw_dzialka (id, id_dzialki, adres_dzialki_fk) VALUES ('DZ_1', '146519_8.0204.4/3', 'AD_1')`,
		`INSERT INTO raw_budynek (id, id_budynku, liczba_mieszkan, adres_budynku_fk) VALUES ('BUD_1', '146519_8.0204.4/3.7_BUD', '12', 'AD_1')`,
		`INSERT INTO raw_lokal (id, id_lokalu, numer_lokalu, adres_budynku_z_lokalem_fk) VALUES ('LOK_1', '146519_8.0204.4/3.7_BUD.21_LOK', '21', 'AD_1')`,
		`INSERT INTO raw_dokument (id, oznaczenie_dokumentu) VALUES ('DOK_1', '1234/2025')`,
		`INSERT INTO raw_nieruchomosc (id, rodzaj_nieruchomosci, dzialka_fk, budynek_fk, lokal_fk) VALUES ('NIER_1', 'lokalowa', 'DZ_1', 'BUD_1', 'LOK_1')`,
		`INSERT INTO raw_transakcja (id, nieruchomosc_fk, dokument_fk, cena_transakcji_brutto, import_id) VALUES ('TRA_1', 'NIER_1', 'DOK_1', '450000', 1)`,
		`INSERT INTO raw_transakcja (id, cena_transakcji_brutto) VALUES ('TRA_2', '99000')`,
	}
	for _, s := range stmts {
		_, err := db.ExecContext(ctx, s)
		require.NoError(t, err)
	}
	return db
}

func TestBuildJoinsFullChain(t *testing.T) {
	ctx := context.Background()
	db := seedStore(t)

	res, err := widetable.Build(ctx, db, testLogger(), widetable.Options{Table: "rcn_wide"})
	require.NoError(t, err)
	assert.Equal(t, "rcn_wide", res.Table)
	assert.Equal(t, int64(2), res.RowCount)

	var row struct {
		Nieruchomosc *string `db:"nieruchomosc_id"`
		Dokument     *string `db:"oznaczenie_dokumentu"`
		Dzialka      *string `db:"id_dzialki"`
		Budynek      *string `db:"liczba_mieszkan"`
		Lokal        *string `db:"numer_lokalu"`
		City         *string `db:"adres_lokalu_miejscowosc"`
		ImportID     *int64  `db:"import_id"`
	}
	require.NoError(t, db.Get(&row,
		`SELECT nieruchomosc_id, oznaczenie_dokumentu, id_dzialki, liczba_mieszkan,
		        numer_lokalu, adres_lokalu_miejscowosc, import_id
		 FROM rcn_wide WHERE transakcja_id = 'TRA_1'`))
	require.NotNil(t, row.Nieruchomosc)
	assert.Equal(t, "NIER_1", *row.Nieruchomosc)
	assert.Equal(t, "1234/2025", *row.Dokument)
	assert.Equal(t, "146519_8.0204.4/3", *row.Dzialka)
	assert.Equal(t, "12", *row.Budynek)
	assert.Equal(t, "21", *row.Lokal)
	assert.Equal(t, "Warszawa", *row.City)
	require.NotNil(t, row.ImportID)
	assert.Equal(t, int64(1), *row.ImportID)
}

func TestBuildKeepsUnlinkedTransactions(t *testing.T) {
	ctx := context.Background()
	db := seedStore(t)

	_, err := widetable.Build(ctx, db, testLogger(), widetable.Options{Table: "rcn_wide"})
	require.NoError(t, err)

	// LEFT JOINs keep the dangling transaction with NULL joined columns.
	var nier *string
	require.NoError(t, db.Get(&nier,
		"SELECT nieruchomosc_id FROM rcn_wide WHERE transakcja_id = 'TRA_2'"))
	assert.Nil(t, nier)
}

func TestBuildLimit(t *testing.T) {
	ctx := context.Background()
	db := seedStore(t)

	res, err := widetable.Build(ctx, db, testLogger(), widetable.Options{Table: "rcn_wide", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowCount)
}

func TestBuildDropReplacesExisting(t *testing.T) {
	ctx := context.Background()
	db := seedStore(t)

	_, err := widetable.Build(ctx, db, testLogger(), widetable.Options{Table: "rcn_wide", Limit: 1})
	require.NoError(t, err)

	// Without drop the second build collides with the existing table.
	_, err = widetable.Build(ctx, db, testLogger(), widetable.Options{Table: "rcn_wide"})
	require.Error(t, err)

	res, err := widetable.Build(ctx, db, testLogger(), widetable.Options{Table: "rcn_wide", Drop: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowCount)
}
