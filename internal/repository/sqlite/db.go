// Package sqlite provides the SQLite-backed store: connection setup and the
// import provenance repository.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"rcn2sql/internal/config"
)

func init() {
	// modernc.org/sqlite registers as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// NewDB opens the SQLite store. One connection is held for the duration of
// a load attempt; the busy timeout governs contention with other processes.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if cfg.BusyTimeoutSecs > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutSecs*1000)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting busy_timeout: %w", err)
		}
	}
	return db, nil
}
