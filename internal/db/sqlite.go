package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/itsbooking/portal/internal/config"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// OpenSQLite opens a SQLite database file. A single connection is used so
// every transaction is serialised.
func OpenSQLite(ctx context.Context, dsn string, logger zerolog.Logger) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is empty")
	}
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = dsn + sep + sqlitePragmas
	}

	x, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	x.SetMaxOpenConns(1)

	db := newDB(x, config.DriverSQLite, nil, logger)
	if err := db.Ping(ctx); err != nil {
		_ = x.Close()
		return nil, fmt.Errorf("failed to establish sqlite connection: %w", err)
	}
	logger.Info().Str("dsn", dsn).Msg("Opened SQLite database")
	return db, nil
}
