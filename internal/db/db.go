package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/itsbooking/portal/internal/config"
)

// DB wraps the sqlx handle together with a statement builder bound to the
// driver's placeholder format.
type DB struct {
	*sqlx.DB
	Dialect string
	Builder sq.StatementBuilderType

	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Open connects to the database configured in cfg.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*DB, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.Database.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func newDB(x *sqlx.DB, dialect string, pool *pgxpool.Pool, logger zerolog.Logger) *DB {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == config.DriverPostgres {
		placeholder = sq.Dollar
	}
	return &DB{
		DB:      x,
		Dialect: dialect,
		Builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		pool:    pool,
		logger:  logger,
	}
}

// IsPostgres reports whether the connection is backed by PostgreSQL
func (db *DB) IsPostgres() bool {
	return db.Dialect == config.DriverPostgres
}

// LockSuffix returns the row locking clause for SELECT statements inside a
// transaction. SQLite serialises writers itself and has no such clause.
func (db *DB) LockSuffix() string {
	if db.IsPostgres() {
		return "FOR UPDATE"
	}
	return ""
}

// Ping checks the connection with a short timeout
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.DB.PingContext(ctx)
}

// Close closes the sql handle and the underlying pgx pool, if any
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}
