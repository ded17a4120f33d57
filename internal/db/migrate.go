package db

import (
	"context"
	"embed"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

func (db *DB) gooseSetup() (string, error) {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{db: db})

	dialect, dir := "sqlite3", "sqlite"
	if db.IsPostgres() {
		dialect, dir = "postgres", "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("set goose dialect: %w", err)
	}
	return path.Join("migrations", dir), nil
}

// Migrate applies all pending migrations
func (db *DB) Migrate(ctx context.Context) error {
	return db.RunMigrations(ctx, "up")
}

// RunMigrations runs an arbitrary goose command (up, down, status, version, ...)
// against the embedded migrations for the current dialect.
func (db *DB) RunMigrations(ctx context.Context, command string, args ...string) error {
	dir, err := db.gooseSetup()
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db.DB.DB, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

type gooseLogger struct {
	db *DB
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.db.logger.Fatal().Msgf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.db.logger.Debug().Str("component", "goose").Msgf(format, v...)
}
