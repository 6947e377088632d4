package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const driverName = "sqlite"

// Open opens a SQLite database at the given path and runs migrations.
// An in-memory database is pinned to a single connection, since every new
// connection to ":memory:" would otherwise see an empty schema.
func Open(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Migrate applies pending migrations without keeping the connection open.
func Migrate(dbPath string) (int64, error) {
	db, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	version, err := goose.GetDBVersion(db.DB)
	if err != nil {
		return 0, fmt.Errorf("db version: %w", err)
	}
	return version, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
