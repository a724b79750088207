package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/pairlink/pairing-server/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DB struct {
	*sqlx.DB
	driver string
}

// Open connects to postgres when databaseURL is set, otherwise to a sqlite file
// at sqlitePath.
func Open(databaseURL, sqlitePath string) (*DB, error) {
	if databaseURL != "" {
		return Connect(DriverPostgres, databaseURL)
	}
	if err := ensureParentDir(sqlitePath); err != nil {
		return nil, err
	}
	return Connect(DriverSQLite, SQLiteDSN(sqlitePath))
}

func Connect(driver, dsn string) (*DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	db.SetMaxOpenConns(config.DBMaxOpenConns)
	db.SetMaxIdleConns(config.DBMaxIdleConns)
	db.SetConnMaxLifetime(config.DBConnMaxLifetime)

	return &DB{DB: db, driver: driver}, nil
}

// SQLiteDSN enables foreign keys, which the session store relies on.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Dialect is the dialect name understood by the session store.
func (db *DB) Dialect() string {
	if db.driver == DriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

func (db *DB) IsSQLite() bool {
	return strings.HasPrefix(db.driver, DriverSQLite)
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	return nil
}
