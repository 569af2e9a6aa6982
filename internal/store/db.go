package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by mattn/go-sqlite3.
const DriverName = "sqlite3"

// Options configures the connection pool of the data source handle.
type Options struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open opens the SQLite file at path read-only, tunes the pool and pings it.
// The returned handle is meant to live for the whole process; close it at shutdown.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db open: empty path")
	}
	db, err := sql.Open(DriverName, buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping %s: %w", path, err)
	}
	return db, nil
}

// Close closes db. A nil handle is a no-op.
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// buildDSN turns a file path into a read-only SQLite URI. mode=ro makes a missing
// file an error instead of silently creating an empty database.
func buildDSN(path string) string {
	params := []string{
		"mode=ro",
		"_busy_timeout=5000",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&")
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&"))
}
