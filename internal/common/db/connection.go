package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/mybus-data/internal/common/logger"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite handle opened on a single file.
type DB struct {
	conn *sql.DB
}

// Options tune how the SQLite file is opened.
type Options struct {
	ReadOnly bool
	// ForeignKeys enables PRAGMA foreign_keys for the connection.
	ForeignKeys bool
}

// Open opens path and pings it. SQLite opens lazily, so a file that is not a
// database only surfaces on the first query; callers that care must probe.
func Open(path string, opts Options, logger logger.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serialises writers and keeps PRAGMAs consistent.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Debug("Database connection established", "path", path, "read_only", opts.ReadOnly)

	return &DB{conn: conn}, nil
}

func dsn(path string, opts Options) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	if opts.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if opts.ReadOnly {
		q.Set("mode", "ro")
	}
	return "file:" + path + "?" + q.Encode()
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, nil)
}

// DB returns the underlying handle.
func (db *DB) DB() *sql.DB {
	return db.conn
}
