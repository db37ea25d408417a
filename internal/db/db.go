package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Open when the database file does not exist.
var ErrNotFound = errors.New("database file not found")

// DB wraps a read-only sql.DB connection to a third-party SQLite file.
// Nothing in this package issues writes; the handle is opened with
// mode=ro and query_only so a stray statement cannot modify the source.
type DB struct {
	conn *sql.DB
}

// Open opens the SQLite file at path read-only. The file must already exist.
func Open(ctx context.Context, path string) (*DB, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("open sqlite: %s is a directory", path)
	}

	conn, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for query execution.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// readOnlyDSN builds a SQLite URI filename. The driver keeps the query
// string for file: URIs, so mode=ro reaches sqlite3_open_v2 while the
// _pragma parameters are applied by the driver after connecting.
func readOnlyDSN(path string) string {
	p := filepath.ToSlash(path)
	if vol := filepath.VolumeName(path); vol != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file:" + uriEscaper.Replace(p) +
		"?mode=ro&_pragma=busy_timeout(5000)&_pragma=query_only(1)"
}
