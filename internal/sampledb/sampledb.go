// Package sampledb provisions small client-shaped SQLite files. The same
// fixtures back the test suites and the `radar sample` command.
package sampledb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // register the "sqlite" driver
)

//go:embed migrations
var migrations embed.FS

// Schema names a fixture layout.
type Schema string

const (
	// FeedsV20 is the current timeline layout with seeded posts.
	FeedsV20 Schema = "feeds-v20"
	// EmptyFeeds is the current timeline layout with no rows.
	EmptyFeeds Schema = "empty-feeds"
	// SnsInfo is the legacy timeline layout with text identifiers.
	SnsInfo Schema = "snsinfo"
	// NoContent has a timeline table but no payload column.
	NoContent Schema = "no-content"
	// Unknown holds only unrelated tables.
	Unknown Schema = "unknown"
	// MicroMsg is the address book.
	MicroMsg Schema = "micromsg"
)

type variant struct {
	dir  string
	upTo int64 // 0 applies every migration
}

var variants = map[Schema]variant{
	FeedsV20:   {dir: "feeds_v20"},
	EmptyFeeds: {dir: "feeds_v20", upTo: 1},
	SnsInfo:    {dir: "snsinfo"},
	NoContent:  {dir: "no_content"},
	Unknown:    {dir: "unknown"},
	MicroMsg:   {dir: "micromsg"},
}

// ErrExists is returned when the target path is already taken.
var ErrExists = errors.New("sampledb: file already exists")

// Schemas lists the known layouts in name order.
func Schemas() []Schema {
	out := make([]Schema, 0, len(variants))
	for s := range variants {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create writes a new database at path with the given layout. It refuses to
// touch an existing file.
func Create(ctx context.Context, path string, schema Schema) error {
	v, ok := variants[schema]
	if !ok {
		return fmt.Errorf("sampledb: unknown schema %q", schema)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sampledb: create dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("sampledb: open %s: %w", path, err)
	}
	defer conn.Close() //nolint:errcheck

	fsys, err := fs.Sub(migrations, "migrations/"+v.dir)
	if err != nil {
		return fmt.Errorf("sampledb: migrations for %s: %w", schema, err)
	}
	// Fixtures mimic files written by the client, so goose keeps no version table in them.
	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, fsys, goose.WithDisableVersioning(true))
	if err != nil {
		return fmt.Errorf("sampledb: migration provider: %w", err)
	}

	if v.upTo == 0 {
		if _, err := provider.Up(ctx); err != nil {
			return fmt.Errorf("sampledb: apply %s: %w", schema, err)
		}
		return nil
	}
	for _, src := range provider.ListSources() {
		if src.Version > v.upTo {
			break
		}
		if _, err := provider.ApplyVersion(ctx, src.Version, true); err != nil {
			return fmt.Errorf("sampledb: apply %s version %d: %w", schema, src.Version, err)
		}
	}
	return nil
}

// MustCreate creates a fixture in a fresh temporary directory and returns its
// path. It is meant for tests.
func MustCreate(tb interface {
	Helper()
	TempDir() string
	Fatalf(string, ...any)
}, schema Schema) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), string(schema)+".db")
	if err := Create(context.Background(), path, schema); err != nil {
		tb.Fatalf("create %s fixture: %v", schema, err)
	}
	return path
}
