// Package extract reads contacts and timeline posts out of client databases.
// Timeline extraction runs as a fixed sequence of stages:
//
//	start -> table resolved -> columns resolved -> query executed -> decoded
//
// ending in either a non-empty record list or a Diagnostic. Each call opens
// its own read-only handle and keeps no state between calls.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joestump/client-radar/internal/coerce"
	"github.com/joestump/client-radar/internal/db"
	"github.com/joestump/client-radar/internal/query"
	"github.com/joestump/client-radar/internal/schema"
)

// PostRecord is one timeline entry. RawContent is the lossy text form of the
// stored payload; interpreting it is left to the caller.
type PostRecord struct {
	ID         string `json:"sns_id" yaml:"sns_id"`
	Timestamp  uint32 `json:"create_time" yaml:"create_time"`
	RawContent string `json:"content" yaml:"content"`
}

// Engine holds the resolver profile and row cap. The zero value is not
// usable; construct with New.
type Engine struct {
	candidates schema.Candidates
	roles      schema.Roles
	limit      int
	log        zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCandidates overrides the timeline table lookup.
func WithCandidates(c schema.Candidates) Option {
	return func(e *Engine) { e.candidates = c }
}

// WithRoles overrides the column aliases.
func WithRoles(r schema.Roles) Option {
	return func(e *Engine) { e.roles = r }
}

// WithLimit overrides the row cap. Non-positive values are ignored.
func WithLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithLogger sets the logger used for stage transitions.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an Engine with the built-in profile, overridden by opts.
func New(opts ...Option) *Engine {
	e := &Engine{
		candidates: schema.DefaultPostCandidates(),
		roles:      schema.DefaultPostRoles(),
		limit:      query.DefaultLimit,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReadPosts extracts timeline posts using the default profile.
func ReadPosts(ctx context.Context, path string) ([]PostRecord, error) {
	return New().ReadPosts(ctx, path)
}

// ReadPosts resolves the timeline table and columns in the file at path and
// returns up to the configured number of rows, newest first when a time
// column exists. An empty result is reported as an EmptyResult Diagnostic.
func (e *Engine) ReadPosts(ctx context.Context, path string) ([]PostRecord, error) {
	log := e.log.With().Str("db", path).Logger()

	d, err := db.Open(ctx, path)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	defer d.Close() //nolint:errcheck

	table, err := schema.ResolveTable(ctx, d, e.candidates)
	if err != nil {
		return nil, e.fail(log, path, err)
	}
	log.Debug().Str("table", table.Name).Str("rule", table.Rule).Msg("table resolved")

	cols, err := schema.ResolveColumns(ctx, d, table.Name, e.roles)
	if err != nil {
		return nil, e.fail(log, path, err)
	}
	log.Debug().
		Str("id", cols.ID.String()).
		Str("time", cols.Time.String()).
		Str("content", cols.Content.String()).
		Msg("columns resolved")

	wl, err := freshWhitelist(ctx, d, table.Name)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	q, args, err := query.Build(query.Spec{
		Table:   table.Name,
		ID:      cols.ID,
		Time:    cols.Time,
		Content: cols.Content,
		Limit:   e.limit,
	}, wl)
	if err != nil {
		return nil, &QueryError{Err: err}
	}

	posts, err := runPosts(ctx, d, q, args)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("rows", len(posts)).Msg("query executed")

	if len(posts) == 0 {
		return nil, e.fail(log, path, &Diagnostic{
			Stage:         EmptyResult,
			Table:         table.Name,
			ContentColumn: cols.Content.Name,
			Columns:       cols.Available,
		})
	}
	return posts, nil
}

// freshWhitelist re-reads the catalog immediately before the query is built,
// so only names present in the file right now can be interpolated.
func freshWhitelist(ctx context.Context, d *db.DB, table string) (query.Whitelist, error) {
	tables, err := d.Tables(ctx)
	if err != nil {
		return query.Whitelist{}, err
	}
	columns, err := d.Columns(ctx, table)
	if err != nil {
		return query.Whitelist{}, err
	}
	return query.NewWhitelist(tables, columns), nil
}

func runPosts(ctx context.Context, d *db.DB, q string, args []any) ([]PostRecord, error) {
	rows, err := d.Conn().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &QueryError{Query: q, Err: err}
	}
	defer rows.Close() //nolint:errcheck

	var posts []PostRecord
	for rows.Next() {
		var id, ts, content any
		if err := rows.Scan(&id, &ts, &content); err != nil {
			continue
		}
		posts = append(posts, PostRecord{
			ID:         coerce.Identifier(id),
			Timestamp:  coerce.Timestamp(ts),
			RawContent: coerce.Content(content),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Query: q, Err: err}
	}
	return posts, nil
}

// fail logs a diagnostic at warn level and classifies catalog read errors as
// connection failures.
func (e *Engine) fail(log zerolog.Logger, path string, err error) error {
	var d *Diagnostic
	if errors.As(err, &d) {
		log.Warn().Str("stage", string(d.Stage)).Msg(d.Error())
		return d
	}
	return &ConnectionError{Path: path, Err: fmt.Errorf("read catalog: %w", err)}
}
