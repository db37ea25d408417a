// Package query assembles the timeline SELECT from resolver output. Table and
// column names are runtime strings read out of an untrusted file, so every
// name is checked against a freshly introspected whitelist and quoted
// before it reaches the query text. Only the row limit is bound.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joestump/client-radar/internal/db"
	"github.com/joestump/client-radar/internal/schema"
)

// DefaultLimit caps the rows fetched per extraction.
const DefaultLimit = 200

var (
	// ErrUnknownIdentifier is returned when a name is absent from the whitelist.
	ErrUnknownIdentifier = errors.New("identifier not present in catalog")

	// ErrNoContent is returned when the content role is not resolved.
	ErrNoContent = errors.New("content column is required")
)

// Whitelist is the set of identifiers observed in the catalog during the
// current call. Membership is exact: resolution returns catalog spellings.
type Whitelist struct {
	tables  map[string]struct{}
	columns map[string]struct{}
}

// NewWhitelist builds a whitelist from enumerated tables and the columns of
// the table about to be queried.
func NewWhitelist(tables, columns []string) Whitelist {
	w := Whitelist{
		tables:  make(map[string]struct{}, len(tables)),
		columns: make(map[string]struct{}, len(columns)),
	}
	for _, t := range tables {
		w.tables[t] = struct{}{}
	}
	for _, c := range columns {
		w.columns[c] = struct{}{}
	}
	return w
}

func (w Whitelist) hasTable(name string) bool {
	_, ok := w.tables[name]
	return ok
}

func (w Whitelist) hasColumn(name string) bool {
	_, ok := w.columns[name]
	return ok
}

// Spec describes one timeline query.
type Spec struct {
	Table   string
	ID      schema.Resolution
	Time    schema.Resolution
	Content schema.Resolution
	Limit   int
}

// Build renders s as SQL plus its bound arguments. Rows with a NULL content
// column are excluded; ordering is newest first when a time column exists
// and omitted otherwise.
func Build(s Spec, w Whitelist) (string, []any, error) {
	if !w.hasTable(s.Table) {
		return "", nil, fmt.Errorf("table %q: %w", s.Table, ErrUnknownIdentifier)
	}
	if s.Content.Kind != schema.Resolved {
		return "", nil, ErrNoContent
	}
	if s.Limit <= 0 {
		return "", nil, fmt.Errorf("limit must be positive, got %d", s.Limit)
	}

	idExpr, err := columnExpr(s.ID, w, true)
	if err != nil {
		return "", nil, fmt.Errorf("id column: %w", err)
	}
	timeExpr, err := columnExpr(s.Time, w, false)
	if err != nil {
		return "", nil, fmt.Errorf("time column: %w", err)
	}
	contentExpr, err := columnExpr(s.Content, w, false)
	if err != nil {
		return "", nil, fmt.Errorf("content column: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s, %s FROM %s WHERE %s IS NOT NULL",
		idExpr, timeExpr, contentExpr, db.QuoteIdent(s.Table), contentExpr)
	if s.Time.Kind == schema.Resolved {
		fmt.Fprintf(&b, " ORDER BY %s DESC", timeExpr)
	}
	b.WriteString(" LIMIT ?")

	return b.String(), []any{s.Limit}, nil
}

// columnExpr returns the SQL expression selecting r. An unresolved role
// selects the literal 0; the rowid surrogate is accepted only where
// allowSurrogate is set.
func columnExpr(r schema.Resolution, w Whitelist, allowSurrogate bool) (string, error) {
	switch r.Kind {
	case schema.Resolved:
		if !w.hasColumn(r.Name) {
			return "", fmt.Errorf("%q: %w", r.Name, ErrUnknownIdentifier)
		}
		return db.QuoteIdent(r.Name), nil
	case schema.Surrogate:
		if !allowSurrogate || r.Name != schema.RowIDSurrogate {
			return "", fmt.Errorf("surrogate %q: %w", r.Name, ErrUnknownIdentifier)
		}
		return schema.RowIDSurrogate, nil
	default:
		return "0", nil
	}
}
