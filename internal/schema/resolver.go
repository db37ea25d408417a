// Package schema maps semantic targets ("the timeline table", "the content
// column") onto the concrete names used by whichever application version
// produced a database file.
package schema

import (
	"context"
	"fmt"
	"strings"
)

// Catalog is the read side of a database handle needed for resolution.
// *db.DB satisfies it.
type Catalog interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]string, error)
}

// RowIDSurrogate is the implicit key used when no identifier column matches.
const RowIDSurrogate = "rowid"

// Kind tags a Resolution.
type Kind int

const (
	Unresolved Kind = iota
	Resolved
	Surrogate
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Surrogate:
		return "surrogate"
	default:
		return "unresolved"
	}
}

// Resolution is the outcome for one semantic role. Name is the catalog
// spelling for Resolved, the surrogate keyword for Surrogate, and empty for
// Unresolved, in which case Tried lists the aliases that were attempted.
type Resolution struct {
	Kind  Kind
	Name  string
	Tried []string
}

// OK reports whether the role maps to something selectable.
func (r Resolution) OK() bool { return r.Kind != Unresolved }

func (r Resolution) String() string {
	if r.Kind == Unresolved {
		return "<unresolved>"
	}
	return r.Name
}

// Candidates is the ranked table lookup: exact names from newest schema to
// oldest, then lowercase substrings tried when no exact name is present.
type Candidates struct {
	Exact    []string
	Fallback []string
}

// Roles lists acceptable column aliases per role, in priority order.
type Roles struct {
	ID      []string
	Time    []string
	Content []string
}

// TableResolution is produced once per extraction call.
type TableResolution struct {
	Name      string
	Rule      string // which predicate matched, e.g. "exact:FeedsV20"
	Available []string
}

// ColumnResolution maps each role of a resolved table.
type ColumnResolution struct {
	ID        Resolution
	Time      Resolution
	Content   Resolution
	Available []string
}

// DefaultPostCandidates are the timeline table names seen across client
// versions, newest first.
func DefaultPostCandidates() Candidates {
	return Candidates{
		Exact:    []string{"FeedsV20", "SnsInfo", "SnsInfo2"},
		Fallback: []string{"feeds", "snsinfo"},
	}
}

// DefaultPostRoles are the column aliases seen across client versions.
func DefaultPostRoles() Roles {
	return Roles{
		ID:      []string{"FeedId", "SnsId", "Id"},
		Time:    []string{"CreateTime", "Timestamp", "Time"},
		Content: []string{"Content", "Buffer", "objectDesc", "detail", "stringSeq", "xml"},
	}
}

type predicate struct {
	rule  string
	match func(name string) bool
}

// predicates expands c into the ordered match rules: every exact name, then
// every substring.
func (c Candidates) predicates() []predicate {
	preds := make([]predicate, 0, len(c.Exact)+len(c.Fallback))
	for _, want := range c.Exact {
		preds = append(preds, predicate{
			rule:  "exact:" + want,
			match: func(name string) bool { return strings.EqualFold(name, want) },
		})
	}
	for _, sub := range c.Fallback {
		lower := strings.ToLower(sub)
		if lower == "" {
			continue
		}
		preds = append(preds, predicate{
			rule:  "contains:" + lower,
			match: func(name string) bool { return strings.Contains(strings.ToLower(name), lower) },
		})
	}
	return preds
}

// MatchTable applies the candidate rules to an already enumerated table list.
func MatchTable(tables []string, c Candidates) (name, rule string, ok bool) {
	for _, p := range c.predicates() {
		for _, t := range tables {
			if p.match(t) {
				return t, p.rule, true
			}
		}
	}
	return "", "", false
}

// ResolveTable enumerates the catalog and picks the timeline table. When
// nothing matches it returns a NoTableFound Diagnostic listing every table.
func ResolveTable(ctx context.Context, cat Catalog, c Candidates) (TableResolution, error) {
	tables, err := cat.Tables(ctx)
	if err != nil {
		return TableResolution{}, fmt.Errorf("enumerate tables: %w", err)
	}

	name, rule, ok := MatchTable(tables, c)
	if !ok {
		return TableResolution{}, &Diagnostic{Stage: NoTableFound, Tables: tables}
	}
	return TableResolution{Name: name, Rule: rule, Available: tables}, nil
}

// MatchColumn returns the catalog spelling of the first alias present in
// columns, comparing case-insensitively.
func MatchColumn(columns, aliases []string) Resolution {
	for _, alias := range aliases {
		for _, c := range columns {
			if strings.EqualFold(c, alias) {
				return Resolution{Kind: Resolved, Name: c}
			}
		}
	}
	return Resolution{Kind: Unresolved, Tried: aliases}
}

// ResolveColumns introspects table and maps each role. The identifier falls
// back to the rowid surrogate and the timestamp may stay unresolved; a
// missing content column is a NoContentColumn Diagnostic.
func ResolveColumns(ctx context.Context, cat Catalog, table string, r Roles) (ColumnResolution, error) {
	columns, err := cat.Columns(ctx, table)
	if err != nil {
		return ColumnResolution{}, fmt.Errorf("introspect %s: %w", table, err)
	}

	content := MatchColumn(columns, r.Content)
	if !content.OK() {
		return ColumnResolution{}, &Diagnostic{Stage: NoContentColumn, Table: table, Columns: columns}
	}

	id := MatchColumn(columns, r.ID)
	if !id.OK() {
		id = Resolution{Kind: Surrogate, Name: RowIDSurrogate, Tried: r.ID}
	}

	return ColumnResolution{
		ID:        id,
		Time:      MatchColumn(columns, r.Time),
		Content:   content,
		Available: columns,
	}, nil
}
