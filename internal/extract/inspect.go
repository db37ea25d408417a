package extract

import (
	"context"
	"errors"

	"github.com/joestump/client-radar/internal/db"
	"github.com/joestump/client-radar/internal/schema"
)

// TableInfo describes one table in an inspected file.
type TableInfo struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Rows    int64    `json:"rows" yaml:"rows"`
}

// RoleInfo is the printable form of a schema.Resolution.
type RoleInfo struct {
	Kind   string   `json:"kind" yaml:"kind"`
	Column string   `json:"column,omitempty" yaml:"column,omitempty"`
	Tried  []string `json:"tried,omitempty" yaml:"tried,omitempty"`
}

// Inspection reports what the resolver would pick for a file without
// reading any timeline rows.
type Inspection struct {
	Path       string              `json:"path" yaml:"path"`
	Tables     []TableInfo         `json:"tables" yaml:"tables"`
	Table      string              `json:"table,omitempty" yaml:"table,omitempty"`
	Rule       string              `json:"rule,omitempty" yaml:"rule,omitempty"`
	Roles      map[string]RoleInfo `json:"roles,omitempty" yaml:"roles,omitempty"`
	Diagnostic *Diagnostic         `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

func roleInfo(r schema.Resolution) RoleInfo {
	return RoleInfo{Kind: r.Kind.String(), Column: r.Name, Tried: r.Tried}
}

// Inspect lists every table with its columns and row count, then runs table
// and column resolution. A resolution failure is recorded in the result
// rather than returned; only connection failures are errors.
func (e *Engine) Inspect(ctx context.Context, path string) (*Inspection, error) {
	d, err := db.Open(ctx, path)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	defer d.Close() //nolint:errcheck

	names, err := d.Tables(ctx)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}

	in := &Inspection{Path: path, Tables: make([]TableInfo, 0, len(names))}
	for _, name := range names {
		cols, err := d.Columns(ctx, name)
		if err != nil {
			return nil, &ConnectionError{Path: path, Err: err}
		}
		n, err := d.RowCount(ctx, name)
		if err != nil {
			e.log.Debug().Err(err).Str("table", name).Msg("row count unavailable")
			n = -1
		}
		in.Tables = append(in.Tables, TableInfo{Name: name, Columns: cols, Rows: n})
	}

	table, err := schema.ResolveTable(ctx, d, e.candidates)
	if err != nil {
		return in, e.record(in, path, err)
	}
	in.Table, in.Rule = table.Name, table.Rule

	cols, err := schema.ResolveColumns(ctx, d, table.Name, e.roles)
	if err != nil {
		return in, e.record(in, path, err)
	}
	in.Roles = map[string]RoleInfo{
		"id":      roleInfo(cols.ID),
		"time":    roleInfo(cols.Time),
		"content": roleInfo(cols.Content),
	}
	return in, nil
}

func (e *Engine) record(in *Inspection, path string, err error) error {
	var d *Diagnostic
	if errors.As(err, &d) {
		in.Diagnostic = d
		return nil
	}
	return &ConnectionError{Path: path, Err: err}
}
