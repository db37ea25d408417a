package schema

import (
	"fmt"
	"strings"
)

// Stage identifies the extraction step at which a Diagnostic was raised.
type Stage string

const (
	NoTableFound    Stage = "no_table_found"
	NoContentColumn Stage = "no_content_column"
	EmptyResult     Stage = "empty_result"
)

// Diagnostic is a failure that carries the schema state observed in the
// database, so a human can extend the candidate lists. It is built on the
// failure path and returned directly; nothing holds on to it.
type Diagnostic struct {
	Stage Stage `json:"stage" yaml:"stage"`

	// Tables is the full catalog, set for NoTableFound.
	Tables []string `json:"tables,omitempty" yaml:"tables,omitempty"`

	// Table and Columns describe the resolved table for the column-level stages.
	Table   string   `json:"table,omitempty" yaml:"table,omitempty"`
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	// ContentColumn is the content column the query used, set for EmptyResult.
	ContentColumn string `json:"content_column,omitempty" yaml:"content_column,omitempty"`
}

func (d *Diagnostic) Error() string {
	switch d.Stage {
	case NoTableFound:
		return fmt.Sprintf("no timeline table found; tables in database: [%s]", strings.Join(d.Tables, ", "))
	case NoContentColumn:
		return fmt.Sprintf("no content column in table %s; columns: [%s]", d.Table, strings.Join(d.Columns, ", "))
	case EmptyResult:
		return fmt.Sprintf("query succeeded but returned no records; table %s may be empty or content column %s is wrong; columns: [%s]",
			d.Table, d.ContentColumn, strings.Join(d.Columns, ", "))
	default:
		return fmt.Sprintf("extraction failed at stage %s", d.Stage)
	}
}

// Is lets errors.Is match on stage alone: errors.Is(err, &Diagnostic{Stage: EmptyResult}).
func (d *Diagnostic) Is(target error) bool {
	t, ok := target.(*Diagnostic)
	if !ok {
		return false
	}
	return t.Stage == d.Stage
}
