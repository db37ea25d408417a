package extract

import (
	"fmt"

	"github.com/joestump/client-radar/internal/schema"
)

// Diagnostic and its stages are re-exported so callers only need this package.
type Diagnostic = schema.Diagnostic

const (
	NoTableFound    = schema.NoTableFound
	NoContentColumn = schema.NoContentColumn
	EmptyResult     = schema.EmptyResult
)

// ConnectionError means the database file could not be opened or read.
// Encrypted files usually surface here, on the first catalog read.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("open database %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError carries the offending SQL. It should not occur while the
// builder's whitelist holds, and is kept verbose for debugging.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("build query: %v", e.Err)
	}
	return fmt.Sprintf("query failed: %v | SQL: %s", e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }
