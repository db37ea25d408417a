package sampledb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func count(t *testing.T, path, table string) int {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer conn.Close()

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

func TestCreateSeedsRows(t *testing.T) {
	tests := []struct {
		schema Schema
		table  string
		rows   int
	}{
		{FeedsV20, "FeedsV20", 4},
		{EmptyFeeds, "FeedsV20", 0},
		{SnsInfo, "SnsInfo", 2},
		{NoContent, "FeedsV20", 1},
		{Unknown, "ChatMsg", 0},
		{MicroMsg, "Contact", 8},
	}
	for _, tt := range tests {
		t.Run(string(tt.schema), func(t *testing.T) {
			path := MustCreate(t, tt.schema)
			assert.Equal(t, tt.rows, count(t, path, tt.table))
		})
	}
}

func tables(t *testing.T, path string) []string {
	t.Helper()
	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer conn.Close()

	rows, err := conn.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestCreateLeavesOnlyClientTables(t *testing.T) {
	tests := []struct {
		schema Schema
		want   []string
	}{
		{FeedsV20, []string{"FeedsV20", "CommentV20"}},
		{EmptyFeeds, []string{"FeedsV20", "CommentV20"}},
		{SnsInfo, []string{"SnsInfo"}},
		{NoContent, []string{"FeedsV20"}},
		{Unknown, []string{"ChatMsg", "Session"}},
		{MicroMsg, []string{"Contact"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.schema), func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, tables(t, MustCreate(t, tt.schema)))
		})
	}
}

func TestCreateRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taken.db")
	require.NoError(t, os.WriteFile(path, []byte("keep me"), 0o600))

	err := Create(context.Background(), path, FeedsV20)
	require.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestCreateUnknownSchema(t *testing.T) {
	err := Create(context.Background(), filepath.Join(t.TempDir(), "x.db"), Schema("bogus"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestSchemasSorted(t *testing.T) {
	got := Schemas()
	require.Len(t, got, 6)
	for i := 1; i < len(got); i++ {
		assert.Less(t, string(got[i-1]), string(got[i]))
	}
}
