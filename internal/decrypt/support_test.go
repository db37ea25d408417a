package decrypt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Envelope
	}{
		{"empty", "", Envelope{}},
		{"garbage", "Traceback (most recent call last):", Envelope{}},
		{"array", `[1,2]`, Envelope{}},
		{"error", `{"status":"error","message":"no key"}`, Envelope{Valid: true, Status: "error", Message: "no key"}},
		{
			"success",
			`  {"status":"success","wxid":"wxid_a","micro_db_path":"m.db","sns_db_path":"s.db","feeds":[{},{},{}]}` + "\n",
			Envelope{Valid: true, Status: "success", WxID: "wxid_a", MicroDBPath: "m.db", SnsDBPath: "s.db", Feeds: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEnvelope(tt.output))
		})
	}
}

func TestRedactionFilterRawAndEncoded(t *testing.T) {
	rf := newRedactionFilter([]string{"RADAR_SECRET_DB_KEY=p@ss w0rd"}, zerolog.Nop())

	assert.Equal(t, "key [REDACTED:RADAR_SECRET_DB_KEY] ok", rf.Redact("key p@ss w0rd ok"))
	assert.Equal(t, "?k=[REDACTED:RADAR_SECRET_DB_KEY:urlencoded]", rf.Redact("?k=p%40ss+w0rd"))
}

func TestRedactionFilterLongestSecretFirst(t *testing.T) {
	rf := newRedactionFilter([]string{
		"RADAR_SECRET_SHORT=abcd",
		"RADAR_SECRET_LONG=abcd1234",
	}, zerolog.Nop())

	for i := 0; i < 20; i++ {
		assert.Equal(t, "k=[REDACTED:RADAR_SECRET_LONG] p=[REDACTED:RADAR_SECRET_SHORT]",
			rf.Redact("k=abcd1234 p=abcd"))
	}
}

func TestRedactionFilterIgnoresOtherVars(t *testing.T) {
	rf := newRedactionFilter([]string{"HOME=/root", "RADAR_SECRET_EMPTY=", "malformed"}, zerolog.Nop())
	assert.Equal(t, "/root stays", rf.Redact("/root stays"))
}

func TestRedactionFilterFromEnvironment(t *testing.T) {
	t.Setenv("RADAR_SECRET_PIN", "123")

	rf := NewRedactionFilter(zerolog.Nop())
	assert.Equal(t, "pin [REDACTED:RADAR_SECRET_PIN]", rf.Redact("pin 123"))
}

func TestNilRedactionFilter(t *testing.T) {
	var rf *RedactionFilter
	assert.Equal(t, "as is", rf.Redact("as is"))
}

func TestLocateExplicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom-engine")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	got, err := Locate(DefaultName, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = Locate(DefaultName, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Locate(DefaultName, t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocateOnPath(t *testing.T) {
	dir := t.TempDir()
	name := "radar-test-engine"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	got, err := Locate(name, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, name), got)

	_, err = Locate("radar-test-engine-absent", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "stdout", Stdout.String())
	assert.Equal(t, "stderr", Stderr.String())
	assert.Equal(t, "terminated", Terminated.String())
}
