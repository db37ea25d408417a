package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joestump/client-radar/internal/sampledb"
)

func startRun(t *testing.T, e *testEnv) string {
	t.Helper()
	w := e.do("POST", "/api/v1/decrypt")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	return decodeJSON[APIDecryptRun](t, w.Body.Bytes()).ID
}

func dbQuery(path string) string {
	return "db=" + url.QueryEscape(path)
}

func decodeJSON[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

// --- Health Endpoint ---

func TestAPIHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	w := e.do("GET", "/api/v1/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// --- Extraction Endpoints ---

func TestAPIPosts(t *testing.T) {
	e := newTestEnv(t, nil)
	path := sampledb.MustCreate(t, sampledb.FeedsV20)

	w := e.do("GET", "/api/v1/posts?parse=true&"+dbQuery(path))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeJSON[APIPostsResponse](t, w.Body.Bytes())
	require.Len(t, resp.Posts, 3)
	assert.Equal(t, "1002", resp.Posts[0].ID)
	require.NotNil(t, resp.Posts[1].Parsed)
	assert.Equal(t, "Morning run by the river", resp.Posts[1].Parsed.Text)
}

func TestAPIPostsLimit(t *testing.T) {
	e := newTestEnv(t, nil)
	path := sampledb.MustCreate(t, sampledb.FeedsV20)

	w := e.do("GET", "/api/v1/posts?limit=2&"+dbQuery(path))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[APIPostsResponse](t, w.Body.Bytes())
	assert.Len(t, resp.Posts, 2)
	assert.Nil(t, resp.Posts[0].Parsed)

	for _, bad := range []string{"0", "-1", "many"} {
		w := e.do("GET", "/api/v1/posts?limit="+bad+"&"+dbQuery(path))
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestAPIPostsDiagnostic(t *testing.T) {
	e := newTestEnv(t, nil)
	path := sampledb.MustCreate(t, sampledb.EmptyFeeds)

	w := e.do("GET", "/api/v1/posts?"+dbQuery(path))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeJSON[APIErrorResponse](t, w.Body.Bytes())
	require.NotNil(t, resp.Diagnostic)
	assert.Equal(t, "empty_result", string(resp.Diagnostic.Stage))
	assert.Equal(t, "objectDesc", resp.Diagnostic.ContentColumn)
	assert.Contains(t, resp.Error, "returned no records")
}

func TestAPIPostsMissingDB(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do("GET", "/api/v1/posts")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "db query parameter is required")

	w = e.do("GET", "/api/v1/posts?"+dbQuery(filepath.Join(t.TempDir(), "missing.db")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "open database")
}

func TestAPIContacts(t *testing.T) {
	e := newTestEnv(t, nil)
	path := sampledb.MustCreate(t, sampledb.MicroMsg)

	w := e.do("GET", "/api/v1/contacts?"+dbQuery(path))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[APIContactsResponse](t, w.Body.Bytes())
	assert.Len(t, resp.Contacts, 2)
}

func TestAPIContactsQueryError(t *testing.T) {
	e := newTestEnv(t, nil)
	path := sampledb.MustCreate(t, sampledb.Unknown)

	w := e.do("GET", "/api/v1/contacts?"+dbQuery(path))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPIInspect(t *testing.T) {
	e := newTestEnv(t, nil)
	path := sampledb.MustCreate(t, sampledb.NoContent)

	w := e.do("GET", "/api/v1/inspect?"+dbQuery(path))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "FeedsV20", resp["table"])
	diag, ok := resp["diagnostic"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "no_content_column", diag["stage"])
}

// --- Decryption Endpoints ---

func waitForRun(t *testing.T, e *testEnv, id string) APIDecryptRun {
	t.Helper()
	var run APIDecryptRun
	require.Eventually(t, func() bool {
		w := e.do("GET", "/api/v1/decrypt/"+id)
		if w.Code != http.StatusOK {
			return false
		}
		run = decodeJSON[APIDecryptRun](t, w.Body.Bytes())
		return run.Status != statusRunning
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestAPIDecryptLifecycle(t *testing.T) {
	e := newTestEnv(t, &scriptLauncher{
		stdout: "{\"status\":\"success\",\n\"wxid\":\"wxid_alice\",\"feeds\":[]}\n",
		stderr: "opening MicroMsg.db\n",
	})

	w := e.do("POST", "/api/v1/decrypt")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	started := decodeJSON[APIDecryptRun](t, w.Body.Bytes())
	require.NotEmpty(t, started.ID)

	run := waitForRun(t, e, started.ID)
	assert.Equal(t, statusFinished, run.Status)
	assert.Equal(t, `{"status":"success","wxid":"wxid_alice","feeds":[]}`, run.Output)
	require.NotNil(t, run.ExitCode)
	assert.Equal(t, 0, *run.ExitCode)
	require.NotNil(t, run.Envelope)
	assert.True(t, run.Envelope.OK())
	assert.Equal(t, "wxid_alice", run.Envelope.WxID)

	w = e.do("GET", "/api/v1/decrypt/"+started.ID+"/stream")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Equal(t, 3, strings.Count(body, "event: line\n"))
	assert.Contains(t, body, `"stream":"stderr","text":"opening MicroMsg.db"`)
	assert.Contains(t, body, "event: done\ndata: {\"status\":\"finished\"}")
}

func TestAPIDecryptBusy(t *testing.T) {
	gate := make(chan struct{})
	e := newTestEnv(t, &scriptLauncher{stdout: "{}\n", gate: gate})

	w := e.do("POST", "/api/v1/decrypt")
	require.Equal(t, http.StatusAccepted, w.Code)
	first := decodeJSON[APIDecryptRun](t, w.Body.Bytes())

	w = e.do("POST", "/api/v1/decrypt")
	assert.Equal(t, http.StatusConflict, w.Code)

	close(gate)
	run := waitForRun(t, e, first.ID)
	assert.Equal(t, "{}", run.Output)

	w = e.do("POST", "/api/v1/decrypt")
	assert.Equal(t, http.StatusAccepted, w.Code)
	second := decodeJSON[APIDecryptRun](t, w.Body.Bytes())
	waitForRun(t, e, second.ID)
}

func TestAPIDecryptUnavailable(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do("POST", "/api/v1/decrypt")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "decryptor not found")
}

func TestAPIDecryptUnknownRun(t *testing.T) {
	e := newTestEnv(t, nil)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/v1/decrypt/nope").Code)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/v1/decrypt/nope/stream").Code)
}

func TestAPIDecryptStreamFollowsLiveRun(t *testing.T) {
	gate := make(chan struct{})
	e := newTestEnv(t, &scriptLauncher{stdout: "{\"status\":\"success\"}\n", gate: gate})
	id := startRun(t, e)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- e.do("GET", "/api/v1/decrypt/"+id+"/stream") }()
	close(gate)

	var w *httptest.ResponseRecorder
	select {
	case w = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after the run finished")
	}
	body := w.Body.String()
	assert.Contains(t, body, `"text":"{\"status\":\"success\"}"`)
	assert.True(t, strings.HasSuffix(body, "event: done\ndata: {\"status\":\"finished\"}\n\n"), body)
}

func TestAPIDecryptEvictedRunFreesOutput(t *testing.T) {
	e := newTestEnv(t, &scriptLauncher{stdout: "{}\n"})

	first := startRun(t, e)
	waitForRun(t, e, first)
	require.True(t, e.hub.Exists(first))

	for i := 0; i < maxRetainedRuns; i++ {
		waitForRun(t, e, startRun(t, e))
	}

	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/v1/decrypt/"+first).Code)
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/v1/decrypt/"+first+"/stream").Code)
	assert.False(t, e.hub.Exists(first))
}
