package web

import (
	"time"

	"github.com/joestump/client-radar/internal/decrypt"
	"github.com/joestump/client-radar/internal/extract"
	"github.com/joestump/client-radar/internal/timeline"
)

// --- API Response Wrappers ---

// APIContactsResponse wraps a contact list.
type APIContactsResponse struct {
	Contacts []extract.ContactRecord `json:"contacts"`
}

// APIPostsResponse wraps a post list.
type APIPostsResponse struct {
	Posts []APIPost `json:"posts"`
}

// APIErrorResponse is returned for every failed request. Diagnostic is set
// when extraction failed because of the schema found in the file.
type APIErrorResponse struct {
	Error      string              `json:"error"`
	Diagnostic *extract.Diagnostic `json:"diagnostic,omitempty"`
}

// --- API Resource Types ---

// APIPost is one timeline post, optionally with its parsed payload.
type APIPost struct {
	extract.PostRecord
	Parsed *timeline.Content `json:"parsed,omitempty"`
}

// APIDecryptRun is the state of a decryption run.
type APIDecryptRun struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	ExitCode   *int              `json:"exit_code,omitempty"`
	Envelope   *decrypt.Envelope `json:"envelope,omitempty"`
	Output     string            `json:"output,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func toAPIDecryptRun(st runState) APIDecryptRun {
	run := APIDecryptRun{ID: st.id, Status: st.status, StartedAt: st.started}
	if st.err != nil {
		run.Error = st.err.Error()
	}
	if res := st.result; res != nil {
		finished := res.Finished
		code := res.ExitCode
		env := res.Envelope
		run.FinishedAt = &finished
		run.ExitCode = &code
		run.Envelope = &env
		run.Output = res.Output
	}
	return run
}
