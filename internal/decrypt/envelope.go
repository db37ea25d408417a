package decrypt

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Envelope is the summary of the helper's JSON output. The helper prints a
// single object: {"status":"success","wxid":...,"feeds":[...]} on success or
// {"status":"error","message":...} on failure.
type Envelope struct {
	Valid       bool   `json:"valid"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
	WxID        string `json:"wxid,omitempty"`
	MicroDBPath string `json:"micro_db_path,omitempty"`
	SnsDBPath   string `json:"sns_db_path,omitempty"`
	Feeds       int    `json:"feeds"`
}

// OK reports whether the helper declared success.
func (e Envelope) OK() bool { return e.Valid && e.Status == "success" }

// ParseEnvelope inspects output without failing. Output that is not a single
// JSON document yields an Envelope with Valid unset.
func ParseEnvelope(output string) Envelope {
	output = strings.TrimSpace(output)
	if output == "" || !gjson.Valid(output) {
		return Envelope{}
	}
	doc := gjson.Parse(output)
	if !doc.IsObject() {
		return Envelope{}
	}

	env := Envelope{
		Valid:       true,
		Status:      doc.Get("status").String(),
		Message:     doc.Get("message").String(),
		WxID:        doc.Get("wxid").String(),
		MicroDBPath: doc.Get("micro_db_path").String(),
		SnsDBPath:   doc.Get("sns_db_path").String(),
	}
	if feeds := doc.Get("feeds"); feeds.IsArray() {
		env.Feeds = len(feeds.Array())
	}
	return env
}
