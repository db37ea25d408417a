// Package decrypt runs the external decryption helper and collects its
// standard output into a single result. The decryption itself happens
// entirely inside the helper.
package decrypt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/joestump/client-radar/internal/coerce"
	"github.com/joestump/client-radar/internal/hub"
)

// ProcessError means the helper could not be located or launched.
type ProcessError struct {
	Name string
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Name, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Result is one completed run. Output holds every stdout line in arrival
// order with line terminators removed.
type Result struct {
	RunID    string    `json:"id"`
	Output   string    `json:"output"`
	ExitCode int       `json:"exit_code"`
	Envelope Envelope  `json:"envelope"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at"`
}

// Aggregator launches the helper and drains its event stream.
type Aggregator struct {
	launcher Launcher
	name     string
	hub      *hub.Hub
	redactor *RedactionFilter
	log      zerolog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithHub publishes every output line to h under the run ID. The run is left
// open; the caller closes it once the result has been recorded.
func WithHub(h *hub.Hub) Option {
	return func(a *Aggregator) { a.hub = h }
}

// WithRedactor sets the filter applied to logged and published lines.
func WithRedactor(rf *RedactionFilter) Option {
	return func(a *Aggregator) { a.redactor = rf }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// WithName sets the helper name used in errors and logs.
func WithName(name string) Option {
	return func(a *Aggregator) { a.name = name }
}

// NewAggregator returns an Aggregator that launches helpers through l.
func NewAggregator(l Launcher, opts ...Option) *Aggregator {
	a := &Aggregator{launcher: l, name: DefaultName, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts a run under a fresh ID.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	return a.RunAs(ctx, uuid.NewString())
}

// RunAs launches the helper and blocks until its output streams close and
// it has exited. There is no timeout; the helper decides when the run ends.
// A non-zero exit status is reported in the Result, not as an error.
func (a *Aggregator) RunAs(ctx context.Context, runID string) (*Result, error) {
	log := a.log.With().Str("run", runID).Str("decryptor", a.name).Logger()

	res := &Result{RunID: runID, Started: time.Now().UTC()}
	events, err := Stream(ctx, a.launcher)
	if err != nil {
		log.Error().Err(err).Msg("decryptor failed to start")
		return nil, &ProcessError{Name: a.name, Err: err}
	}
	log.Info().Msg("decryptor started")

	var out strings.Builder
	var lines int
	for ev := range events {
		switch ev.Kind {
		case Stdout:
			text := coerce.Lossy(ev.Data)
			out.WriteString(text)
			lines++
			a.publish(runID, ev.Kind, text)
		case Stderr:
			text := a.redactor.Redact(coerce.Lossy(ev.Data))
			log.Debug().Str("stream", "stderr").Msg(text)
			a.publish(runID, ev.Kind, text)
		case Terminated:
			res.ExitCode = ev.ExitCode
			if ev.Err != nil {
				log.Warn().Err(ev.Err).Msg("decryptor wait failed")
			}
		}
	}

	res.Output = out.String()
	res.Finished = time.Now().UTC()
	res.Envelope = ParseEnvelope(res.Output)

	evt := log.Info()
	if res.ExitCode != 0 {
		evt = log.Warn()
	}
	evt.Int("exit_code", res.ExitCode).
		Int("lines", lines).
		Bool("json", res.Envelope.Valid).
		Bool("success", res.Envelope.OK()).
		Str("status", res.Envelope.Status).
		Dur("elapsed", res.Finished.Sub(res.Started)).
		Msg("decryptor finished")
	return res, nil
}

func (a *Aggregator) publish(runID string, kind Kind, text string) {
	if a.hub == nil {
		return
	}
	a.hub.Publish(runID, kind.String(), a.redactor.Redact(text))
}

// RunDecryption locates the default helper, runs it with no arguments and
// returns its concatenated standard output. The output is expected to be a
// JSON document; parsing it is left to the caller.
func RunDecryption(ctx context.Context) (string, error) {
	path, err := Locate(DefaultName, "")
	if err != nil {
		return "", &ProcessError{Name: DefaultName, Err: err}
	}
	res, err := NewAggregator(&ExecLauncher{Path: path}, WithLogger(*zerolog.Ctx(ctx))).Run(ctx)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}
