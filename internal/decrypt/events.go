package decrypt

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Kind tags an Event.
type Kind int

const (
	Stdout Kind = iota
	Stderr
	Terminated
)

func (k Kind) String() string {
	switch k {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "terminated"
	}
}

// Event is one item from a running helper: a line of output with its line
// terminator removed, or the final Terminated event.
type Event struct {
	Kind     Kind
	Data     []byte
	ExitCode int   // Terminated only
	Err      error // Terminated only; set when wait failed for a reason other than exit status
}

// Stream starts the helper and returns its events in arrival order. The
// channel ends with exactly one Terminated event and is then closed. Both
// pipes are drained before the process is waited on.
func Stream(ctx context.Context, l Launcher) (<-chan Event, error) {
	stdout, stderr, wait, err := l.Start(ctx)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 64)
	go func() {
		defer close(events)

		var g errgroup.Group
		g.Go(func() error { return pump(stdout, Stdout, events) })
		g.Go(func() error { return pump(stderr, Stderr, events) })
		pumpErr := g.Wait()

		code, werr := exitCode(wait())
		if werr == nil && pumpErr != nil {
			werr = pumpErr
		}
		events <- Event{Kind: Terminated, ExitCode: code, Err: werr}
	}()
	return events, nil
}

// pump forwards r line by line until EOF. Lines have no length limit.
func pump(r io.Reader, kind Kind, out chan<- Event) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimRight(line, "\r\n")
			out <- Event{Kind: kind, Data: line}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, err
}
