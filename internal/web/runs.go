package web

import (
	"errors"
	"sync"
	"time"

	"github.com/joestump/client-radar/internal/decrypt"
	"github.com/joestump/client-radar/internal/hub"
)

const maxRetainedRuns = 50

// errBusy is returned when a decryption run is already in progress.
var errBusy = errors.New("a decryption run is already in progress")

const (
	statusRunning  = "running"
	statusFinished = "finished"
	statusFailed   = "failed"
)

type runState struct {
	id      string
	status  string
	started time.Time
	result  *decrypt.Result
	err     error
}

// runRegistry tracks the active run and the most recent finished ones. It
// owns the lifetime of each run's output in the hub: finish closes it and
// eviction frees it, both under the registry lock, so a reader never sees a
// finished run whose hub entry is still open.
type runRegistry struct {
	mu     sync.Mutex
	active string
	runs   map[string]*runState
	order  []string // oldest first
	keep   int
	hub    *hub.Hub
}

func newRunRegistry(keep int, h *hub.Hub) *runRegistry {
	return &runRegistry{runs: make(map[string]*runState), keep: keep, hub: h}
}

// begin registers id as the active run.
func (r *runRegistry) begin(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" {
		return errBusy
	}
	r.active = id
	r.runs[id] = &runState{id: id, status: statusRunning, started: time.Now().UTC()}
	r.order = append(r.order, id)
	r.evict()
	return nil
}

// finish records the outcome of the active run and then closes its hub
// entry, ending any live streams.
func (r *runRegistry) finish(id string, res *decrypt.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == id {
		r.active = ""
	}
	if st, ok := r.runs[id]; ok {
		st.result, st.err = res, err
		st.status = statusFinished
		if err != nil {
			st.status = statusFailed
		}
	}
	r.hub.Close(id)
}

// get returns a copy of the run's state.
func (r *runRegistry) get(id string) (runState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.runs[id]
	if !ok {
		return runState{}, false
	}
	return *st, true
}

// evict drops the oldest finished runs beyond the retention limit.
// Caller must hold r.mu.
func (r *runRegistry) evict() {
	for len(r.order) > r.keep {
		oldest := r.order[0]
		if oldest == r.active {
			return
		}
		delete(r.runs, oldest)
		r.order = r.order[1:]
		r.hub.Remove(oldest)
	}
}
