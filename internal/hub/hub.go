// Package hub fans decryptor output out to live subscribers, keyed by run ID.
package hub

import "sync"

const defaultBufferCap = 1000

// Line is one published chunk of decryptor output. Seq counts every line
// published for the run, including ones since evicted from the buffer.
type Line struct {
	Seq    int    `json:"seq"`
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

// run holds the replay buffer and subscribers for one decryption run.
type run struct {
	buf     []Line // circular buffer
	pos     int    // next write position
	count   int
	clients map[chan Line]struct{}
	done    bool
}

// lines returns the buffered lines from oldest to newest.
func (r *run) lines() []Line {
	n := len(r.buf)
	if n == 0 || r.pos == 0 {
		return r.buf
	}
	out := make([]Line, n)
	copy(out, r.buf[r.pos:])
	copy(out[n-r.pos:], r.buf[:r.pos])
	return out
}

func (r *run) append(l Line) {
	if len(r.buf) < cap(r.buf) {
		r.buf = append(r.buf, l)
	} else {
		r.buf[r.pos] = l
	}
	r.pos = (r.pos + 1) % cap(r.buf)
	r.count++
}

// Hub buffers the last defaultBufferCap lines per run so a subscriber that
// joins late still sees recent output before the live tail.
type Hub struct {
	mu   sync.Mutex
	runs map[string]*run
}

// New creates a Hub ready for use.
func New() *Hub {
	return &Hub{runs: make(map[string]*run)}
}

// getOrCreate returns the run for id, creating it if needed.
// Caller must hold h.mu.
func (h *Hub) getOrCreate(id string) *run {
	r, ok := h.runs[id]
	if !ok {
		r = &run{
			buf:     make([]Line, 0, defaultBufferCap),
			clients: make(map[chan Line]struct{}),
		}
		h.runs[id] = r
	}
	return r
}

// Publish appends a line to the run's buffer and offers it to every
// subscriber. Slow subscribers miss lines rather than stall the publisher.
func (h *Hub) Publish(runID, stream, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.getOrCreate(runID)
	if r.done {
		return
	}

	l := Line{Seq: r.count + 1, Stream: stream, Text: text}
	r.append(l)

	for ch := range r.clients {
		select {
		case ch <- l:
		default:
		}
	}
}

// Subscribe returns a channel that first replays the buffered lines and then
// receives live ones, plus an unsubscribe function. For a finished run the
// channel is closed right after the replay.
func (h *Hub) Subscribe(runID string) (<-chan Line, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.getOrCreate(runID)
	ch := make(chan Line, defaultBufferCap+64)

	for _, l := range r.lines() {
		ch <- l
	}

	if r.done {
		close(ch)
		return ch, func() {}
	}

	r.clients[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(r.clients, ch)
	}
}

// Close marks the run finished and closes every subscriber channel. Later
// Publish calls are dropped. Closing a run that never published still
// records it, so subscribers arriving afterwards are not left waiting.
func (h *Hub) Close(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.getOrCreate(runID)
	r.done = true
	for ch := range r.clients {
		close(ch)
	}
	r.clients = nil
}

// Remove deletes a run and its buffer, closing any remaining subscribers.
func (h *Hub) Remove(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.runs[runID]
	if !ok {
		return
	}
	for ch := range r.clients {
		close(ch)
	}
	delete(h.runs, runID)
}

// Exists reports whether the hub knows about the run at all.
func (h *Hub) Exists(runID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.runs[runID]
	return ok
}
