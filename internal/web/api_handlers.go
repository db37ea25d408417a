package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/joestump/client-radar/internal/extract"
	"github.com/joestump/client-radar/internal/timeline"
)

// --- JSON Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("writeJSON: encode error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, APIErrorResponse{Error: message})
}

// writeExtractError maps the extraction error taxonomy onto status codes.
func (s *Server) writeExtractError(w http.ResponseWriter, err error) {
	var (
		diag *extract.Diagnostic
		conn *extract.ConnectionError
	)
	switch {
	case errors.As(err, &diag):
		s.writeJSON(w, http.StatusUnprocessableEntity, APIErrorResponse{Error: diag.Error(), Diagnostic: diag})
	case errors.As(err, &conn):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Msg("extraction failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// dbParam returns the required ?db= query parameter.
func (s *Server) dbParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := r.URL.Query().Get("db")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "db query parameter is required")
		return "", false
	}
	return path, true
}

// --- API Handlers ---

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIContacts(w http.ResponseWriter, r *http.Request) {
	path, ok := s.dbParam(w, r)
	if !ok {
		return
	}
	contacts, err := s.engine.ReadContacts(r.Context(), path)
	if err != nil {
		s.writeExtractError(w, err)
		return
	}
	if contacts == nil {
		contacts = []extract.ContactRecord{}
	}
	s.writeJSON(w, http.StatusOK, APIContactsResponse{Contacts: contacts})
}

// handleAPIPosts serves GET /api/v1/posts?db=...[&parse=true][&limit=N].
// limit only narrows the configured row cap.
func (s *Server) handleAPIPosts(w http.ResponseWriter, r *http.Request) {
	path, ok := s.dbParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	parse, _ := strconv.ParseBool(q.Get("parse"))

	posts, err := s.engine.ReadPosts(r.Context(), path)
	if err != nil {
		s.writeExtractError(w, err)
		return
	}
	if limit > 0 && limit < len(posts) {
		posts = posts[:limit]
	}

	out := make([]APIPost, len(posts))
	for i, p := range posts {
		out[i].PostRecord = p
		if parse {
			if c, ok := timeline.Parse(p.RawContent); ok {
				out[i].Parsed = &c
			}
		}
	}
	s.writeJSON(w, http.StatusOK, APIPostsResponse{Posts: out})
}

func (s *Server) handleAPIInspect(w http.ResponseWriter, r *http.Request) {
	path, ok := s.dbParam(w, r)
	if !ok {
		return
	}
	in, err := s.engine.Inspect(r.Context(), path)
	if err != nil {
		s.writeExtractError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, in)
}

// handleAPIStartDecrypt starts a decryption run in the background and
// returns its ID. Only one run may be active at a time.
func (s *Server) handleAPIStartDecrypt(w http.ResponseWriter, r *http.Request) {
	d, err := s.newDecryptor()
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	id := uuid.NewString()
	if err := s.runs.begin(id); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		res, err := d.RunAs(ctx, id)
		s.runs.finish(id, res, err)
	}()

	st, _ := s.runs.get(id)
	s.writeJSON(w, http.StatusAccepted, toAPIDecryptRun(st))
}

func (s *Server) handleAPIGetDecrypt(w http.ResponseWriter, r *http.Request) {
	st, ok := s.runs.get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "decryption run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, toAPIDecryptRun(st))
}

// handleDecryptStream replays a run's buffered output and then streams live
// lines as server-sent events. Each event carries one JSON-encoded hub.Line;
// a final "done" event reports the run status.
func (s *Server) handleDecryptStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	st, ok := s.runs.get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "decryption run not found")
		return
	}
	// Subscribing creates a hub entry, so a finished run whose output was
	// already freed must not be subscribed to.
	if st.status != statusRunning && !s.hub.Exists(id) {
		s.writeError(w, http.StatusNotFound, "decryption run output expired")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	_, _ = fmt.Fprintf(w, "retry: 30000\n\n")
	flusher.Flush()

	ch, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				if latest, ok := s.runs.get(id); ok {
					st = latest
				}
				_, _ = fmt.Fprintf(w, "event: done\ndata: {\"status\":%q}\n\n", st.status)
				flusher.Flush()
				return
			}
			data, _ := json.Marshal(line)
			_, _ = fmt.Fprintf(w, "id: %d\nevent: line\ndata: %s\n\n", line.Seq, data)
			flusher.Flush()
		}
	}
}
