package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/fleet-core/internal/events"
	"github.com/nerrad567/fleet-core/internal/journal"
)

// handleListEvents returns the in-memory activity log, newest first.
//
// Query parameters:
//   - limit: max events (default: everything held)
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	list := s.events.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"events":   list,
		"count":    len(list),
		"capacity": s.events.Capacity(),
	})
}

// handleClearEvents empties the in-memory log. The journal is untouched.
func (s *Server) handleClearEvents(w http.ResponseWriter, _ *http.Request) {
	s.events.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleEventHistory pages through the persistent journal.
//
// Query parameters:
//   - type: severity filter (info, success, warning, error)
//   - since: RFC 3339 timestamp, inclusive
//   - limit: max results (default 50, max 500)
//   - offset: pagination offset
func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "event journal not configured")
		return
	}

	q := r.URL.Query()
	var filter journal.Filter

	if v := q.Get("type"); v != "" {
		sev := events.Severity(v)
		if !sev.Valid() {
			writeBadRequest(w, "invalid type")
			return
		}
		filter.Severity = sev
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "invalid since timestamp")
			return
		}
		filter.Since = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list journal", "error", err)
		writeInternalError(w, "failed to list event history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
