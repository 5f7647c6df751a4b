package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fleet-core/internal/automation"
)

// ─── Condition rules ────────────────────────────────────────────────

func (s *Server) handleListConditionRules(w http.ResponseWriter, _ *http.Request) {
	rules := s.engine.ListConditionRules()
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules, "count": len(rules)})
}

// handleCreateConditionRule adds a rule. Server-owned fields in the body
// (id, enabled, lastState, timestamps) are ignored.
func (s *Server) handleCreateConditionRule(w http.ResponseWriter, r *http.Request) {
	var rule automation.ConditionRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.engine.AddConditionRule(rule)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetConditionRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.GetConditionRule(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteConditionRule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveConditionRule(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleConditionRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.ToggleConditionRule(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ─── Gesture rules ──────────────────────────────────────────────────

func (s *Server) handleListGestureRules(w http.ResponseWriter, _ *http.Request) {
	rules := s.engine.ListGestureRules()
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules, "count": len(rules)})
}

func (s *Server) handleCreateGestureRule(w http.ResponseWriter, r *http.Request) {
	var rule automation.GestureRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	created, err := s.engine.AddGestureRule(rule)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetGestureRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.GetGestureRule(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteGestureRule(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveGestureRule(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleGestureRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.engine.ToggleGestureRule(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ─── Gesture feed ───────────────────────────────────────────────────

type gestureRequest struct {
	Gesture string `json:"gesture"`
}

// handleGesture accepts a recognised gesture over HTTP, for recognisers
// that cannot reach the broker.
func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	var req gestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	label := strings.TrimSpace(req.Gesture)
	if label == "" {
		writeBadRequest(w, "gesture is required")
		return
	}

	fired := s.engine.HandleGesture(r.Context(), label)
	writeJSON(w, http.StatusOK, map[string]any{"gesture": label, "fired": fired})
}
