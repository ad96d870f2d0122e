package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/andresmejia3/biomech/internal/export"
	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/store"
	"github.com/andresmejia3/biomech/internal/types"
)

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list sessions failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// handleImportSession stores a session posted as JSON, e.g. one recorded on another machine.
func (h *Handler) handleImportSession(w http.ResponseWriter, r *http.Request) {
	var payload types.Session
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateImport(&payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.store.Save(r.Context(), payload)
	if err != nil {
		h.logger.Error("save session failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	payload.ID = id
	h.sessionSaved(payload)
	respondJSON(w, http.StatusCreated, session.Summarize(payload))
}

func validateImport(s *types.Session) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.StartTime.IsZero() {
		if len(s.JointData) == 0 {
			return errors.New("startTime is required")
		}
		s.StartTime = s.JointData[0].Timestamp
	}
	if s.EndTime.IsZero() {
		s.EndTime = s.StartTime
		if n := len(s.JointData); n > 0 {
			s.EndTime = s.JointData[n-1].Timestamp
		}
	}
	if s.EndTime.Before(s.StartTime) {
		return errors.New("endTime precedes startTime")
	}
	buf := session.NewBuffer()
	for i, sample := range s.JointData {
		if err := sample.Angles.Validate(); err != nil {
			return fmt.Errorf("jointData[%d]: %w", i, err)
		}
		if err := buf.Append(sample); err != nil {
			return fmt.Errorf("jointData[%d]: %w", i, err)
		}
	}
	return nil
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (types.Session, bool) {
	s, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "session not found")
		return s, false
	case err != nil:
		h.logger.Error("get session failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return s, false
	}
	return s, true
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.loadSession(w, r); ok {
		respondJSON(w, http.StatusOK, s)
	}
}

func (h *Handler) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, struct {
		types.SessionSummary
		Joints []types.JointStats `json:"joints"`
	}{session.Summarize(s), session.Stats(s)})
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.loadSession(w, r); ok {
		respondJSON(w, http.StatusOK, export.Chart(s, h.loc))
	}
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(s)))
	if err := export.WriteCSV(w, s); err != nil {
		h.logger.Warn("csv download interrupted", "id", s.ID, "error", err)
	}
}

func (h *Handler) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	id := chi.URLParam(r, "id")
	err := h.store.Rename(r.Context(), id, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "session not found")
	case err != nil:
		h.logger.Error("rename session failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to rename session")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"id": id, "name": name})
	}
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "session not found")
	case err != nil:
		h.logger.Error("delete session failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// sessionSaved counts and announces a persisted session. Announcement failures are logged only.
func (h *Handler) sessionSaved(s types.Session) {
	if h.metrics != nil {
		h.metrics.SessionSaved()
	}
	if h.events != nil {
		if err := h.events.PublishSession(session.Summarize(s)); err != nil {
			h.logger.Warn("session announcement failed", "id", s.ID, "error", err)
		}
	}
}
