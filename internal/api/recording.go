package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/andresmejia3/biomech/internal/session"
	"github.com/andresmejia3/biomech/internal/types"
)

func (h *Handler) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.rec.Status())
}

func (h *Handler) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var meta types.SessionMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Type = strings.TrimSpace(meta.Type)

	if !h.rec.Start(meta) {
		respondError(w, http.StatusConflict, "recording already in progress")
		return
	}
	if h.metrics != nil {
		h.metrics.SetRecording(true)
	}
	h.publishState("recording", meta)
	respondJSON(w, http.StatusAccepted, h.rec.Status())
}

// handleStopRecording finalizes the current recording and persists it.
func (h *Handler) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	s, ok := h.rec.Stop()
	if !ok {
		respondError(w, http.StatusConflict, "not recording")
		return
	}
	if h.metrics != nil {
		h.metrics.SetRecording(false)
	}
	h.publishState("idle", types.SessionMeta{Name: s.Name, Type: s.Type})

	id, err := h.store.Save(r.Context(), s)
	if err != nil {
		h.logger.Error("save recorded session failed", "error", err, "samples", len(s.JointData))
		respondError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	s.ID = id
	h.sessionSaved(s)
	respondJSON(w, http.StatusCreated, session.Summarize(s))
}

func (h *Handler) publishState(state string, meta types.SessionMeta) {
	if h.events == nil {
		return
	}
	if err := h.events.PublishState(state, meta); err != nil {
		h.logger.Warn("state announcement failed", "state", state, "error", err)
	}
}
