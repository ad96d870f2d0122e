// Package api exposes stored sessions, recording control and the live sample stream over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/andresmejia3/biomech/internal/metrics"
	"github.com/andresmejia3/biomech/internal/recorder"
	"github.com/andresmejia3/biomech/internal/store"
	"github.com/andresmejia3/biomech/internal/types"
)

// Events receives recording lifecycle notifications, e.g. the MQTT emitter.
type Events interface {
	PublishState(state string, meta types.SessionMeta) error
	PublishSession(sum types.SessionSummary) error
}

// Options carries the optional collaborators of the HTTP surface.
type Options struct {
	Recorder *recorder.Controller
	Hub      *Hub
	Metrics  *metrics.Metrics
	Events   Events
	// Location is used for chart labels. Defaults to time.Local.
	Location *time.Location
	Logger   *slog.Logger
}

// Handler serves the session and recording endpoints.
type Handler struct {
	store    store.SessionStore
	rec      *recorder.Controller
	hub      *Hub
	metrics  *metrics.Metrics
	events   Events
	loc      *time.Location
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a handler over the given store.
func New(sessions store.SessionStore, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{
		store:    sessions,
		rec:      opts.Recorder,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		events:   opts.Events,
		loc:      opts.Location,
		logger:   opts.Logger,
		upgrader: newUpgrader(),
	}
}

// RegisterRoutes mounts the API under r. Recording routes are only mounted when a recorder is configured.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.handleListSessions)
		r.Post("/", h.handleImportSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.Patch("/", h.handleRenameSession)
			r.Delete("/", h.handleDeleteSession)
			r.Get("/stats", h.handleSessionStats)
			r.Get("/chart", h.handleChart)
			r.Get("/csv", h.handleCSV)
		})
	})

	if h.rec != nil {
		r.Route("/recording", func(r chi.Router) {
			r.Get("/", h.handleRecordingStatus)
			r.Post("/start", h.handleStartRecording)
			r.Post("/stop", h.handleStopRecording)
			r.Get("/live", h.handleLive)
		})
	}
}

// NewRouter wires the API, health check and metrics endpoint behind the standard middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api", h.RegisterRoutes)
	return r
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
