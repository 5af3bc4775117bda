package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lakeoracle/oracle/lake/api/metrics"
	"github.com/lakeoracle/oracle/lake/pkg/chat"
)

type Config struct {
	Logger   *slog.Logger
	Store    *chat.Store
	Models   *chat.ModelCatalog
	Catalogs chat.CatalogSource

	AllowedOrigins []string

	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Models == nil {
		return errors.New("models are required")
	}
	if cfg.Catalogs == nil {
		return errors.New("catalogs are required")
	}
	return nil
}

// Handlers serves the chat UI and its JSON API.
type Handlers struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Handlers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate handlers config: %w", err)
	}
	return &Handlers{log: cfg.Logger, cfg: cfg}, nil
}

// Router mounts every route behind recovery, metrics and CORS middleware.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.Index)
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", h.ListModels)

		r.Get("/catalogs", h.ListCatalogs)
		r.Get("/catalogs/{catalog}/databases", h.ListDatabases)
		r.Get("/catalogs/{catalog}/databases/{database}/tables", h.ListTables)

		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Put("/settings", h.UpdateSettings)
			r.Put("/context", h.UpdateContext)
			r.Post("/messages", h.SubmitMessage)
			r.Delete("/messages", h.ClearMessages)
		})
	})
	return r
}

func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.cfg.Ready(ctx); err != nil {
			h.log.Warn("api: not ready", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto status codes; anything unrecognised is a 500 with a generic body.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound), errors.Is(err, chat.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, chat.ErrInvalidSettings), errors.Is(err, chat.ErrEmptyQuery), errors.Is(err, chat.ErrInvalidContext):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
