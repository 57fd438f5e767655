// Package server provides the HTTP API for lottoracle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rewired-gh/lottoracle/internal/markov"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/storage"
	"github.com/rewired-gh/lottoracle/internal/updater"
)

// Generator produces suggestions.
type Generator interface {
	Generate(ctx context.Context) (markov.Suggestion, error)
}

// Updater runs the update action on demand.
type Updater interface {
	Run(ctx context.Context) (updater.Result, error)
}

// Store is the read side of the draw store.
type Store interface {
	LoadAll() ([]models.Draw, error)
}

// Config holds server dependencies and settings.
type Config struct {
	Log       zerolog.Logger // tagged by the caller, e.g. logger.Component("server")
	Addr      string
	Generator Generator
	Updater   Updater // optional; POST /update is not routed when nil
	Store     Store
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	generator Generator
	updater   Updater
	store     Store
}

// GenerateResponse is the body of GET /generate.
type GenerateResponse struct {
	ID       string `json:"id"`
	Numbers  []int  `json:"numbers"`
	Complete bool   `json:"complete"`
	Attempts int    `json:"attempts"`
}

// LatestResponse is the body of GET /draws/latest.
type LatestResponse struct {
	Date    string `json:"date"`
	Numbers [6]int `json:"numbers"`
	Bonus   int    `json:"bonus"`
	Count   int    `json:"count"`
}

// UpdateResponse is the body of POST /update.
type UpdateResponse struct {
	Appended bool   `json:"appended"`
	Round    int    `json:"round"`
	Date     string `json:"date"`
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log,
		generator: cfg.Generator,
		updater:   cfg.Updater,
		store:     cfg.Store,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/generate", s.handleGenerate)
	s.router.Get("/draws/latest", s.handleLatest)
	if s.updater != nil {
		s.router.Post("/update", s.handleUpdate)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	suggestion, err := s.generator.Generate(r.Context())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, GenerateResponse{
		ID:       uuid.New().String(),
		Numbers:  suggestion.Numbers,
		Complete: suggestion.Complete,
		Attempts: suggestion.Attempts,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	draws, err := s.store.LoadAll()
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	if len(draws) == 0 {
		s.writeError(w, r, http.StatusNotFound, storage.ErrEmptyStore)
		return
	}

	latest := draws[len(draws)-1]
	s.writeJSON(w, http.StatusOK, LatestResponse{
		Date:    latest.DateString(),
		Numbers: latest.Numbers,
		Bonus:   latest.Bonus,
		Count:   len(draws),
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	result, err := s.updater.Run(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusOK, UpdateResponse{
		Appended: result.Appended,
		Round:    result.Latest.Round,
		Date:     result.Latest.Draw.DateString(),
	})
}

// statusFor maps generator and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, markov.ErrInsufficientData),
		errors.Is(err, storage.ErrEmptyStore),
		errors.Is(err, storage.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.log.Warn().
		Err(err).
		Int("status", status).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("Request failed")
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
