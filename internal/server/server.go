package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/wagmibets/predictfolio/internal/chain"
	"github.com/wagmibets/predictfolio/internal/markets"
	"github.com/wagmibets/predictfolio/internal/metrics"
	"github.com/wagmibets/predictfolio/internal/positions"
)

// Engine is the reconciliation surface the HTTP layer exposes
type Engine interface {
	GetPositions(ctx context.Context, accountID string) (*positions.Book, error)
	GetPositionStats(ctx context.Context, accountID string) (*positions.Stats, error)
}

// Server is the thin HTTP surface over the engine
type Server struct {
	engine Engine
	router chi.Router
}

// New builds the router
func New(engine Engine) *Server {
	s := &Server{engine: engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/accounts/{address}", func(r chi.Router) {
		r.Get("/positions", s.handlePositions)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	book, err := s.engine.GetPositions(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	stats, err := s.engine.GetPositionStats(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chain.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, markets.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Response encode failed")
	}
}

// requestLogger logs each request with its duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
