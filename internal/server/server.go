// Package server exposes the search engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kamusis/upksearch/internal/config"
	"github.com/kamusis/upksearch/internal/search"
	"github.com/kamusis/upksearch/internal/search/index"
)

const defaultLimit = 10

// Engine is the part of search.Engine the server needs.
type Engine interface {
	Search(ctx context.Context, q search.Query) ([]search.Result, error)
	Rebuild(ctx context.Context) (*index.Index, error)
	Status() search.Status
}

// Server represents the HTTP query endpoint.
type Server struct {
	engine     Engine
	router     *mux.Router
	httpServer *http.Server
	cfg        config.Server
	log        *zap.Logger
}

// New creates a server with its routes registered.
func New(engine Engine, cfg config.Server, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{engine: engine, cfg: cfg, log: log}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware)
	s.router.Use(corsMiddleware)

	s.router.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	s.router.HandleFunc("/reindex", s.handleReindex).Methods(http.MethodPost, http.MethodOptions)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet, http.MethodOptions)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.cfg.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	limit := defaultLimit
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	q := search.Query{
		Text:    params.Get("q"),
		Package: params.Get("pkg"),
		Type:    params.Get("type"),
		TopK:    limit,
	}
	if v := params.Get("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "min_score must be a number")
			return
		}
		q.MinScore = &f
	}

	results, err := s.engine.Search(r.Context(), q)
	switch {
	case err == nil:
	case errors.Is(err, search.ErrIndexUnavailable):
		s.respondWithError(w, http.StatusServiceUnavailable, search.ErrIndexUnavailable.Error())
		return
	case errors.Is(err, search.ErrInvalidTopK):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.log.Error("search failed", zap.String("q", q.Text), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	s.respondWithJSON(w, http.StatusOK, results)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.engine.Status().Ready {
		s.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.Rebuild(r.Context()); err != nil {
		if errors.Is(err, index.ErrEmptyCatalog) {
			s.respondWithError(w, http.StatusConflict, "catalog is empty, run ingest first")
			return
		}
		s.log.Error("reindex failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	s.respondWithJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"cannot encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
