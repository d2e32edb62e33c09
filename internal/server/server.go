package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/StockQA/internal/metrics"
	"github.com/dyike/StockQA/internal/service"
	"github.com/dyike/StockQA/internal/storage"
	"github.com/dyike/StockQA/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// QueryHandler answers one free-text question.
type QueryHandler interface {
	Handle(ctx context.Context, text string) (*service.QueryResponse, error)
}

// Journal reads back handled queries.
type Journal interface {
	ListQueries(ctx context.Context, limit int) ([]storage.QueryRecord, error)
	GetQuery(ctx context.Context, id string) (*storage.QueryRecord, error)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server exposes the query service over HTTP.
type Server struct {
	addr    string
	queries QueryHandler
	journal Journal
	logger  *zap.SugaredLogger
}

type Option func(*Server)

// WithJournal exposes the query journal under /queries.
func WithJournal(j Journal) Option {
	return func(s *Server) { s.journal = j }
}

func New(addr string, queries QueryHandler, l *zap.SugaredLogger, opts ...Option) *Server {
	s := &Server{addr: addr, queries: queries, logger: logger.Nop(l)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with permissive CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	if s.journal != nil {
		mux.HandleFunc("GET /queries", s.handleListQueries)
		mux.HandleFunc("GET /queries/{id}", s.handleGetQuery)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Infof("api server listening on %s", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		s.logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req service.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	resp, err := s.queries.Handle(r.Context(), req.Text)
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	case err != nil:
		s.logger.Errorw("Error processing query", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	recs, err := s.journal.ListQueries(r.Context(), limit)
	if err != nil {
		s.logger.Errorw("Error listing queries", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	if recs == nil {
		recs = []storage.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": recs})
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	rec, err := s.journal.GetQuery(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, storage.ErrQueryNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error()})
		return
	case err != nil:
		s.logger.Errorw("Error loading query", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
