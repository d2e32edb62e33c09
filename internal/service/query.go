package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dyike/StockQA/internal/agents"
	"github.com/dyike/StockQA/internal/metrics"
	"github.com/dyike/StockQA/internal/storage"
	"github.com/dyike/StockQA/pkg/logger"
)

var ErrEmptyQuery = errors.New("query text is required")

// Query outcomes recorded in metrics.
const (
	OutcomeAnswered = "answered"
	OutcomeFailed   = "failed"
	OutcomeError    = "error"
)

type QueryRequest struct {
	Text string `json:"text"`
}

type QueryResponse struct {
	Response string `json:"response"`
}

// Reasoner runs one query to completion.
type Reasoner interface {
	Run(ctx context.Context, query string) (*agents.AgentResult, error)
}

// Recorder persists handled queries.
type Recorder interface {
	SaveQuery(ctx context.Context, rec storage.QueryRecord) error
}

type Option func(*QueryService)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *QueryService) { s.logger = logger.Nop(l) }
}

// WithQueryDelay spaces query processing at least d apart across all callers.
func WithQueryDelay(d time.Duration) Option {
	return func(s *QueryService) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithRecorder journals every query that reaches the reasoner.
func WithRecorder(r Recorder) Option {
	return func(s *QueryService) { s.recorder = r }
}

// QueryService is the entry point for free-text stock questions.
type QueryService struct {
	reasoner Reasoner
	limiter  *rate.Limiter
	recorder Recorder
	logger   *zap.SugaredLogger
}

func NewQueryService(reasoner Reasoner, opts ...Option) *QueryService {
	s := &QueryService{
		reasoner: reasoner,
		logger:   logger.Nop(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle answers text. A run that ends without a final answer yields a response
// prefixed with "Error: ". Returned errors are service faults: an empty query,
// an oracle failure or a canceled context.
func (s *QueryService) Handle(ctx context.Context, text string) (*QueryResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	queryID := uuid.NewString()
	log := s.logger.With("query_id", queryID)
	log.Infow("Processing query", "text", text)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for query slot: %w", err)
		}
	}

	start := time.Now()
	rec := storage.QueryRecord{ID: queryID, Question: text, CreatedAt: start}
	result, err := s.reasoner.Run(ctx, text)
	if err != nil {
		metrics.RecordQuery(OutcomeError, time.Since(start))
		log.Errorw("Error processing query", "error", err)
		rec.Outcome, rec.FailureReason = OutcomeError, err.Error()
		s.record(ctx, log, rec, start)
		return nil, fmt.Errorf("process query: %w", err)
	}
	rec.Steps = result.Steps

	if !result.Succeeded() {
		metrics.RecordQuery(OutcomeFailed, time.Since(start))
		log.Warnw("Query ended without an answer", "reason", result.FailureReason, "steps", len(result.Steps))
		rec.Outcome, rec.FailureReason = OutcomeFailed, result.FailureReason
		rec.Response = "Error: " + result.FailureReason
		s.record(ctx, log, rec, start)
		return &QueryResponse{Response: rec.Response}, nil
	}

	metrics.RecordQuery(OutcomeAnswered, time.Since(start))
	log.Infow("Query processed successfully", "steps", len(result.Steps), "latency", time.Since(start))
	rec.Outcome, rec.Response = OutcomeAnswered, result.FinalAnswer
	s.record(ctx, log, rec, start)
	return &QueryResponse{Response: result.FinalAnswer}, nil
}

// record journals rec. A journal failure never fails the query.
func (s *QueryService) record(ctx context.Context, log *zap.SugaredLogger, rec storage.QueryRecord, start time.Time) {
	if s.recorder == nil {
		return
	}
	rec.Latency = time.Since(start)
	if err := s.recorder.SaveQuery(context.WithoutCancel(ctx), rec); err != nil {
		log.Warnw("Failed to journal query", "error", err)
	}
}
