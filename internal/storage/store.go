package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dyike/StockQA/internal/agents"
	"github.com/dyike/StockQA/pkg/sqlite"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// Fixed width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var ErrQueryNotFound = errors.New("query not found")

// QueryRecord is one handled query and how it ended.
type QueryRecord struct {
	ID            string             `json:"id"`
	Question      string             `json:"question"`
	Response      string             `json:"response"`
	Outcome       string             `json:"outcome"`
	FailureReason string             `json:"failure_reason,omitempty"`
	Steps         []agents.AgentStep `json:"steps,omitempty"`
	Latency       time.Duration      `json:"latency"`
	CreatedAt     time.Time          `json:"created_at"`
}

// queryRow mirrors the queries table.
type queryRow struct {
	ID            string `db:"id"`
	Question      string `db:"question"`
	Response      string `db:"response"`
	Outcome       string `db:"outcome"`
	FailureReason string `db:"failure_reason"`
	StepsJSON     string `db:"steps_json"`
	Iterations    int    `db:"iterations"`
	LatencyMS     int64  `db:"latency_ms"`
	CreatedAt     string `db:"created_at"`
}

func (r *queryRow) record(withSteps bool) (QueryRecord, error) {
	rec := QueryRecord{
		ID:            r.ID,
		Question:      r.Question,
		Response:      r.Response,
		Outcome:       r.Outcome,
		FailureReason: r.FailureReason,
		Latency:       time.Duration(r.LatencyMS) * time.Millisecond,
	}
	ts, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
	}
	rec.CreatedAt = ts

	if withSteps {
		if err := json.Unmarshal([]byte(r.StepsJSON), &rec.Steps); err != nil {
			return QueryRecord{}, fmt.Errorf("decode steps of %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

// Store is the query journal.
type Store struct {
	db *sqlx.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: sqlx.NewDb(db, "sqlite")}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS queries (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    response TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    failure_reason TEXT NOT NULL DEFAULT '',
    steps_json TEXT NOT NULL DEFAULT '[]',
    iterations INTEGER NOT NULL DEFAULT 0,
    latency_ms INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queries_created ON queries(created_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveQuery inserts rec, stamping CreatedAt when it is zero.
func (s *Store) SaveQuery(ctx context.Context, rec QueryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("query id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	steps := rec.Steps
	if steps == nil {
		steps = []agents.AgentStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}

	row := queryRow{
		ID:            rec.ID,
		Question:      rec.Question,
		Response:      rec.Response,
		Outcome:       rec.Outcome,
		FailureReason: rec.FailureReason,
		StepsJSON:     string(stepsJSON),
		Iterations:    len(rec.Steps),
		LatencyMS:     rec.Latency.Milliseconds(),
		CreatedAt:     rec.CreatedAt.UTC().Format(timeLayout),
	}
	query := `
		INSERT INTO queries (
			id, question, response, outcome, failure_reason,
			steps_json, iterations, latency_ms, created_at
		) VALUES (
			:id, :question, :response, :outcome, :failure_reason,
			:steps_json, :iterations, :latency_ms, :created_at
		)`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert query %s: %w", rec.ID, err)
	}
	return nil
}

// ListQueries returns the most recent queries first. Steps are not loaded.
func (s *Store) ListQueries(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var rows []queryRow
	query := `
		SELECT * FROM queries
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}

	out := make([]QueryRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record(false)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetQuery loads one query with its steps.
func (s *Store) GetQuery(ctx context.Context, id string) (*QueryRecord, error) {
	var row queryRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM queries WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get query %s: %w", id, err)
	}

	rec, err := row.record(true)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
