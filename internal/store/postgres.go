package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Runs ---

// Run is one pipeline execution.
type Run struct {
	ID         int64      `json:"id"`
	RunDate    time.Time  `json:"run_date"`
	Status     string     `json:"status"`
	RootPostID string     `json:"root_post_id,omitempty"`
	Report     string     `json:"report,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StartRun inserts a running row for runDate and returns its id.
func (s *Store) StartRun(ctx context.Context, runDate time.Time) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO report_runs (run_date, status) VALUES ($1, $2) RETURNING id`,
		runDate.UTC().Truncate(24*time.Hour), StatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of run id.
func (s *Store) FinishRun(ctx context.Context, id int64, status, rootPostID, report, errText string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE report_runs
		 SET status = $2, root_post_id = $3, report = $4, error = $5, finished_at = now()
		 WHERE id = $1`,
		id, status, rootPostID, report, errText)
	if err != nil {
		return fmt.Errorf("update run %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %d: not found", id)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_date, status, root_post_id, report, error, started_at, finished_at
		 FROM report_runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.RunDate, &r.Status, &r.RootPostID, &r.Report, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
