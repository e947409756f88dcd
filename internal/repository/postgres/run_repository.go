package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/retail-ledger/backend-go/internal/domain"
	"github.com/andresuchdata/retail-ledger/backend-go/internal/repository"
	"github.com/jmoiron/sqlx"
)

// RunRepository handles database operations for run tracking
type RunRepository struct {
	db *DB
}

var _ repository.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun creates a new run record
func (r *RunRepository) CreateRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO simulation_runs (
			kind, status, seed, days_processed, purchases,
			sales, lines, skipped_lines, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx, query,
		run.Kind, string(run.Status), int64(run.Seed), run.DaysProcessed, run.Purchases,
		run.Sales, run.Lines, run.SkippedLines, run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// UpdateRun updates an existing run
func (r *RunRepository) UpdateRun(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE simulation_runs
		SET status = $1, days_processed = $2, purchases = $3, sales = $4,
		    lines = $5, skipped_lines = $6, completed_at = $7, error_message = $8
		WHERE id = $9
	`

	_, err := r.db.ExecContext(
		ctx, query,
		string(run.Status), run.DaysProcessed, run.Purchases, run.Sales,
		run.Lines, run.SkippedLines, run.CompletedAt, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", run.ID, err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, id int64) (*domain.Run, error) {
	query := `
		SELECT id, kind, status, seed, days_processed, purchases, sales,
		       lines, skipped_lines, started_at, completed_at, error_message
		FROM simulation_runs
		WHERE id = $1
	`

	run := &domain.Run{}
	err := sqlx.GetContext(ctx, r.db, run, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}

	return run, nil
}

// LatestRun retrieves the most recently started run
func (r *RunRepository) LatestRun(ctx context.Context) (*domain.Run, error) {
	query := `
		SELECT id, kind, status, seed, days_processed, purchases, sales,
		       lines, skipped_lines, started_at, completed_at, error_message
		FROM simulation_runs
		ORDER BY id DESC
		LIMIT 1
	`

	run := &domain.Run{}
	err := sqlx.GetContext(ctx, r.db, run, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return run, nil
}
