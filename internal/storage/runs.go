package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
)

// DefaultRunLimit caps ListRuns when no positive limit is given.
const DefaultRunLimit = 50

// SaveRun records a completed run. Saving the same ID twice replaces it.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	return s.saveRunTx(ctx, s.db, run)
}

func (s *SQLiteStorage) saveRunTx(ctx context.Context, q queryable, run *model.Run) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, file_name, description_column, ref_no_column, credit_column,
			row_count, matched_count, total_credit, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.FileName,
		run.Columns.Description,
		run.Columns.RefNo,
		run.Columns.Credit,
		run.Rows,
		run.Matched,
		run.Total,
		run.StartedAt.UTC(),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun returns a single run or common.ErrNotFound.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_name, description_column, ref_no_column, credit_column,
		       row_count, matched_count, total_credit, started_at, duration_ms
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, description_column, ref_no_column, credit_column,
		       row_count, matched_count, total_credit, started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var (
		run        model.Run
		durationMS int64
	)
	err := row.Scan(
		&run.ID,
		&run.FileName,
		&run.Columns.Description,
		&run.Columns.RefNo,
		&run.Columns.Credit,
		&run.Rows,
		&run.Matched,
		&run.Total,
		&run.StartedAt,
		&durationMS,
	)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}
