package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shortforge/internal/services"
)

// StartRun records a new batch run.
func (s *Store) StartRun(ctx context.Context, id string, seed int64, total int) error {
	if id == "" {
		return fmt.Errorf("start run: %w: run id is required", services.ErrValidation)
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, seed, total, started_at) VALUES (?, ?, ?, ?)`,
		id, seed, total, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("start run %s: %w", id, err)
	}
	return nil
}

// FinishRun stores the final tallies for a run.
func (s *Store) FinishRun(ctx context.Context, id string, succeeded, failed int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET succeeded = ?, failed = ?, finished_at = ? WHERE id = ?`,
		succeeded, failed, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("finish run %s: %w", id, services.ErrNotFound)
	}
	return nil
}

// LatestRun returns the most recently started run, or nil when none exist.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seed, total, succeeded, failed, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT 1`)

	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
	)
	err := row.Scan(&run.ID, &run.Seed, &run.Total, &run.Succeeded, &run.Failed, &startedRaw, &finishedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if ts, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = ts
	}
	if finishedRaw.Valid {
		if ts, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	return &run, nil
}
