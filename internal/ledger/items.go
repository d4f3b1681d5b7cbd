package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"shortforge/internal/services"
)

const itemColumns = "inference_id, status, stage, audio_path, video_path, final_path, language, error_kind, error_message, attempts, last_run_id, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item         Item
		statusStr    string
		videoPath    sql.NullString
		finalPath    sql.NullString
		language     sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		lastRunID    sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&item.InferenceID,
		&statusStr,
		&item.Stage,
		&item.AudioPath,
		&videoPath,
		&finalPath,
		&language,
		&errorKind,
		&errorMessage,
		&item.Attempts,
		&lastRunID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Status = Status(statusStr)
	item.VideoPath = videoPath.String
	item.FinalPath = finalPath.String
	item.Language = language.String
	item.ErrorKind = errorKind.String
	item.ErrorMessage = errorMessage.String
	item.LastRunID = lastRunID.String
	if ts, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = ts
	}
	if ts, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = ts
	}
	return &item, nil
}

// Begin records that an item is entering the pipeline, creating it on first
// sight and bumping its attempt count otherwise. Previous error details are cleared.
func (s *Store) Begin(ctx context.Context, attempt Attempt) error {
	id := strings.TrimSpace(attempt.InferenceID)
	if id == "" {
		return fmt.Errorf("begin item: %w: inference id is required", services.ErrValidation)
	}
	now := formatTime(time.Now())
	_, err := s.execWithRetry(ctx,
		`INSERT INTO items (inference_id, status, stage, audio_path, video_path, attempts, last_run_id, created_at, updated_at)
         VALUES (?, ?, '', ?, ?, 1, ?, ?, ?)
         ON CONFLICT(inference_id) DO UPDATE SET
             status = excluded.status,
             stage = '',
             audio_path = excluded.audio_path,
             video_path = excluded.video_path,
             error_kind = NULL,
             error_message = NULL,
             attempts = items.attempts + 1,
             last_run_id = excluded.last_run_id,
             updated_at = excluded.updated_at`,
		id,
		StatusRunning,
		attempt.AudioPath,
		nullableString(attempt.VideoPath),
		nullableString(attempt.RunID),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("begin item %s: %w", id, err)
	}
	return nil
}

// RecordStage stores the stage an item has just entered.
func (s *Store) RecordStage(ctx context.Context, inferenceID, stage string) error {
	return s.updateItem(ctx, inferenceID,
		`UPDATE items SET stage = ?, updated_at = ? WHERE inference_id = ?`,
		stage, formatTime(time.Now()), inferenceID,
	)
}

// Complete marks an item done with its final artifact and detected language.
func (s *Store) Complete(ctx context.Context, inferenceID, finalPath, language string) error {
	return s.updateItem(ctx, inferenceID,
		`UPDATE items SET status = ?, stage = 'DONE', final_path = ?, language = ?, error_kind = NULL, error_message = NULL, updated_at = ? WHERE inference_id = ?`,
		StatusDone, nullableString(finalPath), nullableString(language), formatTime(time.Now()), inferenceID,
	)
}

// Fail marks an item failed at stage with a classified error.
func (s *Store) Fail(ctx context.Context, inferenceID, stage, kind, message string) error {
	return s.updateItem(ctx, inferenceID,
		`UPDATE items SET status = ?, stage = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE inference_id = ?`,
		StatusFailed, stage, nullableString(kind), nullableString(message), formatTime(time.Now()), inferenceID,
	)
}

func (s *Store) updateItem(ctx context.Context, inferenceID, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update item %s: %w", inferenceID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update item %s: %w", inferenceID, services.ErrNotFound)
	}
	return nil
}

// Get returns the record for inferenceID, or an error wrapping services.ErrNotFound.
func (s *Store) Get(ctx context.Context, inferenceID string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE inference_id = ?`, inferenceID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", inferenceID, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", inferenceID, err)
	}
	return item, nil
}

// List returns items ordered by inference id, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if len(statuses) > 0 {
		statuses = lo.Uniq(statuses)
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = lo.Map(statuses, func(status Status, _ int) any { return string(status) })
	}
	query += ` ORDER BY inference_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Counts returns the number of items per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

// ResetInterrupted marks items left running by a previous process as failed.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE items SET status = ?, error_kind = 'interrupted', error_message = ?, updated_at = ? WHERE status = ?`,
		StatusFailed, InterruptedReason, formatTime(time.Now()), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted items: %w", err)
	}
	return res.RowsAffected()
}
