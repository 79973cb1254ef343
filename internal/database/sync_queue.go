package database

import (
	"context"
	"fmt"
	"time"

	"tutorslot/internal/models"
)

const syncTaskColumns = `id, task_type, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	ts := utcNow()
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	result, err := db.ExecContext(ctx, `
        INSERT INTO sync_queue (task_type, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.RetryCount, task.LastError, ts, asUTC(task.NextRetryAt))
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = ts
	return nil
}

// GetPendingSyncTasks returns due tasks, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx, `
        SELECT `+syncTaskColumns+`
        FROM sync_queue
        WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY created_at ASC LIMIT ?`,
		models.SyncStatusPending, models.SyncStatusRetry, utcNow(), limit)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx, `
        SELECT `+syncTaskColumns+`
        FROM sync_queue WHERE status = ? ORDER BY created_at DESC`, models.SyncStatusFailed)
}

func (db *DB) querySyncTasks(ctx context.Context, query string, args ...any) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateSyncTaskStatus moves a task along pending -> retry* -> completed|failed.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	nextRetryAt = asUTC(nextRetryAt)

	var err error
	switch status {
	case models.SyncStatusRetry:
		_, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`,
			status, lastError, nextRetryAt, id)
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		_, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = NULL, processed_at = ? WHERE id = ?`,
			status, lastError, utcNow(), id)
	default:
		_, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`,
			status, lastError, nextRetryAt, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

// timestamps are compared as text, so everything is stored in UTC
func asUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
