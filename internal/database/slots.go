package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tutorslot/internal/models"
)

const slotColumns = `id, teacher_id, date, start_time, end_time, reserved, version, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*models.Slot, error) {
	var s models.Slot
	err := row.Scan(&s.ID, &s.TeacherID, &s.Date, &s.StartTime, &s.EndTime, &s.Reserved, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSlot stores a new unreserved slot. The teacher must exist.
func (db *DB) CreateSlot(ctx context.Context, slot *models.Slot) error {
	ts := utcNow()
	result, err := db.ExecContext(ctx, `
        INSERT INTO slots (teacher_id, date, start_time, end_time, reserved, version, created_at, updated_at)
        VALUES (?, ?, ?, ?, 0, 1, ?, ?)`,
		slot.TeacherID, slot.Date, slot.StartTime, slot.EndTime, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", mapConstraintError(err, models.ErrValidation))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	slot.ID = id
	slot.Reserved = false
	slot.Version = 1
	slot.CreatedAt = ts
	slot.UpdatedAt = ts
	return nil
}

func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	return getSlot(ctx, db, id)
}

func getSlot(ctx context.Context, q queryer, id int64) (*models.Slot, error) {
	slot, err := scanSlot(q.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("slot %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// ClaimSlot atomically flips reserved from false to true.
// A slot that is already reserved yields ErrAlreadyReserved, a missing one ErrNotFound.
func (db *DB) ClaimSlot(ctx context.Context, id int64) (*models.Slot, error) {
	var claimed *models.Slot
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		slot, err := claimSlot(ctx, tx, id)
		if err != nil {
			return err
		}
		claimed = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReserveSlot claims the slot and opens a pending booking for the student in one
// transaction, so a slot is never left reserved without its booking.
func (db *DB) ReserveSlot(ctx context.Context, slotID int64, studentID string) (*models.Slot, *models.Booking, error) {
	var (
		claimed *models.Slot
		booking *models.Booking
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		slot, err := claimSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}

		b := &models.Booking{SlotID: slot.ID, StudentID: studentID}
		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
		b.TeacherID = slot.TeacherID

		claimed, booking = slot, b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return claimed, booking, nil
}

func claimSlot(ctx context.Context, tx *sql.Tx, id int64) (*models.Slot, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE slots SET reserved = 1, version = version + 1, updated_at = ? WHERE id = ? AND reserved = 0`,
		utcNow(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slot, err := getSlot(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("slot %d: %w", id, models.ErrAlreadyReserved)
	}
	return slot, nil
}

// ReleaseSlot clears the reservation flag. Releasing an open slot is a no-op.
func (db *DB) ReleaseSlot(ctx context.Context, id int64) error {
	return releaseSlot(ctx, db, id)
}

func releaseSlot(ctx context.Context, q queryer, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE slots SET reserved = 0, version = version + 1, updated_at = ? WHERE id = ? AND reserved = 1`,
		utcNow(), id)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

// GetTeacherSlots lists a teacher's slots dated fromDate (YYYY-MM-DD) or later.
func (db *DB) GetTeacherSlots(ctx context.Context, teacherID, fromDate string) ([]models.Slot, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+slotColumns+`
        FROM slots
        WHERE teacher_id = ? AND date >= ?
        ORDER BY date, start_time, id`, teacherID, fromDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher slots: %w", err)
	}
	defer rows.Close()

	slots := []models.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}
