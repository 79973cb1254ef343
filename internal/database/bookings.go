package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tutorslot/internal/models"
)

const bookingSelect = `
        SELECT b.id, b.slot_id, b.student_id, s.teacher_id, b.status, b.paid, b.version, b.created_at, b.updated_at
        FROM bookings b
        JOIN slots s ON s.id = b.slot_id`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.StudentID, &b.TeacherID, &b.Status, &b.Paid, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts a pending booking for a slot that the caller has already claimed.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return insertBooking(ctx, db, booking)
}

func insertBooking(ctx context.Context, q queryer, booking *models.Booking) error {
	ts := utcNow()
	result, err := q.ExecContext(ctx, `
        INSERT INTO bookings (slot_id, student_id, status, paid, version, created_at, updated_at)
        VALUES (?, ?, ?, 0, 1, ?, ?)`,
		booking.SlotID, booking.StudentID, models.StatusPending, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", mapConstraintError(err, models.ErrAlreadyReserved))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	booking.ID = id
	booking.Status = models.StatusPending
	booking.Paid = false
	booking.Version = 1
	booking.CreatedAt = ts
	booking.UpdatedAt = ts
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db, id)
}

func getBooking(ctx context.Context, q queryer, id int64) (*models.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// SetBookingStatus applies a legal status transition. Moving to canceled releases the slot
// in the same transaction.
func (db *DB) SetBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	var updated *models.Booking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		b, err := transitionBooking(ctx, tx, id, status)
		if err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func transitionBooking(ctx context.Context, tx *sql.Tx, id int64, status string) (*models.Booking, error) {
	current, err := getBooking(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, status) {
		return nil, fmt.Errorf("booking %d %s -> %s: %w", id, current.Status, status, models.ErrInvalidTransition)
	}

	if err := updateBookingStatusWithVersion(ctx, tx, id, current.Version, status); err != nil {
		return nil, err
	}

	if status == models.StatusCanceled {
		if err := releaseSlot(ctx, tx, current.SlotID); err != nil {
			return nil, err
		}
	}

	return getBooking(ctx, tx, id)
}

func updateBookingStatusWithVersion(ctx context.Context, q queryer, id, version int64, status string) error {
	paidClause := ""
	if status == models.StatusConfirmed {
		paidClause = ", paid = 1"
	}

	result, err := q.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = version + 1, updated_at = ?`+paidClause+` WHERE id = ? AND version = ?`,
		status, utcNow(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking %d: %w", id, models.ErrConcurrentModification)
	}
	return nil
}

// GetStudentBookings lists a student's bookings whose slot is dated fromDate or later,
// with slot times and teacher name filled in.
func (db *DB) GetStudentBookings(ctx context.Context, studentID, fromDate string) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT b.id, b.slot_id, b.student_id, s.teacher_id, b.status, b.paid, b.version, b.created_at, b.updated_at,
               s.date, s.start_time, s.end_time, s.reserved, COALESCE(p.name, '')
        FROM bookings b
        JOIN slots s ON s.id = b.slot_id
        LEFT JOIN parties p ON p.id = s.teacher_id
        WHERE b.student_id = ? AND s.date >= ?
        ORDER BY s.date, s.start_time, b.id`, studentID, fromDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get student bookings: %w", err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		var b models.Booking
		var s models.Slot
		if err := rows.Scan(
			&b.ID, &b.SlotID, &b.StudentID, &b.TeacherID, &b.Status, &b.Paid, &b.Version, &b.CreatedAt, &b.UpdatedAt,
			&s.Date, &s.StartTime, &s.EndTime, &s.Reserved, &b.TeacherName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		s.ID = b.SlotID
		s.TeacherID = b.TeacherID
		b.Slot = &s
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ListStalePendingBookings returns pending bookings created before the cutoff.
func (db *DB) ListStalePendingBookings(ctx context.Context, before time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, bookingSelect+`
        WHERE b.status = ? AND b.created_at < ?
        ORDER BY b.created_at`, models.StatusPending, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list stale bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}
