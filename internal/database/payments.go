package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tutorslot/internal/models"
)

const paymentColumns = `order_id, booking_id, payment_id, amount, currency, receipt, status, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.PaymentIntent, error) {
	var p models.PaymentIntent
	err := row.Scan(&p.OrderID, &p.BookingID, &p.PaymentID, &p.Amount, &p.Currency, &p.Receipt, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment records a freshly created gateway order for a booking.
func (db *DB) CreatePayment(ctx context.Context, p *models.PaymentIntent) error {
	ts := utcNow()
	if p.Currency == "" {
		p.Currency = models.DefaultCurrency
	}
	_, err := db.ExecContext(ctx, `
        INSERT INTO payments (order_id, booking_id, payment_id, amount, currency, receipt, status, created_at, updated_at)
        VALUES (?, ?, '', ?, ?, ?, ?, ?, ?)`,
		p.OrderID, p.BookingID, p.Amount, p.Currency, p.Receipt, models.PaymentCreated, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", mapConstraintError(err, models.ErrValidation))
	}

	p.Status = models.PaymentCreated
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

func (db *DB) GetPayment(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	return getPayment(ctx, db, orderID)
}

func getPayment(ctx context.Context, q queryer, orderID string) (*models.PaymentIntent, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = ?`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentsByBooking lists every intent raised for a booking, newest first.
func (db *DB) GetPaymentsByBooking(ctx context.Context, bookingID int64) ([]models.PaymentIntent, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT `+paymentColumns+`
        FROM payments
        WHERE booking_id = ?
        ORDER BY created_at DESC, rowid DESC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	payments := []models.PaymentIntent{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// ConfirmBookingPayment marks the intent paid and confirms its booking in one transaction.
// If the intent is already paid nothing changes and alreadyPaid is true.
func (db *DB) ConfirmBookingPayment(ctx context.Context, orderID, paymentID string) (booking *models.Booking, alreadyPaid bool, err error) {
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPayment(ctx, tx, orderID)
		if err != nil {
			return err
		}

		switch p.Status {
		case models.PaymentPaid:
			alreadyPaid = true
			booking, err = getBooking(ctx, tx, p.BookingID)
			return err
		case models.PaymentFailed:
			return fmt.Errorf("order %s is %s: %w", orderID, p.Status, models.ErrInvalidTransition)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, payment_id = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
			models.PaymentPaid, paymentID, utcNow(), orderID, models.PaymentCreated); err != nil {
			return fmt.Errorf("failed to mark payment paid: %w", err)
		}

		booking, err = transitionBooking(ctx, tx, p.BookingID, models.StatusConfirmed)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return booking, alreadyPaid, nil
}

// FailPayment marks the intent failed, cancels a still pending booking and releases its slot.
// Paid intents are immutable.
func (db *DB) FailPayment(ctx context.Context, orderID string) (*models.Booking, error) {
	var booking *models.Booking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPayment(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if p.Status == models.PaymentPaid {
			return fmt.Errorf("order %s is paid: %w", orderID, models.ErrInvalidTransition)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, updated_at = ? WHERE order_id = ?`,
			models.PaymentFailed, utcNow(), orderID); err != nil {
			return fmt.Errorf("failed to mark payment failed: %w", err)
		}

		current, err := getBooking(ctx, tx, p.BookingID)
		if err != nil {
			return err
		}
		if current.Status != models.StatusPending {
			booking = current
			return nil
		}

		booking, err = transitionBooking(ctx, tx, p.BookingID, models.StatusCanceled)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}
