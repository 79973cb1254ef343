package domain

import (
	"context"
	"time"

	"tutorslot/internal/events"
	"tutorslot/internal/models"
)

type Repository interface {
	CreateSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
	ReserveSlot(ctx context.Context, slotID int64, studentID string) (*models.Slot, *models.Booking, error)
	GetTeacherSlots(ctx context.Context, teacherID, fromDate string) ([]models.Slot, error)

	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	SetBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error)
	GetStudentBookings(ctx context.Context, studentID, fromDate string) ([]models.Booking, error)
	ListStalePendingBookings(ctx context.Context, before time.Time) ([]models.Booking, error)

	CreatePayment(ctx context.Context, p *models.PaymentIntent) error
	GetPayment(ctx context.Context, orderID string) (*models.PaymentIntent, error)
	GetPaymentsByBooking(ctx context.Context, bookingID int64) ([]models.PaymentIntent, error)
	ConfirmBookingPayment(ctx context.Context, orderID, paymentID string) (*models.Booking, bool, error)
	FailPayment(ctx context.Context, orderID string) (*models.Booking, error)

	UpsertParty(ctx context.Context, p *models.Party) error
	GetParty(ctx context.Context, id string) (*models.Party, error)
}

// EventPublisher delivers an event to every receiver of a party. It must not block.
type EventPublisher interface {
	Publish(partyID string, event events.Event)
}

// LedgerSync mirrors booking snapshots into the external bookings ledger.
type LedgerSync interface {
	EnqueueBooking(ctx context.Context, booking *models.Booking) error
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
