package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"tutorslot/internal/config"
	"tutorslot/internal/domain"
	"tutorslot/internal/events"
	"tutorslot/internal/gateway"
	"tutorslot/internal/logging"
	"tutorslot/internal/metrics"
	"tutorslot/internal/models"

	"github.com/rs/zerolog"
)

// ReservationService coordinates slot claims, bookings and payments and tells every
// affected party what changed.
type ReservationService struct {
	repo     domain.Repository
	events   domain.EventPublisher
	gateway  gateway.Gateway
	ledger   domain.LedgerSync
	currency string
	loc      *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewReservationService(
	repo domain.Repository,
	publisher domain.EventPublisher,
	gw gateway.Gateway,
	ledger domain.LedgerSync,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *ReservationService {
	currency := strings.ToUpper(cfg.Currency)
	if currency == "" {
		currency = models.DefaultCurrency
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		loc = time.UTC
	}
	return &ReservationService{
		repo:     repo,
		events:   publisher,
		gateway:  gw,
		ledger:   ledger,
		currency: currency,
		loc:      loc,
		now:      time.Now,
		logger:   logging.Component(logger, "reservations"),
	}
}

// CreateSlot publishes a new open slot for a teacher.
func (s *ReservationService) CreateSlot(ctx context.Context, req CreateSlotRequest) (*models.Slot, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	slot := &models.Slot{
		TeacherID: req.TeacherID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := slot.Validate(); err != nil {
		return nil, err
	}

	teacher, err := s.repo.GetParty(ctx, slot.TeacherID)
	if err != nil {
		return nil, err
	}
	if !teacher.IsTeacher() {
		return nil, fmt.Errorf("%w: party %s is not a teacher", models.ErrValidation, teacher.ID)
	}

	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("slot_id", slot.ID).Str("teacher_id", slot.TeacherID).Str("date", slot.Date).Msg("slot created")
	s.publish(slot.TeacherID, events.SlotUpdate(slot))
	return slot, nil
}

// Reserve claims the slot for a known student and opens a pending booking. A lost race is
// reported to the requester's channel and returned as ErrAlreadyBooked.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*models.Booking, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	student, err := s.repo.GetParty(ctx, req.StudentID)
	if err != nil {
		metrics.IncReservation("error")
		return nil, err
	}
	if !student.IsStudent() {
		metrics.IncReservation("error")
		return nil, fmt.Errorf("%w: party %s is not a student", models.ErrValidation, student.ID)
	}

	slot, booking, err := s.repo.ReserveSlot(ctx, req.SlotID, student.ID)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyReserved) {
			return nil, s.rejectConflict(req)
		}
		metrics.IncReservation("error")
		return nil, err
	}
	metrics.IncReservation("success")

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("slot_id", slot.ID).
		Str("student_id", booking.StudentID).
		Str("teacher_id", booking.TeacherID).
		Msg("slot reserved")

	for _, party := range []string{booking.TeacherID, booking.StudentID} {
		s.publish(party, events.SlotUpdate(slot))
		s.publish(party, events.BookingUpdate(booking))
	}
	s.syncLedger(ctx, booking)
	return booking, nil
}

func (s *ReservationService) rejectConflict(req ReserveRequest) error {
	metrics.IncReservation("conflict")
	s.logger.Debug().Int64("slot_id", req.SlotID).Str("student_id", req.StudentID).Msg("slot already reserved")
	s.publish(req.StudentID, events.Error(models.MsgSlotAlreadyBooked))
	return fmt.Errorf("slot %d: %w", req.SlotID, models.ErrAlreadyBooked)
}

// Cancel cancels a pending or confirmed booking and frees its slot.
func (s *ReservationService) Cancel(ctx context.Context, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.SetBookingStatus(ctx, bookingID, models.StatusCanceled)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", booking.ID).Int64("slot_id", booking.SlotID).Msg("booking canceled")
	s.announceRelease(ctx, booking)
	return booking, nil
}

// CreateOrder registers a gateway order for a pending booking. The fee arrives in major
// units and is sent to the gateway in minor units.
func (s *ReservationService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	booking, err := s.repo.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPending {
		return nil, fmt.Errorf("booking %d is %s: %w", booking.ID, booking.Status, models.ErrInvalidTransition)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.currency
	}
	amount := int64(math.Round(req.Amount * models.MinorUnitsPerMajor))
	receipt := fmt.Sprintf("booking_%d", booking.ID)

	order, err := s.gateway.CreateOrder(ctx, amount, currency, receipt)
	if err != nil {
		metrics.IncPayment("gateway_error")
		return nil, err
	}

	intent := &models.PaymentIntent{
		OrderID:   order.ID,
		BookingID: booking.ID,
		Amount:    amount,
		Currency:  currency,
		Receipt:   receipt,
	}
	if err := s.repo.CreatePayment(ctx, intent); err != nil {
		return nil, err
	}
	metrics.IncPayment("order_created")

	s.logger.Info().
		Str("order_id", intent.OrderID).
		Int64("booking_id", booking.ID).
		Int64("amount", amount).
		Str("currency", currency).
		Msg("payment order created")

	return &OrderResponse{
		OrderID:          intent.OrderID,
		Amount:           intent.Amount,
		Currency:         intent.Currency,
		GatewayPublicKey: s.gateway.PublicKey(),
	}, nil
}

// ConfirmPayment verifies the checkout signature and confirms the booking. Repeating a
// confirmation for an already paid order changes nothing.
func (s *ReservationService) ConfirmPayment(ctx context.Context, req VerifyPaymentRequest) (*models.Booking, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ok, err := s.gateway.VerifySignature(ctx, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		metrics.IncPayment("gateway_error")
		if !errors.Is(err, models.ErrGatewayUnavailable) {
			err = fmt.Errorf("verify signature: %v: %w", err, models.ErrGatewayUnavailable)
		}
		return nil, err
	}
	if !ok {
		metrics.IncPayment("invalid_signature")
		s.logger.Warn().Str("order_id", req.OrderID).Str("payment_id", req.PaymentID).Msg("payment signature rejected")
		return nil, fmt.Errorf("order %s: %w", req.OrderID, models.ErrSignatureInvalid)
	}

	booking, alreadyPaid, err := s.repo.ConfirmBookingPayment(ctx, req.OrderID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if alreadyPaid {
		metrics.IncPayment("duplicate")
		s.logger.Debug().Str("order_id", req.OrderID).Msg("payment already confirmed")
		return booking, nil
	}
	metrics.IncPayment("confirmed")

	s.logger.Info().Str("order_id", req.OrderID).Int64("booking_id", booking.ID).Msg("payment confirmed")
	for _, party := range []string{booking.TeacherID, booking.StudentID} {
		s.publish(party, events.BookingUpdate(booking))
	}
	s.syncLedger(ctx, booking)
	return booking, nil
}

// FailPayment records a declined payment. A still pending booking is canceled and its
// slot released.
func (s *ReservationService) FailPayment(ctx context.Context, req FailPaymentRequest) (*models.Booking, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	booking, err := s.repo.FailPayment(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	metrics.IncPayment("failed")

	s.logger.Info().Str("order_id", req.OrderID).Int64("booking_id", booking.ID).Str("status", booking.Status).Msg("payment failed")
	if booking.Status == models.StatusCanceled {
		s.announceRelease(ctx, booking)
	}
	return booking, nil
}

// ExpirePending cancels bookings that stayed pending longer than olderThan and returns
// how many were canceled.
func (s *ReservationService) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.repo.ListStalePendingBookings(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		booking, err := s.repo.SetBookingStatus(ctx, stale[i].ID, models.StatusCanceled)
		if err != nil {
			// confirmed or canceled since it was listed
			if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrConcurrentModification) {
				continue
			}
			return expired, err
		}
		expired++

		s.logger.Info().Int64("booking_id", booking.ID).Int64("slot_id", booking.SlotID).Msg("pending booking expired")
		s.announceRelease(ctx, booking)
	}

	if expired > 0 {
		metrics.AddExpired(expired)
	}
	return expired, nil
}

// TeacherSlots lists a teacher's slots from today on.
func (s *ReservationService) TeacherSlots(ctx context.Context, teacherID string) ([]models.Slot, error) {
	return s.repo.GetTeacherSlots(ctx, teacherID, s.Today())
}

// StudentBookings lists a student's bookings from today on.
func (s *ReservationService) StudentBookings(ctx context.Context, studentID string) ([]models.Booking, error) {
	return s.repo.GetStudentBookings(ctx, studentID, s.Today())
}

func (s *ReservationService) PaymentsForBooking(ctx context.Context, bookingID int64) ([]models.PaymentIntent, error) {
	if _, err := s.repo.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.repo.GetPaymentsByBooking(ctx, bookingID)
}

func (s *ReservationService) UpsertParty(ctx context.Context, req UpsertPartyRequest) (*models.Party, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	party := &models.Party{ID: req.ID, Kind: req.Kind, Name: req.Name, Details: req.Details}
	if err := s.repo.UpsertParty(ctx, party); err != nil {
		return nil, err
	}
	return party, nil
}

func (s *ReservationService) GetParty(ctx context.Context, id string) (*models.Party, error) {
	return s.repo.GetParty(ctx, id)
}

// GetSlot returns a slot by id.
func (s *ReservationService) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	return s.repo.GetSlot(ctx, id)
}

// Today is the current calendar date in the configured zone; listings start from it.
func (s *ReservationService) Today() string {
	return s.now().In(s.loc).Format(models.DateLayout)
}

// announceRelease tells both parties about a canceled booking and the teacher about the freed slot.
func (s *ReservationService) announceRelease(ctx context.Context, booking *models.Booking) {
	for _, party := range []string{booking.TeacherID, booking.StudentID} {
		s.publish(party, events.BookingUpdate(booking))
	}

	slot, err := s.repo.GetSlot(ctx, booking.SlotID)
	if err != nil {
		s.logger.Error().Err(err).Int64("slot_id", booking.SlotID).Msg("load released slot")
	} else {
		s.publish(booking.TeacherID, events.SlotUpdate(slot))
	}

	s.syncLedger(ctx, booking)
}

func (s *ReservationService) publish(partyID string, event events.Event) {
	if s.events == nil || partyID == "" {
		return
	}
	s.events.Publish(partyID, event)
}

func (s *ReservationService) syncLedger(ctx context.Context, booking *models.Booking) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.EnqueueBooking(ctx, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("ledger enqueue error")
	}
}
