package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tutorslot/internal/export"
	"tutorslot/internal/models"
	"tutorslot/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func (s *HTTPServer) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSlotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	slot, err := s.svc.CreateSlot(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *HTTPServer) handleTeacherSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.svc.TeacherSlots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *HTTPServer) handleTeacherSchedule(w http.ResponseWriter, r *http.Request) {
	teacher, err := s.svc.GetParty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !teacher.IsTeacher() {
		writeError(w, http.StatusNotFound, "teacher not found")
		return
	}

	slots, err := s.svc.TeacherSlots(r.Context(), teacher.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// render fully before writing so a failure can still become a JSON error
	fromDate := s.svc.Today()
	var buf bytes.Buffer
	if err := export.WriteTeacherSchedule(&buf, teacher, fromDate, slots); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="schedule_%s_%s.xlsx"`, teacher.ID, fromDate))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req service.ReserveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := s.svc.Reserve(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	booking, err := s.svc.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	payments, err := s.svc.PaymentsForBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if payments == nil {
		payments = []models.PaymentIntent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (s *HTTPServer) handleStudentBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.StudentBookings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := s.svc.CreateOrder(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := s.svc.ConfirmPayment(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": models.MsgPaymentSuccessful, "booking": booking})
}

func (s *HTTPServer) handleFailPayment(w http.ResponseWriter, r *http.Request) {
	var req service.FailPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := s.svc.FailPayment(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpsertParty(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Details string `json:"details"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	party, err := s.svc.UpsertParty(r.Context(), service.UpsertPartyRequest{
		ID:      chi.URLParam(r, "id"),
		Kind:    chi.URLParam(r, "kind"),
		Name:    body.Name,
		Details: body.Details,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, party)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	code := statusFromError(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeError(w, code, errorMessage(err))
}

// statusFromError maps service sentinels to HTTP status codes.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrSignatureInvalid):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyBooked),
		errors.Is(err, models.ErrAlreadyReserved),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, models.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the client-facing text for err; internals are not leaked.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrAlreadyBooked), errors.Is(err, models.ErrAlreadyReserved):
		return models.MsgSlotAlreadyBooked
	case errors.Is(err, models.ErrSignatureInvalid):
		return models.MsgInvalidSignature
	case errors.Is(err, models.ErrGatewayUnavailable):
		return "Payment gateway unavailable"
	case statusFromError(err) == http.StatusInternalServerError:
		return "Internal error"
	default:
		return err.Error()
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, models.MsgInvalidJSON)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
