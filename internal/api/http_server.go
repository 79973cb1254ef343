package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"tutorslot/internal/config"
	"tutorslot/internal/domain"
	"tutorslot/internal/events"
	"tutorslot/internal/logging"
	"tutorslot/internal/metrics"
	"tutorslot/internal/models"
	"tutorslot/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reservations is the slice of the reservation service the transports drive.
type Reservations interface {
	CreateSlot(ctx context.Context, req service.CreateSlotRequest) (*models.Slot, error)
	Reserve(ctx context.Context, req service.ReserveRequest) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID int64) (*models.Booking, error)
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResponse, error)
	ConfirmPayment(ctx context.Context, req service.VerifyPaymentRequest) (*models.Booking, error)
	FailPayment(ctx context.Context, req service.FailPaymentRequest) (*models.Booking, error)
	TeacherSlots(ctx context.Context, teacherID string) ([]models.Slot, error)
	StudentBookings(ctx context.Context, studentID string) ([]models.Booking, error)
	PaymentsForBooking(ctx context.Context, bookingID int64) ([]models.PaymentIntent, error)
	UpsertParty(ctx context.Context, req service.UpsertPartyRequest) (*models.Party, error)
	GetParty(ctx context.Context, id string) (*models.Party, error)
	Today() string
}

// HTTPServer serves the REST API and the per-party websocket channel.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Reservations
	hub     *events.Hub
	actions domain.RateLimiter
	auth    *HTTPAuth
	server  *http.Server
	logger  *zerolog.Logger
}

// NewHTTPServer wires routes. actions may be nil, which disables websocket action limits.
func NewHTTPServer(cfg config.APIConfig, svc Reservations, hub *events.Hub, actions domain.RateLimiter, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		hub:     hub,
		actions: actions,
		auth:    NewHTTPAuth(cfg),
		logger:  logging.Component(logger, "http"),
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(recoverMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws/{partyId}", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Wrap)

		r.Post("/slots", s.handleCreateSlot)
		r.Get("/teachers/{id}/slots", s.handleTeacherSlots)
		r.Get("/teachers/{id}/schedule.xlsx", s.handleTeacherSchedule)

		r.Post("/bookings", s.handleReserve)
		r.Post("/bookings/{id}/cancel", s.handleCancel)
		r.Get("/bookings/{id}/payments", s.handleBookingPayments)
		r.Get("/students/{id}/bookings", s.handleStudentBookings)

		r.Post("/payments/orders", s.handleCreateOrder)
		r.Post("/payments/verify", s.handleVerifyPayment)
		r.Post("/payments/fail", s.handleFailPayment)

		r.Put("/parties/{kind}/{id}", s.handleUpsertParty)
	})

	return r
}

// Handler exposes the routed handler, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func loggingMiddleware(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.IncHTTP(route, strconv.Itoa(recorder.status))

			logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

func recoverMiddleware(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error().
						Interface("panic", rec).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("panic recovered")
					writeError(w, http.StatusInternalServerError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket handshake take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
