package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tutorslot"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Slot reservation attempts by outcome.",
		},
		[]string{"result"},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment operations by outcome.",
		},
		[]string{"result"},
	)

	expiredBookings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_bookings_total",
			Help:      "Pending bookings canceled by the payment timeout sweeper.",
		},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to party channels by type.",
		},
		[]string{"type"},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full.",
		},
	)

	hubSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_subscribers",
			Help:      "Currently connected event subscribers.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservations,
			payments,
			expiredBookings,
			eventsPublished,
			eventsDropped,
			hubSubscribers,
		)
	})
}

func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

// IncReservation records a reservation outcome: success, conflict or error.
func IncReservation(result string) {
	reservations.WithLabelValues(result).Inc()
}

// IncPayment records a payment outcome such as order_created, confirmed, duplicate,
// invalid_signature or failed.
func IncPayment(result string) {
	payments.WithLabelValues(result).Inc()
}

func AddExpired(n int) {
	expiredBookings.Add(float64(n))
}

func IncEvent(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

func IncEventDropped() {
	eventsDropped.Inc()
}

func HubSubscribers(delta int) {
	hubSubscribers.Add(float64(delta))
}
