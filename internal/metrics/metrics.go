package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BookingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_bookings_total",
		Help: "Appointments booked successfully.",
	})

	BookingConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinic_booking_conflicts_total",
		Help: "Booking attempts rejected because the slot was taken or contended.",
	})

	AuthDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_auth_denied_total",
		Help: "Requests denied by the role gate.",
	}, []string{"reason"})
)

// Handler exposes the Prometheus text endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
