package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

var (
	// BookingsTotal считает исходы бронирования: created либо код отказа.
	BookingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Booking proposals by outcome",
		},
		[]string{"outcome"},
	)

	SessionsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_completed_total",
			Help: "Sessions auto-completed by the sweeper",
		},
	)

	SessionsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_cancelled_total",
			Help: "Sessions cancelled by users",
		},
	)

	SweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_sweep_runs_total",
			Help: "Completed sweeper passes",
		},
	)

	RatingRecomputes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rating_recomputes_total",
			Help: "Cached rating recomputations",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(BookingsTotal)
	prometheus.MustRegister(SessionsCompleted)
	prometheus.MustRegister(SessionsCancelled)
	prometheus.MustRegister(SweepRuns)
	prometheus.MustRegister(RatingRecomputes)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
