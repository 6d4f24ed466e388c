package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking related metrics
	BookingsCreated   prometheus.Counter
	BookingConflicts  prometheus.Counter
	BookingFailures   *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	CheckIns          *prometheus.CounterVec

	// KPI snapshot gauges, refreshed by the stats worker
	AttendanceRate    prometheus.Gauge
	CancellationRate  prometheus.Gauge
	NoShowRate        prometheus.Gauge
	AvgPerDay         prometheus.Gauge
	WeeklyActive      prometheus.Gauge
	KPIRefreshLatency prometheus.Histogram
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		BookingsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Total number of appointments booked",
		}),
		BookingConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Total number of bookings rejected because the slot was taken",
		}),
		BookingFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_failures_total",
			Help:      "Total number of failed bookings by error kind",
		}, []string{"kind"}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of appointment status transitions",
		}, []string{"to"}),
		CheckIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Total number of check-ins by method",
		}, []string{"method"}),

		AttendanceRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi_attendance_rate",
			Help:      "Share of non-cancelled appointments marked received, percent",
		}),
		CancellationRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi_cancellation_rate",
			Help:      "Share of all appointments cancelled, percent",
		}),
		NoShowRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi_no_show_rate",
			Help:      "Share of non-cancelled appointments marked no-show, percent",
		}),
		AvgPerDay: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi_avg_appointments_per_day",
			Help:      "Average appointments per distinct calendar day",
		}),
		WeeklyActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi_weekly_active_patients",
			Help:      "Distinct patients with an appointment in the trailing 7 days",
		}),
		KPIRefreshLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kpi_refresh_duration_seconds",
			Help:      "Time spent recomputing the KPI snapshot",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
}
