package model

import "time"

// DailyCount is one point of the appointments-per-day series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StatusCount is one bucket of the status distribution histogram.
type StatusCount struct {
	Status AppointmentStatus `json:"status"`
	Count  int               `json:"count"`
}

// KPISnapshot is the derived aggregate over the full appointment history.
// It is never persisted; every snapshot is recomputed from scratch.
type KPISnapshot struct {
	AttendanceRate        float64       `json:"attendance_rate"`
	CancellationRate      float64       `json:"cancellation_rate"`
	NoShowRate            float64       `json:"no_show_rate"`
	AvgAppointmentsPerDay float64       `json:"avg_appointments_per_day"`
	WeeklyActivePatients  int           `json:"weekly_active_patients"`
	TotalAppointments     int           `json:"total_appointments"`
	TotalPatients         int           `json:"total_patients"`
	DailySeries           []DailyCount  `json:"daily_series"`
	StatusDistribution    []StatusCount `json:"status_distribution"`
	ComputedAt            time.Time     `json:"computed_at"`
}
