package kpi

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/dateutil"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

const (
	snapshotKey = "kpi_snapshot"

	// seriesWindowDays is how far back the daily series looks;
	// seriesPoints is how many trailing points it keeps.
	seriesWindowDays = 30
	seriesPoints     = 14

	// weeklyWindowDays is the trailing window for active patients,
	// today inclusive.
	weeklyWindowDays = 7
)

// Service derives dashboard KPIs from the full appointment history. A
// snapshot is never persisted; it is recomputed on demand and cached
// briefly so a busy dashboard does not rescan the table per request.
type Service struct {
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	cache        *gocache.Cache
	metrics      *metrics.Metrics
	log          *logger.Logger

	now func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	users repository.UserRepository,
	ttl time.Duration,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		users:        users,
		cache:        gocache.New(ttl, 2*ttl),
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// Snapshot returns the current KPI snapshot, served from cache within
// the refresh interval.
func (s *Service) Snapshot(ctx context.Context) (*model.KPISnapshot, error) {
	if cached, ok := s.cache.Get(snapshotKey); ok {
		return cached.(*model.KPISnapshot), nil
	}
	snapshot, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(snapshotKey, snapshot)
	return snapshot, nil
}

// Invalidate drops the cached snapshot. Called after every booking or
// status change so the dashboard reflects mutations immediately.
func (s *Service) Invalidate() {
	s.cache.Delete(snapshotKey)
}

// Compute recalculates every KPI from scratch over the full history.
func (s *Service) Compute(ctx context.Context) (*model.KPISnapshot, error) {
	start := time.Now()

	appts, err := s.appointments.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment history: %w", err)
	}
	patients, err := s.users.CountPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}

	snapshot := &model.KPISnapshot{
		TotalAppointments:  len(appts),
		TotalPatients:      patients,
		DailySeries:        []model.DailyCount{},
		StatusDistribution: []model.StatusCount{},
		ComputedAt:         s.now(),
	}

	byStatus := map[model.AppointmentStatus]int{}
	for _, a := range appts {
		byStatus[a.Status]++
	}
	total := len(appts)
	cancelled := byStatus[model.AppointmentStatusCancelled]
	held := total - cancelled

	snapshot.AttendanceRate = rate(byStatus[model.AppointmentStatusReceived], held)
	snapshot.NoShowRate = rate(byStatus[model.AppointmentStatusNoShow], held)
	snapshot.CancellationRate = rate(cancelled, total)

	distinctDates := map[string]struct{}{}
	for _, a := range appts {
		distinctDates[a.Date] = struct{}{}
	}
	if len(distinctDates) > 0 {
		snapshot.AvgAppointmentsPerDay = round1(float64(total) / float64(len(distinctDates)))
	}

	snapshot.WeeklyActivePatients = s.weeklyActive(appts)
	snapshot.DailySeries = s.dailySeries(appts)

	// Fixed status order so the dashboard legend never jumps around.
	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusPending,
		model.AppointmentStatusReceived,
		model.AppointmentStatusNoShow,
		model.AppointmentStatusCancelled,
	} {
		snapshot.StatusDistribution = append(snapshot.StatusDistribution, model.StatusCount{
			Status: status,
			Count:  byStatus[status],
		})
	}

	s.metrics.KPIRefreshLatency.Observe(time.Since(start).Seconds())
	return snapshot, nil
}

// weeklyActive counts distinct patients with an appointment dated
// within the trailing 7 days, the day exactly 7 days back included.
// The comparison runs on local midnights so a date is in or out as a
// whole day.
func (s *Service) weeklyActive(appts []model.Appointment) int {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	windowStart := today.AddDate(0, 0, -weeklyWindowDays)

	active := map[string]struct{}{}
	for _, a := range appts {
		d, err := dateutil.ParseLocalDate(a.Date)
		if err != nil {
			continue
		}
		if d.Before(windowStart) || d.After(today) {
			continue
		}
		active[a.UserID.String()] = struct{}{}
	}
	return len(active)
}

// dailySeries buckets the trailing 30 days per date, the day exactly
// 30 days back included, and keeps the last 14 points ascending by
// date.
func (s *Service) dailySeries(appts []model.Appointment) []model.DailyCount {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	windowStart := today.AddDate(0, 0, -seriesWindowDays)

	buckets := map[string]int{}
	for _, a := range appts {
		d, err := dateutil.ParseLocalDate(a.Date)
		if err != nil {
			continue
		}
		if d.Before(windowStart) || d.After(today) {
			continue
		}
		buckets[a.Date]++
	}

	series := make([]model.DailyCount, 0, len(buckets))
	for date, count := range buckets {
		series = append(series, model.DailyCount{Date: date, Count: count})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })

	if len(series) > seriesPoints {
		series = series[len(series)-seriesPoints:]
	}
	return series
}

// rate is a percentage rounded to one decimal; a zero denominator yields
// zero rather than NaN.
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round1(float64(part) / float64(whole) * 100)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
