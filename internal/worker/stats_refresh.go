package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/booking-api/internal/service/kpi"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// StatsRefresher periodically recomputes the KPI snapshot and mirrors it
// into the Prometheus gauges, so scrapes see fresh values even when no
// one has the dashboard open.
type StatsRefresher struct {
	kpis     *kpi.Service
	metrics  *metrics.Metrics
	interval time.Duration
	log      *logger.Logger
}

func NewStatsRefresher(kpis *kpi.Service, m *metrics.Metrics, interval time.Duration, log *logger.Logger) *StatsRefresher {
	return &StatsRefresher{kpis: kpis, metrics: m, interval: interval, log: log}
}

// Start blocks until ctx is cancelled, refreshing once per interval.
func (w *StatsRefresher) Start(ctx context.Context) {
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("stats refresher stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *StatsRefresher) refresh(ctx context.Context) {
	snapshot, err := w.kpis.Compute(ctx)
	if err != nil {
		w.log.Error(err, "kpi refresh failed")
		return
	}

	w.metrics.AttendanceRate.Set(snapshot.AttendanceRate)
	w.metrics.CancellationRate.Set(snapshot.CancellationRate)
	w.metrics.NoShowRate.Set(snapshot.NoShowRate)
	w.metrics.AvgPerDay.Set(snapshot.AvgAppointmentsPerDay)
	w.metrics.WeeklyActive.Set(float64(snapshot.WeeklyActivePatients))
}
