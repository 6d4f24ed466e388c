package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	kpiService "github.com/jwalitptl/booking-api/internal/service/kpi"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// Standalone stats exporter: recomputes the clinic KPIs on a schedule
// and serves them on /metrics, independent of the API process.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	userRepo := postgres.NewUserRepository(db)

	appMetrics := metrics.NewMetrics("booking")
	kpiSvc := kpiService.NewService(appointmentRepo, userRepo, cfg.KPI.RefreshInterval, appMetrics, appLogger)
	refresher := worker.NewStatsRefresher(kpiSvc, appMetrics, cfg.KPI.RefreshInterval, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go refresher.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port+1),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port+1).Msg("stats worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	_ = srv.Close()
	log.Info().Msg("stats worker exited")
}
