package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/email"
	"github.com/jwalitptl/booking-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/booking-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/booking-api/internal/handler/auth"
	kpiHandler "github.com/jwalitptl/booking-api/internal/handler/kpi"
	patientHandler "github.com/jwalitptl/booking-api/internal/handler/patient"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/router"
	appointmentService "github.com/jwalitptl/booking-api/internal/service/appointment"
	authService "github.com/jwalitptl/booking-api/internal/service/auth"
	kpiService "github.com/jwalitptl/booking-api/internal/service/kpi"
	patientService "github.com/jwalitptl/booking-api/internal/service/patient"
	"github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/lock"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/security"
	"github.com/jwalitptl/booking-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	if err := postgres.RunMigrations(cfg.Database); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Slot locking is advisory; without Redis the database constraint
	// still rejects double bookings.
	var slotLocker lock.SlotLocker = lock.NoopLocker{}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis URL")
		}
		slotLocker = lock.NewRedisSlotLocker(redis.NewClient(opts), cfg.Redis.LockTTL)
	}

	appMetrics := metrics.NewMetrics("booking")
	mailer := email.NewService(cfg.SMTP, appLogger)
	hasher := security.NewBcryptHasher(0)
	tokens := auth.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// Services
	kpiSvc := kpiService.NewService(appointmentRepo, userRepo, cfg.KPI.RefreshInterval, appMetrics, appLogger)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo, userRepo, slotLocker, mailer, kpiSvc,
		appMetrics, appLogger, cfg.Booking.Holidays, cfg.Booking.FailOpen,
	)
	authSvc := authService.NewService(userRepo, hasher, tokens, appLogger)
	patientSvc := patientService.NewService(userRepo, hasher, mailer, appLogger)

	// Handlers
	h := handler.NewHandler(db)
	authH := authHandler.NewHandler(authSvc)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc)
	patientH := patientHandler.NewHandler(patientSvc, validator.New())
	kpiH := kpiHandler.NewHandler(kpiSvc)

	authMiddleware := middleware.NewAuthMiddleware(tokens)

	r := router.NewRouter(authMiddleware, authH, appointmentH, patientH, kpiH, h, router.RouterConfig{
		RateLimit:     rate.Limit(100),
		RateBurst:     200,
		CORSConfig:    middleware.DefaultCORSConfig(),
		MetricsPrefix: "booking_api",
	})
	r.Setup()

	// Keep the exported KPI gauges warm alongside the API.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	statsRefresher := worker.NewStatsRefresher(kpiSvc, appMetrics, cfg.KPI.RefreshInterval, appLogger)
	go statsRefresher.Start(workerCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
