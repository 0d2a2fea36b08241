package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/servicehub/booking-api/internal/config"
	"github.com/servicehub/booking-api/internal/email"
	"github.com/servicehub/booking-api/internal/handler"
	appointmentHandler "github.com/servicehub/booking-api/internal/handler/appointment"
	authHandler "github.com/servicehub/booking-api/internal/handler/auth"
	"github.com/servicehub/booking-api/internal/middleware"
	"github.com/servicehub/booking-api/internal/repository/postgres"
	"github.com/servicehub/booking-api/internal/router"
	appointmentService "github.com/servicehub/booking-api/internal/service/appointment"
	authService "github.com/servicehub/booking-api/internal/service/auth"
	notificationService "github.com/servicehub/booking-api/internal/service/notification"
	schedulerWorker "github.com/servicehub/booking-api/internal/worker"
	pkgauth "github.com/servicehub/booking-api/pkg/auth"
	"github.com/servicehub/booking-api/pkg/logger"
	redisbroker "github.com/servicehub/booking-api/pkg/messaging/redis"
	"github.com/servicehub/booking-api/pkg/metrics"
	"github.com/servicehub/booking-api/pkg/security"
	"github.com/servicehub/booking-api/pkg/worker"
)

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

	m := metrics.NewMetrics("booking_api", "core")

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	userDirectory := postgres.NewUserDirectory(db)
	serviceDirectory := postgres.NewServiceDirectory(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Services
	var fallbackStaffID uuid.UUID
	if cfg.StaffBinding.FallbackStaffID != "" {
		fallbackStaffID, err = uuid.Parse(cfg.StaffBinding.FallbackStaffID)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid fallback staff ID")
		}
	}
	resolver := appointmentService.NewStaffResolver(serviceDirectory, userDirectory, fallbackStaffID)

	notifSvc := notificationService.NewService(notificationRepo, m)
	appointmentSvc := appointmentService.NewService(appointmentRepo, userDirectory, resolver, notifSvc, appLogger)

	jwtSvc := pkgauth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)
	authSvc := authService.NewService(userDirectory, jwtSvc, hasher)

	// Handlers and router
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(authSvc),
		appointmentHandler.NewHandler(appointmentSvc),
		handler.NewHealthHandler(db),
		router.Config{
			RateLimit:  100,
			RateBurst:  200,
			CORSConfig: middleware.DefaultCORSConfig(),
			CacheTTL:   15 * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	// Background workers share a cancellable context.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	scheduler := schedulerWorker.NewReminderScheduler(
		appointmentRepo, userDirectory, notifSvc,
		cfg.Scheduler.ScanInterval, appLogger, m,
	)
	go scheduler.Start(workerCtx)

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	dispatcher := worker.NewNotificationDispatcher(
		notificationRepo, broker, email.NewSMTPService(cfg.SMTP),
		worker.NotificationDispatcherConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
		},
		appLogger, m,
	)
	go dispatcher.Start(workerCtx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	cancelWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
