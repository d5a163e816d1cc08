package app

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/config"
	"github.com/acadence/notification-service/internal/delivery/httpd"
	"github.com/acadence/notification-service/internal/repository"
	"github.com/acadence/notification-service/internal/scheduler"
	"github.com/acadence/notification-service/internal/service"
	"github.com/acadence/notification-service/internal/service/advisor"
	"github.com/acadence/notification-service/internal/service/email"
	"github.com/acadence/notification-service/internal/service/integration"
	"github.com/acadence/notification-service/internal/worker"
	"github.com/acadence/notification-service/internal/worker/queue"
)

type App struct {
	server           *http.Server
	logger           zerolog.Logger
	config           *config.Config
	db               *sql.DB
	workerPool       *worker.WorkerPool
	attendanceWorker worker.AttendanceWorker
	rabbitMQRepo     repository.RabbitMQRepository
	scheduler        *scheduler.Scheduler
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	studentRepo := repository.NewStudentRepository(db, log)
	attendanceRepo := repository.NewAttendanceRepository(db, log)
	notificationRepo := repository.NewNotificationRepository(db, log)
	integrationRepo := repository.NewIntegrationRepository(db, log)
	syncLogRepo := repository.NewSyncLogRepository(db, log)
	courseRepo := repository.NewCourseRepository(db, log)

	dispatcher := email.NewFromConfig(cfg.Email, log)
	composer := advisor.NewTemplateComposer(rand.New(rand.NewSource(time.Now().UnixNano())))

	attendanceService := service.NewAttendanceService(attendanceRepo, log)

	workerPool := worker.NewWorkerPool(cfg.Worker.MaxWorkers, log)

	notificationService := service.NewNotificationService(
		studentRepo,
		notificationRepo,
		attendanceService,
		composer,
		dispatcher,
		workerPool,
		log,
	)

	campaignService := service.NewCampaignService(
		studentRepo,
		attendanceService,
		composer,
		dispatcher,
		service.CampaignOptions{
			TestRecipients: cfg.Campaign.TestRecipients,
			ForceSend:      cfg.Campaign.ForceSend,
			StudentDelay:   cfg.Campaign.StudentDelay,
		},
		log,
	)

	classroomClient := integration.NewClassroomClient(
		cfg.Google.Timeout,
		cfg.Google.RetryCount,
		cfg.Google.RetryDelay,
		log,
	)

	syncService := service.NewSyncService(
		integrationRepo,
		syncLogRepo,
		courseRepo,
		classroomClient,
		service.NewGoogleExchanger(cfg.Google),
		cfg.Sync,
		log,
	)

	// RabbitMQ is optional: without a broker the attendance trigger is off
	// and risk notifications come from the HTTP path and the weekly cron.
	var (
		rabbitMQRepo     repository.RabbitMQRepository
		attendanceWorker worker.AttendanceWorker
	)
	if cfg.RabbitMQ.URL != "" {
		var err error
		rabbitMQRepo, err = repository.NewRabbitMQRepository(cfg.RabbitMQ.URL, log)
		if err != nil {
			return nil, err
		}

		if err := rabbitMQRepo.SetupQueue(
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.QueueName,
			cfg.RabbitMQ.RoutingKey,
		); err != nil {
			return nil, err
		}

		rabbitMQConsumer := queue.NewRabbitMQConsumer(
			rabbitMQRepo.Channel(),
			cfg.RabbitMQ.QueueName,
			cfg.RabbitMQ.ConsumerTag,
			log,
		)

		attendanceWorker = worker.NewAttendanceWorker(
			workerPool,
			rabbitMQConsumer,
			notificationService,
			log,
		)
	} else {
		log.Warn().Msg("RabbitMQ URL not configured, attendance event consumer disabled")
	}

	sched, err := scheduler.New(campaignService, syncService, cfg.Campaign, cfg.Sync, log)
	if err != nil {
		return nil, err
	}

	handler := httpd.NewHandler(
		notificationService,
		campaignService,
		syncService,
		attendanceWorker,
		repository.NewPostgresRepository(db, log),
		cfg.Frontend.BaseURL,
		log,
	)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:           server,
		logger:           log,
		config:           cfg,
		db:               db,
		workerPool:       workerPool,
		attendanceWorker: attendanceWorker,
		rabbitMQRepo:     rabbitMQRepo,
		scheduler:        sched,
	}, nil
}

func (a *App) Run() error {
	ctx := context.Background()

	// The attendance worker starts the shared pool itself; without a broker
	// the pool still has to run for async email dispatch.
	if a.attendanceWorker != nil {
		if err := a.attendanceWorker.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to start attendance worker")
			return err
		}
	} else if err := a.workerPool.Start(ctx); err != nil {
		return err
	}

	if err := a.scheduler.Start(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to start scheduler")
		return err
	}

	a.logger.Info().Msgf("Starting notification service on %s", a.config.Server.Address)
	return a.serve()
}

// serve treats ErrServerClosed as a clean exit so a graceful Shutdown does
// not look like a listener failure to the caller.
func (a *App) serve() error {
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down notification service...")

	a.scheduler.Stop()

	if a.attendanceWorker != nil {
		if err := a.attendanceWorker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop attendance worker")
		}
	} else if err := a.workerPool.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	if a.rabbitMQRepo != nil {
		if err := a.rabbitMQRepo.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
		return err
	}

	a.logger.Info().Msg("Notification service stopped")
	return nil
}
