package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/social-text-api/internal/api"
	"github.com/phrazzld/social-text-api/internal/api/middleware"
	"github.com/phrazzld/social-text-api/internal/config"
	"github.com/phrazzld/social-text-api/internal/platform/abstractapi"
	"github.com/phrazzld/social-text-api/internal/platform/logger"
	"github.com/phrazzld/social-text-api/internal/platform/postgres"
	"github.com/phrazzld/social-text-api/internal/service/auth"
	"github.com/phrazzld/social-text-api/internal/task"
)

// application holds all the initialized components of the server and
// owns their lifecycle from startup to cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskRunner *task.TaskRunner

	authHandler    *api.AuthHandler
	postHandler    *api.PostHandler
	authMiddleware *middleware.AuthMiddleware
}

// newApplication wires every component together: configuration,
// logging, database, stores, auth services, the AbstractAPI client,
// the background task runner with its rehydrators, and the HTTP
// handlers. Returns an error if any dependency cannot be constructed.
func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, appLogger); err != nil {
		return nil, err
	}

	userStore := postgres.NewPostgresUserStore(db, appLogger)
	postStore := postgres.NewPostgresPostStore(db, appLogger)
	geoStore := postgres.NewPostgresGeolocationStore(db, appLogger)
	taskStore := postgres.NewPostgresTaskStore(db)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	bcryptVerifier := auth.NewBcryptVerifier()

	apiClient := abstractapi.NewClient(cfg.AbstractAPI, &http.Client{
		Timeout: 10 * time.Second,
	}, appLogger)

	taskRunner := task.NewTaskRunner(taskStore, taskRunnerConfig(cfg.Task), appLogger)

	holidayFactory := task.NewHolidayTaskFactory(geoStore, apiClient, appLogger)
	geoFactory := task.NewGeolocationTaskFactory(
		userStore, geoStore, apiClient, holidayFactory, taskRunner, appLogger)

	// Rehydrators rebuild persisted tasks with live dependencies after a
	// restart so recovery can re-run them.
	taskRunner.RegisterRehydrator(task.TaskTypeGeolocationCreate, geoFactory.Rehydrate)
	taskRunner.RegisterRehydrator(task.TaskTypeHolidayUpdate, holidayFactory.Rehydrate)

	pipeline := task.NewEnrichmentPipeline(geoFactory, taskRunner, appLogger)

	authHandler := api.NewAuthHandler(
		userStore,
		geoStore,
		jwtService,
		bcryptVerifier,
		bcryptVerifier,
		apiClient,
		pipeline,
		appLogger,
	)
	postHandler := api.NewPostHandler(postStore, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	return &application{
		config:         cfg,
		logger:         appLogger,
		db:             db,
		taskRunner:     taskRunner,
		authHandler:    authHandler,
		postHandler:    postHandler,
		authMiddleware: authMiddleware,
	}, nil
}

// run starts the background task runner and serves HTTP until
// shutdown. Start recovers tasks left over from a previous process
// before any worker goes live.
func (app *application) run() error {
	defer app.cleanup()

	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	return app.startHTTPServer(context.Background(), app.buildRouter())
}

// cleanup releases application resources in reverse dependency order.
func (app *application) cleanup() {
	app.logger.Info("Cleaning up application resources")

	app.taskRunner.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("Failed to close database connection", "error", err)
	}
}

// taskRunnerConfig maps TaskConfig settings onto the runner's config,
// falling back to runner defaults for unset optional values.
func taskRunnerConfig(cfg config.TaskConfig) task.TaskRunnerConfig {
	rc := task.DefaultTaskRunnerConfig()
	rc.WorkerCount = cfg.WorkerCount
	rc.QueueSize = cfg.QueueSize
	rc.MaxRetries = cfg.MaxRetries
	rc.RetryBackoff = cfg.RetryBackoff
	rc.AlwaysEager = cfg.AlwaysEager
	if cfg.RetryDelaySeconds > 0 {
		rc.RetryDelay = time.Duration(cfg.RetryDelaySeconds) * time.Second
	}
	if cfg.StuckTaskAgeMinutes > 0 {
		rc.StuckTaskAge = time.Duration(cfg.StuckTaskAgeMinutes) * time.Minute
	}
	if cfg.StuckTaskCheckMinutes > 0 {
		rc.StuckTaskCheckInterval = time.Duration(cfg.StuckTaskCheckMinutes) * time.Minute
	}
	return rc
}
