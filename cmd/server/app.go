package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/civora/civora-api/internal/config"
	"github.com/civora/civora-api/internal/events"
	"github.com/civora/civora-api/internal/platform/logger"
	"github.com/civora/civora-api/internal/platform/postgres"
	"github.com/civora/civora-api/internal/platform/taskapi"
	"github.com/civora/civora-api/internal/service/auth"
	"github.com/civora/civora-api/internal/store"
	"github.com/civora/civora-api/internal/task"
)

// AuditLogEventHandler records every pipeline event to the structured log.
// It is the default sink for the fire-and-forget notification stream.
type AuditLogEventHandler struct {
	logger *slog.Logger
}

// HandleEvent logs the event with its payload.
func (h *AuditLogEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	h.logger.Info("pipeline event",
		"event_id", event.ID,
		"event_type", event.Type,
		"payload", string(event.Payload))
	return nil
}

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore         store.TaskStore
	decisionStore     store.DecisionStore
	meetingStore      store.MeetingStore
	subjectStore      store.SubjectStore
	transcriptStore   store.TranscriptStore
	notificationStore store.NotificationStore

	// Service interfaces
	jwtService  auth.JWTService
	taskService *task.Service

	// Event system
	eventEmitter events.Emitter

	// Decision-polling cron
	pollCron *cron.Cron
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, appLogger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: appLogger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	appLogger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize stores
	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.decisionStore = postgres.NewPostgresDecisionStore(db)
	app.meetingStore = postgres.NewPostgresMeetingStore(db)
	app.subjectStore = postgres.NewPostgresSubjectStore(db)
	app.transcriptStore = postgres.NewPostgresTranscriptStore(db)
	app.notificationStore = postgres.NewPostgresNotificationStore(db)

	// Initialize event emitter with the audit log sink
	emitter := events.NewInMemoryEmitter(appLogger)
	emitter.RegisterHandler(&AuditLogEventHandler{
		logger: appLogger.With("component", "audit_log_event_handler"),
	})
	app.eventEmitter = emitter

	// Initialize the worker API client
	workerClient := taskapi.NewClient(cfg.Worker, appLogger)

	// Initialize the task lifecycle service
	app.taskService, err = task.NewService(task.ServiceParams{
		DB:              db,
		Tasks:           app.taskStore,
		Decisions:       app.decisionStore,
		Meetings:        app.meetingStore,
		Subjects:        app.subjectStore,
		Transcripts:     app.transcriptStore,
		Notifications:   app.notificationStore,
		Worker:          workerClient,
		Emitter:         app.eventEmitter,
		Logger:          appLogger,
		CallbackBaseURL: cfg.Server.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	// Set up the decision-polling cron
	if err := app.setupPollCron(); err != nil {
		return nil, fmt.Errorf("failed to set up polling cron: %w", err)
	}

	appLogger.Info("Application initialized successfully")
	return app, nil
}

// setupPollCron schedules the decision-polling batch run. An empty schedule
// disables the in-process cron.
func (app *application) setupPollCron() error {
	schedule := app.config.Polling.CronSchedule
	if schedule == "" {
		app.logger.Info("Decision polling cron disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx := logger.WithLogger(context.Background(),
			app.logger.With("component", "decision_polling_cron"))

		result, err := app.taskService.PollDecisionsForRecentMeetings(ctx)
		if err != nil {
			app.logger.Error("Decision polling run failed", "error", err)
			return
		}
		app.logger.Info("Decision polling run completed",
			"candidates", result.Candidates,
			"dispatched", result.Dispatched,
			"skipped", result.Skipped,
			"failed", result.Failed)
	})
	if err != nil {
		return fmt.Errorf("invalid polling cron schedule %q: %w", schedule, err)
	}

	app.pollCron = c
	app.logger.Info("Decision polling cron scheduled", "schedule", schedule)
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	if app.pollCron != nil {
		app.pollCron.Start()
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.pollCron != nil {
		cronCtx := app.pollCron.Stop()
		<-cronCtx.Done()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
