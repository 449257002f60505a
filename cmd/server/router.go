package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/civora/civora-api/internal/api"
	apiMiddleware "github.com/civora/civora-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
// It accepts the application dependencies to create handlers and register routes.
// Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Worker callbacks (the task UUID is the capability)
		r.Post("/tasks/{taskID}/callback", taskHandler.TaskCallback)

		// City-scoped pipeline endpoints
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/cities/{cityID}/meetings/{meetingID}", func(r chi.Router) {
				r.Use(authMiddleware.RequireCityAccess)

				r.Post("/tasks/{taskType}", taskHandler.DispatchTask)
				r.Post("/poll-decisions", taskHandler.RequestPollDecisions)
				r.Get("/poll-decisions", taskHandler.PollingHistory)
				r.Get("/poll-decisions/status", taskHandler.PollingStatus)
			})

			r.Post("/subjects/{subjectID}/poll-decision", taskHandler.PollDecisionForSubject)

			// Admin surface
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAdmin)

				r.Get("/admin/polling/stats", taskHandler.PollingStats)
				r.Post("/admin/tasks/{taskType}/{taskID}/reprocess", taskHandler.ReprocessTask)
			})
		})
	})

	// Prometheus metrics
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
