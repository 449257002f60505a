package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/civora/civora-api/internal/api/shared"
	"github.com/civora/civora-api/internal/domain"
	"github.com/civora/civora-api/internal/task"
)

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	Status           string    `json:"status"`
	CityID           string    `json:"city_id"`
	CouncilMeetingID string    `json:"council_meeting_id"`
	Stage            string    `json:"stage,omitempty"`
	PercentComplete  *int      `json:"percent_complete,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BlockedTaskResponse is returned when a dispatch short-circuits on an
// existing task instead of creating a new one.
type BlockedTaskResponse struct {
	Blocked bool         `json:"blocked"`
	Reason  string       `json:"reason"`
	Task    TaskResponse `json:"task"`
}

// TaskHandler handles task dispatch, worker callbacks and polling endpoints.
type TaskHandler struct {
	taskService *task.Service
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *task.Service, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With("component", "task_handler"),
	}
}

// DispatchTask handles POST /api/cities/{cityID}/meetings/{meetingID}/tasks/{taskType}.
// The request body is the worker payload and is passed through as-is; the
// force query parameter bypasses the idempotency guard.
func (h *TaskHandler) DispatchTask(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")
	meetingID := chi.URLParam(r, "meetingID")
	taskType := domain.TaskType(chi.URLParam(r, "taskType"))

	if !domain.IsValidTaskType(taskType) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown task type")
		return
	}

	var body json.RawMessage
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	opts := task.StartOptions{Force: r.URL.Query().Get("force") == "true"}

	t, err := h.taskService.StartTask(r.Context(), taskType, body, cityID, meetingID, opts)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToDTOResponse(t))
}

// TaskCallback handles POST /api/tasks/{taskID}/callback, the status updates
// the worker POSTs back. It answers 202 for every handled update, including
// updates referencing unknown tasks, so worker retries drain cleanly.
func (h *TaskHandler) TaskCallback(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	var update task.Update
	if err := shared.DecodeJSON(r, &update); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.taskService.HandleTaskUpdate(r.Context(), taskID, update); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// RequestPollDecisions handles POST /api/cities/{cityID}/meetings/{meetingID}/poll-decisions.
func (h *TaskHandler) RequestPollDecisions(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")
	meetingID := chi.URLParam(r, "meetingID")

	t, err := h.taskService.RequestPollDecisions(r.Context(), cityID, meetingID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToDTOResponse(t))
}

// PollDecisionForSubject handles POST /api/subjects/{subjectID}/poll-decision,
// the on-demand "check for decision" entry point. When a recent poll is still
// pending it responds 200 with the existing task instead of dispatching.
func (h *TaskHandler) PollDecisionForSubject(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	t, blocked, err := h.taskService.RequestPollDecisionForSubject(r.Context(), subjectID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if blocked != "" {
		shared.RespondWithJSON(w, r, http.StatusOK, BlockedTaskResponse{
			Blocked: true,
			Reason:  string(blocked),
			Task:    taskToDTOResponse(t),
		})
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToDTOResponse(t))
}

// PollingHistory handles GET /api/cities/{cityID}/meetings/{meetingID}/poll-decisions.
func (h *TaskHandler) PollingHistory(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")
	meetingID := chi.URLParam(r, "meetingID")

	tasks, err := h.taskService.GetPollingHistoryForMeeting(r.Context(), cityID, meetingID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		responses = append(responses, taskToDTOResponse(t))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// PollingStatus handles GET /api/cities/{cityID}/meetings/{meetingID}/poll-decisions/status.
func (h *TaskHandler) PollingStatus(w http.ResponseWriter, r *http.Request) {
	cityID := chi.URLParam(r, "cityID")
	meetingID := chi.URLParam(r, "meetingID")

	status, err := h.taskService.GetPollingStatusForMeeting(r.Context(), cityID, meetingID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, status)
}

// PollingStats handles GET /api/admin/polling/stats.
func (h *TaskHandler) PollingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.taskService.GetPollingStats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// ReprocessTask handles POST /api/admin/tasks/{taskType}/{taskID}/reprocess,
// replaying a persisted task response through its result handler.
func (h *TaskHandler) ReprocessTask(w http.ResponseWriter, r *http.Request) {
	taskType := domain.TaskType(chi.URLParam(r, "taskType"))
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	if err := h.taskService.ProcessTaskResponse(r.Context(), taskType, taskID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// taskToDTOResponse converts a domain.Task to a TaskResponse
func taskToDTOResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:               t.ID.String(),
		Type:             string(t.Type),
		Status:           string(t.Status),
		CityID:           t.CityID,
		CouncilMeetingID: t.CouncilMeetingID,
		Stage:            t.Stage,
		PercentComplete:  t.PercentComplete,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}
