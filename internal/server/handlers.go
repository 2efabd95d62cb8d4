package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/vidforge/vidforge-api/internal/task"
)

// ownerHeader carries the authenticated user identity, injected by the
// upstream auth layer.
const ownerHeader = "X-User-ID"

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *task.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *task.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateTask handles POST /api/v1/tasks requests.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	cfgScale := 0.5
	if req.CFGScale != nil {
		cfgScale = *req.CFGScale
	}

	created, err := h.service.CreateTask(r.Context(), ownerID, task.CreateTaskInput{
		TaskType:        task.Type(req.TaskType),
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		ImageURL:        req.ImageURL,
		StaticMaskURL:   req.StaticMaskURL,
		CFGScale:        cfgScale,
		DurationSeconds: req.Duration,
		AspectRatio:     req.AspectRatio,
	})
	if err != nil {
		if errors.Is(err, task.ErrImageURLRequired) || errors.Is(err, task.ErrInvalidTaskType) {
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
			return
		}
		h.logger.Error("failed to create task",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create task", "TASK_CREATION_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, CreateTaskResponse{
		TaskID:    created.TaskID,
		TaskType:  string(created.TaskType),
		Status:    string(created.Status),
		CreatedAt: created.CreatedAt,
	})
}

// GetTask handles GET /api/v1/tasks/{id} requests.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required", "MISSING_TASK_ID")
		return
	}

	found, err := h.service.GetTask(r.Context(), taskID, ownerID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get task",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get task", "TASK_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newTaskResponse(found))
}

// ListTasks handles GET /api/v1/tasks requests.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.requireOwner(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	if limit > 100 {
		limit = 100
	}

	tasks, total, err := h.service.ListTasks(r.Context(), ownerID, page, limit)
	if err != nil {
		h.logger.Error("failed to list tasks",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list tasks", "TASK_LIST_FAILED")
		return
	}

	items := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, newTaskResponse(t))
	}

	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	writeJSON(w, http.StatusOK, ListTasksResponse{
		Tasks:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	})
}

// HandleWebhook handles POST /api/v1/tasks/freepik_callback requests.
//
// Structurally valid payloads are always acknowledged with 200, even when
// the referenced job is unknown or already settled; a 4xx here would only
// provoke provider retry storms. Only malformed payloads get 400.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("failed to decode webhook body",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid webhook payload", "INVALID_WEBHOOK")
		return
	}

	event, err := payload.normalize()
	if err != nil {
		h.logger.Warn("malformed webhook payload",
			slog.String("remote_addr", r.RemoteAddr),
		)
		writeError(w, http.StatusBadRequest, "invalid webhook payload format", "INVALID_WEBHOOK")
		return
	}

	h.logger.Info("webhook received",
		slog.String("provider_job_id", event.ProviderJobID),
		slog.String("status", string(event.Status)),
		slog.String("remote_addr", r.RemoteAddr),
	)

	if err := h.service.HandleCallback(r.Context(), event); err != nil {
		h.logger.Error("callback processing failed",
			slog.String("provider_job_id", event.ProviderJobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "callback processing failed", "CALLBACK_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, WebhookAckResponse{Success: true})
}

// requireOwner extracts the authenticated user identity or rejects with 401.
func (h *Handlers) requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity", "UNAUTHORIZED")
		return "", false
	}
	return ownerID, true
}

// queryInt parses a positive integer query parameter with a default.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
