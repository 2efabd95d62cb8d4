// Package server provides the HTTP server for the video generation API.
// It includes handlers, middleware, routes, and DTOs separated from domain
// types.
package server

import (
	"errors"
	"strings"
	"time"

	"github.com/vidforge/vidforge-api/internal/freepik"
	"github.com/vidforge/vidforge-api/internal/task"
)

// CreateTaskRequest is the HTTP request body for creating a new task.
type CreateTaskRequest struct {
	// TaskType selects the generation kind.
	TaskType string `json:"task_type" validate:"required,oneof=image_to_video text_to_video"`
	// Prompt is the generation prompt.
	Prompt string `json:"prompt" validate:"required,max=2500"`
	// Duration is the requested clip length in seconds.
	Duration int `json:"duration" validate:"required,oneof=5 10"`
	// ImageURL is the source image for image_to_video tasks.
	ImageURL string `json:"image_url" validate:"omitempty,url"`
	// NegativePrompt steers the model away from unwanted content.
	NegativePrompt string `json:"negative_prompt" validate:"omitempty,max=2500"`
	// CFGScale is the guidance scale in [0, 1]. Defaults to 0.5.
	CFGScale *float64 `json:"cfg_scale" validate:"omitempty,min=0,max=1"`
	// StaticMaskURL marks regions of the source image to keep static.
	StaticMaskURL string `json:"static_mask_url" validate:"omitempty,url"`
	// AspectRatio is the output aspect ratio for text_to_video tasks.
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=widescreen_16_9 social_story_9_16 square_1_1"`
}

// CreateTaskResponse is the HTTP response after creating a task.
type CreateTaskResponse struct {
	// TaskID is the unique identifier for the created task.
	TaskID string `json:"task_id"`
	// TaskType is the generation kind.
	TaskType string `json:"task_type"`
	// Status is the initial task status.
	Status string `json:"status"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
}

// TaskResponse is the HTTP response for reading task details.
type TaskResponse struct {
	TaskID       string    `json:"task_id"`
	TaskType     string    `json:"task_type"`
	Status       string    `json:"status"`
	Prompt       string    `json:"prompt"`
	Duration     int       `json:"duration"`
	ImageURL     string    `json:"image_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	VideoURL     string    `json:"video_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// newTaskResponse builds the read projection of a task.
func newTaskResponse(t *task.Task) TaskResponse {
	return TaskResponse{
		TaskID:       t.TaskID,
		TaskType:     string(t.TaskType),
		Status:       string(t.Status),
		Prompt:       t.Prompt,
		Duration:     t.DurationSeconds,
		ImageURL:     t.ImageURL,
		ThumbnailURL: t.ThumbnailURL,
		VideoURL:     t.VideoURL,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// ListTasksResponse is the HTTP response for the task list endpoint.
type ListTasksResponse struct {
	Tasks      []TaskResponse `json:"tasks"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

// WebhookAckResponse is the acknowledgment body for callback deliveries.
type WebhookAckResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// ErrMalformedWebhook is returned when a callback payload lacks the
// required job identifier or status field in either accepted shape.
var ErrMalformedWebhook = errors.New("malformed webhook payload")

// webhookPayload covers both delivery shapes the provider uses: fields at
// the top level, or the same fields nested under "data".
type webhookPayload struct {
	TaskID       string          `json:"task_id"`
	Status       string          `json:"status"`
	Generated    []string        `json:"generated"`
	ErrorMessage string          `json:"error_message"`
	Data         *webhookPayload `json:"data"`
}

// normalize flattens the payload into the canonical callback event.
// The shape ambiguity stops here; nothing past ingestion sees it.
func (p *webhookPayload) normalize() (task.CallbackEvent, error) {
	flat := p
	if p.Data != nil && p.TaskID == "" {
		flat = p.Data
	}

	if flat.TaskID == "" || flat.Status == "" {
		return task.CallbackEvent{}, ErrMalformedWebhook
	}

	return task.CallbackEvent{
		ProviderJobID: flat.TaskID,
		Status:        freepik.Status(strings.ToUpper(flat.Status)),
		ResultURLs:    flat.Generated,
		ErrorMessage:  flat.ErrorMessage,
	}, nil
}
