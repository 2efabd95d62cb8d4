// Package task provides the Task aggregate for video generation requests.
// It includes the Task entity with its lifecycle state machine, the
// Repository interface for persistence, and the Service that orchestrates
// creation, provider submission, and webhook-driven reconciliation.
package task

import (
	"time"
)

// Type represents the kind of generation a task performs.
type Type string

const (
	// TypeImageToVideo animates a source image into a video clip.
	TypeImageToVideo Type = "image_to_video"
	// TypeTextToVideo generates a video clip from a text prompt alone.
	TypeTextToVideo Type = "text_to_video"
)

// IsValid returns true if the task type is one of the supported kinds.
func (t Type) IsValid() bool {
	return t == TypeImageToVideo || t == TypeTextToVideo
}

// Status represents the current state of a Task.
type Status string

const (
	// StatusPending indicates the task is persisted but not yet accepted
	// by the generation provider.
	StatusPending Status = "pending"
	// StatusProcessing indicates the provider accepted the task and is
	// generating the video.
	StatusProcessing Status = "processing"
	// StatusSuccess indicates the result video was captured and rehosted.
	StatusSuccess Status = "success"
	// StatusFailed indicates submission, generation, or rehosting failed.
	StatusFailed Status = "failed"
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusSuccess, StatusFailed},
	StatusSuccess:    {},
	StatusFailed:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Task represents one user-initiated video generation request and its
// tracked lifecycle. Inputs are fixed at creation; only the Service mutates
// status, and only through the repository's status-guarded writes.
type Task struct {
	// TaskID is the unique external-facing identifier.
	TaskID string
	// OwnerID identifies the requesting user. Every read is scoped by
	// (TaskID, OwnerID).
	OwnerID string
	// TaskType is the generation kind, fixed at creation.
	TaskType Type
	// Status is the current lifecycle state.
	Status Status
	// ProviderJobID is the provider's identifier for the submitted job.
	// Set at most once, when submission succeeds; the join key for
	// incoming callbacks.
	ProviderJobID string
	// Prompt is the generation prompt.
	Prompt string
	// NegativePrompt steers the provider away from unwanted content.
	NegativePrompt string
	// ImageURL is the source image for image_to_video tasks.
	ImageURL string
	// StaticMaskURL marks regions of the source image to keep static.
	StaticMaskURL string
	// CFGScale is the provider guidance scale in [0, 1].
	CFGScale float64
	// DurationSeconds is the requested clip length.
	DurationSeconds int
	// AspectRatio is the output aspect ratio for text_to_video tasks.
	AspectRatio string
	// VideoURL is the durable result URL. Non-empty only when Status is
	// StatusSuccess.
	VideoURL string
	// ThumbnailURL is the preview image. Populated from ImageURL at
	// creation for image_to_video tasks.
	ThumbnailURL string
	// ErrorMessage describes why the task failed. Cleared on success.
	ErrorMessage string
	// CreatedAt is when the task was created.
	CreatedAt time.Time
	// UpdatedAt is refreshed on every mutation.
	UpdatedAt time.Time
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Clone creates a copy of the task for safe reads across goroutines.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
