package task

import (
	"context"
	"errors"
)

// ErrTaskNotFound is returned when a task cannot be found by its key.
var ErrTaskNotFound = errors.New("task not found")

// Repository defines the interface for task persistence.
//
// Status mutations are conditional writes: they apply only while the task
// is in the expected non-terminal state and report whether they took
// effect. Two near-simultaneous terminal transitions therefore cannot both
// apply; the loser observes applied == false and treats the event as a
// duplicate. This guard is the only concurrency control the task record
// needs.
type Repository interface {
	// Create persists a new task. The task's status must be StatusPending.
	Create(ctx context.Context, t *Task) error

	// GetByID retrieves a task scoped to its owner.
	// Returns ErrTaskNotFound if no task matches both keys.
	GetByID(ctx context.Context, taskID, ownerID string) (*Task, error)

	// GetByProviderJobID resolves an incoming callback to a task.
	// Returns ErrTaskNotFound if no task carries the provider job id.
	GetByProviderJobID(ctx context.Context, providerJobID string) (*Task, error)

	// List returns one page of the owner's tasks ordered by creation time
	// descending, plus the total count across all pages.
	List(ctx context.Context, ownerID string, page, pageSize int) ([]*Task, int, error)

	// MarkProcessing records the provider job id and moves the task from
	// pending to processing. Applied only if the task is still pending and
	// has no provider job id; returns whether the write took effect.
	MarkProcessing(ctx context.Context, taskID, providerJobID string) (bool, error)

	// Complete moves a non-terminal task to success, sets the durable
	// video URL, and clears any error message. Returns whether the write
	// took effect.
	Complete(ctx context.Context, taskID, videoURL string) (bool, error)

	// Fail moves a non-terminal task to failed with a human-readable
	// message. Returns whether the write took effect.
	Fail(ctx context.Context, taskID, message string) (bool, error)
}
