package task

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses maps with an RWMutex for thread-safe access. Conditional status
// writes run under the write lock, so the guard semantics match the
// Postgres implementation. Suitable for development and testing; swap for
// PostgresRepository in production.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	// byJobID maps provider job ids to task ids for callback resolution.
	byJobID map[string]string
}

// NewMemoryRepository creates a new in-memory task repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks:   make(map[string]*Task),
		byJobID: make(map[string]string),
	}
}

// Create persists a task to the in-memory storage.
// Stores a clone to avoid external mutations.
func (r *MemoryRepository) Create(_ context.Context, t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.TaskID] = t.Clone()
	return nil
}

// GetByID retrieves a task scoped to its owner.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) GetByID(_ context.Context, taskID, ownerID string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[taskID]
	if !ok || t.OwnerID != ownerID {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// GetByProviderJobID resolves a provider job id to its task.
func (r *MemoryRepository) GetByProviderJobID(_ context.Context, providerJobID string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	taskID, ok := r.byJobID[providerJobID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	t, ok := r.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// List returns one page of the owner's tasks, newest first, plus the total.
func (r *MemoryRepository) List(_ context.Context, ownerID string, page, pageSize int) ([]*Task, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := make([]*Task, 0)
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			owned = append(owned, t)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := len(owned)
	start := (page - 1) * pageSize
	if start >= total {
		return []*Task{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	result := make([]*Task, 0, end-start)
	for _, t := range owned[start:end] {
		result = append(result, t.Clone())
	}
	return result, total, nil
}

// MarkProcessing records the provider job id and moves pending to processing.
func (r *MemoryRepository) MarkProcessing(_ context.Context, taskID, providerJobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return false, ErrTaskNotFound
	}
	if t.Status != StatusPending || t.ProviderJobID != "" {
		return false, nil
	}
	t.Status = StatusProcessing
	t.ProviderJobID = providerJobID
	t.UpdatedAt = time.Now()
	r.byJobID[providerJobID] = t.TaskID
	return true, nil
}

// Complete moves a non-terminal task to success with its durable URL.
func (r *MemoryRepository) Complete(_ context.Context, taskID, videoURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return false, ErrTaskNotFound
	}
	if !canTransition(t.Status, StatusSuccess) {
		return false, nil
	}
	t.Status = StatusSuccess
	t.VideoURL = videoURL
	t.ErrorMessage = ""
	t.UpdatedAt = time.Now()
	return true, nil
}

// Fail moves a non-terminal task to failed with a message.
func (r *MemoryRepository) Fail(_ context.Context, taskID, message string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return false, ErrTaskNotFound
	}
	if !canTransition(t.Status, StatusFailed) {
		return false, nil
	}
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.UpdatedAt = time.Now()
	return true, nil
}
