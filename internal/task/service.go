package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidforge/vidforge-api/internal/freepik"
	"github.com/vidforge/vidforge-api/internal/media"
	"github.com/vidforge/vidforge-api/internal/task/id"
)

// Static errors for task creation.
var (
	// ErrInvalidTaskType is returned for an unsupported task type.
	ErrInvalidTaskType = errors.New("task: invalid task type")
	// ErrImageURLRequired is returned when an image_to_video task carries
	// no source image URL. Nothing is persisted in that case.
	ErrImageURLRequired = errors.New("task: image_to_video task requires a source image URL")
)

// CreateTaskInput contains the validated parameters for a new task.
// Inputs are immutable once the task is persisted.
type CreateTaskInput struct {
	TaskType        Type
	Prompt          string
	NegativePrompt  string
	ImageURL        string
	StaticMaskURL   string
	CFGScale        float64
	DurationSeconds int
	AspectRatio     string
}

// CallbackEvent is the canonical form of a provider webhook delivery.
// The ingestion boundary normalizes both accepted payload shapes into this
// type; nothing past ingestion sees the wire format.
type CallbackEvent struct {
	// ProviderJobID joins the event to a task.
	ProviderJobID string
	// Status is the provider-reported outcome.
	Status freepik.Status
	// ResultURLs are the ephemeral artifact URLs, present on completion.
	ResultURLs []string
	// ErrorMessage is the provider-supplied failure detail, if any.
	ErrorMessage string
}

// StatusCache is the read-through cache port in front of the repository.
// Invalidation must happen synchronously with every status mutation.
type StatusCache interface {
	Get(taskID, ownerID string) (*Task, bool)
	Set(t *Task)
	Invalidate(taskID, ownerID string)
}

// Service is the task lifecycle controller. It orchestrates creation,
// background provider submission, status reads, and webhook-driven
// reconciliation, and is the only component that mutates task status.
type Service struct {
	repo       Repository
	provider   freepik.Client
	rehoster   media.Rehoster
	cache      StatusCache
	webhookURL string
	logger     *slog.Logger
}

// NewService creates a task lifecycle service. webhookURL is the callback
// address handed to the provider with every submission.
func NewService(
	repo Repository,
	provider freepik.Client,
	rehoster media.Rehoster,
	statusCache StatusCache,
	webhookURL string,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		provider:   provider,
		rehoster:   rehoster,
		cache:      statusCache,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// CreateTask validates and persists a new task with status pending, then
// dispatches provider submission in the background. The caller gets the
// created task immediately; user-facing latency is bounded by local
// persistence only, never by provider latency.
func (s *Service) CreateTask(ctx context.Context, ownerID string, in CreateTaskInput) (*Task, error) {
	if !in.TaskType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskType, in.TaskType)
	}
	if in.TaskType == TypeImageToVideo && in.ImageURL == "" {
		return nil, ErrImageURLRequired
	}

	now := time.Now()
	t := &Task{
		TaskID:          id.Generate(),
		OwnerID:         ownerID,
		TaskType:        in.TaskType,
		Status:          StatusPending,
		Prompt:          in.Prompt,
		NegativePrompt:  in.NegativePrompt,
		ImageURL:        in.ImageURL,
		StaticMaskURL:   in.StaticMaskURL,
		CFGScale:        in.CFGScale,
		DurationSeconds: in.DurationSeconds,
		AspectRatio:     in.AspectRatio,
		ThumbnailURL:    in.ImageURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		s.logger.Error("failed to create task",
			slog.String("task_id", t.TaskID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.Info("task created",
		slog.String("task_id", t.TaskID),
		slog.String("owner_id", ownerID),
		slog.String("task_type", string(t.TaskType)),
	)

	// Submission runs detached from the request so creation latency stays
	// local. Its outcome always terminates in a recorded status.
	go s.submit(context.WithoutCancel(ctx), t.Clone())

	return t, nil
}

// submit sends the task to the provider exactly once. Success records the
// provider job id and moves the task to processing; any failure moves it
// to failed with the error captured. Submission is never retried.
func (s *Service) submit(ctx context.Context, t *Task) {
	providerJobID, err := s.provider.Submit(ctx, freepik.SubmitRequest{
		TaskType:        string(t.TaskType),
		Prompt:          t.Prompt,
		NegativePrompt:  t.NegativePrompt,
		CFGScale:        t.CFGScale,
		DurationSeconds: t.DurationSeconds,
		ImageURL:        t.ImageURL,
		StaticMaskURL:   t.StaticMaskURL,
		AspectRatio:     t.AspectRatio,
		WebhookURL:      s.webhookURL,
	})
	if err != nil {
		s.logger.Error("provider submission failed",
			slog.String("task_id", t.TaskID),
			slog.String("error", err.Error()),
		)
		s.recordFailure(ctx, t, "provider submission failed: "+err.Error())
		return
	}

	applied, err := s.repo.MarkProcessing(ctx, t.TaskID, providerJobID)
	if err != nil {
		s.logger.Error("failed to record provider job id",
			slog.String("task_id", t.TaskID),
			slog.String("provider_job_id", providerJobID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !applied {
		s.logger.Warn("submission result discarded: task no longer pending",
			slog.String("task_id", t.TaskID),
			slog.String("provider_job_id", providerJobID),
		)
		return
	}

	s.cache.Invalidate(t.TaskID, t.OwnerID)
	s.logger.Info("task submitted to provider",
		slog.String("task_id", t.TaskID),
		slog.String("provider_job_id", providerJobID),
	)
}

// GetTask returns the task scoped to its owner, consulting the status
// cache first and repopulating it on a miss.
func (s *Service) GetTask(ctx context.Context, taskID, ownerID string) (*Task, error) {
	if t, ok := s.cache.Get(taskID, ownerID); ok {
		return t, nil
	}

	t, err := s.repo.GetByID(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(t)
	return t, nil
}

// ListTasks returns one page of the owner's tasks, newest first, plus the
// total count. Listing bypasses the cache.
func (s *Service) ListTasks(ctx context.Context, ownerID string, page, pageSize int) ([]*Task, int, error) {
	return s.repo.List(ctx, ownerID, page, pageSize)
}

// HandleCallback reconciles one provider webhook event with local state.
//
// Unknown job ids and events for already-terminal tasks are discarded with
// a log line; webhook delivery is not exactly-once, so duplicates are
// expected. A completed event with a result runs the rehosting pipeline
// before the terminal transition. Every applied transition invalidates the
// status cache entry before this method returns.
func (s *Service) HandleCallback(ctx context.Context, ev CallbackEvent) error {
	log := s.logger.With(slog.String("provider_job_id", ev.ProviderJobID))

	t, err := s.repo.GetByProviderJobID(ctx, ev.ProviderJobID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			log.Warn("callback discarded: unknown provider job id",
				slog.String("status", string(ev.Status)),
			)
			return nil
		}
		return fmt.Errorf("resolve callback task: %w", err)
	}

	if t.IsTerminal() {
		log.Info("callback discarded: task already terminal",
			slog.String("task_id", t.TaskID),
			slog.String("task_status", string(t.Status)),
		)
		return nil
	}

	switch ev.Status {
	case freepik.StatusCompleted:
		if len(ev.ResultURLs) == 0 {
			log.Warn("provider reported completion without a deliverable",
				slog.String("task_id", t.TaskID),
			)
			s.recordFailure(ctx, t, "provider reported completion without a result video")
			return nil
		}
		s.captureResult(ctx, t, ev.ResultURLs[0])

	case freepik.StatusFailed:
		msg := ev.ErrorMessage
		if msg == "" {
			msg = "video generation failed"
		}
		log.Info("provider reported failure",
			slog.String("task_id", t.TaskID),
			slog.String("error", msg),
		)
		s.recordFailure(ctx, t, msg)

	default:
		// Progress notifications (CREATED, IN_PROGRESS) carry no
		// deliverable transition.
		log.Info("callback ignored: non-terminal provider status",
			slog.String("task_id", t.TaskID),
			slog.String("status", string(ev.Status)),
		)
	}

	return nil
}

// captureResult rehosts the ephemeral artifact and applies the success
// transition. A rehosting failure after provider success is a distinct
// failure class from provider-side failure and is logged as such.
func (s *Service) captureResult(ctx context.Context, t *Task, remoteURL string) {
	durableURL, err := s.rehoster.Rehost(ctx, remoteURL, t.OwnerID, t.TaskID)
	if err != nil {
		s.logger.Error("result capture failed after provider success",
			slog.String("task_id", t.TaskID),
			slog.String("remote_url", remoteURL),
			slog.String("error", err.Error()),
		)
		s.recordFailure(ctx, t, "failed to capture result video: "+err.Error())
		return
	}

	applied, err := s.repo.Complete(ctx, t.TaskID, durableURL)
	if err != nil {
		s.logger.Error("failed to record task success",
			slog.String("task_id", t.TaskID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !applied {
		s.logger.Info("success transition discarded as duplicate",
			slog.String("task_id", t.TaskID),
		)
		return
	}

	s.cache.Invalidate(t.TaskID, t.OwnerID)
	s.logger.Info("task completed",
		slog.String("task_id", t.TaskID),
		slog.String("video_url", durableURL),
	)
}

// recordFailure applies the failed transition and invalidates the cache.
// A lost conditional write means another delivery already settled the
// task; it is logged as a duplicate, not an error.
func (s *Service) recordFailure(ctx context.Context, t *Task, message string) {
	applied, err := s.repo.Fail(ctx, t.TaskID, message)
	if err != nil {
		s.logger.Error("failed to record task failure",
			slog.String("task_id", t.TaskID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !applied {
		s.logger.Info("failure transition discarded as duplicate",
			slog.String("task_id", t.TaskID),
		)
		return
	}

	s.cache.Invalidate(t.TaskID, t.OwnerID)
}
