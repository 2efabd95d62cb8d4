package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Compile-time check that PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository implements Repository using PostgreSQL through
// database/sql (pgx stdlib driver). Conditional status writes are expressed
// as guarded UPDATE statements; RowsAffected reports whether the guard
// matched, which gives the same lost-duplicate semantics as the in-memory
// implementation without explicit locking.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed task repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const taskColumns = `task_id, owner_id, task_type, status, provider_job_id,
	prompt, negative_prompt, image_url, static_mask_url, cfg_scale,
	duration_seconds, aspect_ratio, video_url, thumbnail_url, error_message,
	created_at, updated_at`

// Create persists a new task row.
func (r *PostgresRepository) Create(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO video_tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''),
			$6, $7, $8, $9, $10,
			$11, $12, NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''),
			$16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.TaskID, t.OwnerID, t.TaskType, t.Status, t.ProviderJobID,
		t.Prompt, t.NegativePrompt, t.ImageURL, t.StaticMaskURL, t.CFGScale,
		t.DurationSeconds, t.AspectRatio, t.VideoURL, t.ThumbnailURL, t.ErrorMessage,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID retrieves a task scoped to its owner.
func (r *PostgresRepository) GetByID(ctx context.Context, taskID, ownerID string) (*Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM video_tasks
		WHERE task_id = $1 AND owner_id = $2
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, taskID, ownerID))
}

// GetByProviderJobID resolves a provider job id to its task.
func (r *PostgresRepository) GetByProviderJobID(ctx context.Context, providerJobID string) (*Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM video_tasks
		WHERE provider_job_id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, providerJobID))
}

// List returns one page of the owner's tasks, newest first, plus the total.
func (r *PostgresRepository) List(ctx context.Context, ownerID string, page, pageSize int) ([]*Task, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize

	var total int
	countQuery := `SELECT COUNT(*) FROM video_tasks WHERE owner_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := `
		SELECT ` + taskColumns + `
		FROM video_tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*Task, 0, pageSize)
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate task rows: %w", err)
	}

	return tasks, total, nil
}

// MarkProcessing records the provider job id and moves pending to processing.
// The guard keeps the provider job id write-once: the update matches only
// while the row is pending and the id column is still NULL.
func (r *PostgresRepository) MarkProcessing(ctx context.Context, taskID, providerJobID string) (bool, error) {
	query := `
		UPDATE video_tasks
		SET status = $2, provider_job_id = $3, updated_at = $4
		WHERE task_id = $1 AND status = $5 AND provider_job_id IS NULL
	`
	return r.guardedExec(ctx, query, taskID, StatusProcessing, providerJobID, time.Now().UTC(), StatusPending)
}

// Complete moves a non-terminal task to success with its durable URL.
func (r *PostgresRepository) Complete(ctx context.Context, taskID, videoURL string) (bool, error) {
	query := `
		UPDATE video_tasks
		SET status = $2, video_url = $3, error_message = NULL, updated_at = $4
		WHERE task_id = $1 AND status = $5
	`
	return r.guardedExec(ctx, query, taskID, StatusSuccess, videoURL, time.Now().UTC(), StatusProcessing)
}

// Fail moves a non-terminal task to failed with a message.
func (r *PostgresRepository) Fail(ctx context.Context, taskID, message string) (bool, error) {
	query := `
		UPDATE video_tasks
		SET status = $2, error_message = $3, updated_at = $4
		WHERE task_id = $1 AND status IN ($5, $6)
	`
	return r.guardedExec(ctx, query, taskID, StatusFailed, message, time.Now().UTC(), StatusPending, StatusProcessing)
}

// guardedExec runs a conditional update and reports whether it matched.
func (r *PostgresRepository) guardedExec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// scanOne scans a single row, mapping sql.ErrNoRows to ErrTaskNotFound.
func (r *PostgresRepository) scanOne(row *sql.Row) (*Task, error) {
	t, err := scanTask(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return t, nil
}

// scanTask reads one task from a row scan function. Nullable columns are
// scanned through sql.NullString and flattened to empty strings.
func scanTask(scan func(dest ...any) error) (*Task, error) {
	var (
		t                      Task
		providerJobID          sql.NullString
		videoURL, thumbnailURL sql.NullString
		errorMessage           sql.NullString
	)
	err := scan(
		&t.TaskID, &t.OwnerID, &t.TaskType, &t.Status, &providerJobID,
		&t.Prompt, &t.NegativePrompt, &t.ImageURL, &t.StaticMaskURL, &t.CFGScale,
		&t.DurationSeconds, &t.AspectRatio, &videoURL, &thumbnailURL, &errorMessage,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ProviderJobID = providerJobID.String
	t.VideoURL = videoURL.String
	t.ThumbnailURL = thumbnailURL.String
	t.ErrorMessage = errorMessage.String
	return &t, nil
}
