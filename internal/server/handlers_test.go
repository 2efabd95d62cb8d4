package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidforge/vidforge-api/internal/cache"
	"github.com/vidforge/vidforge-api/internal/freepik"
	"github.com/vidforge/vidforge-api/internal/ratelimit"
	"github.com/vidforge/vidforge-api/internal/task"
)

// stubProvider is a function-backed freepik.Client.
type stubProvider struct {
	submit func(ctx context.Context, req freepik.SubmitRequest) (string, error)
}

func (s *stubProvider) Submit(ctx context.Context, req freepik.SubmitRequest) (string, error) {
	return s.submit(ctx, req)
}

// stubRehoster is a function-backed media.Rehoster.
type stubRehoster struct {
	rehost func(ctx context.Context, remoteURL, ownerID, taskID string) (string, error)
}

func (s *stubRehoster) Rehost(ctx context.Context, remoteURL, ownerID, taskID string) (string, error) {
	return s.rehost(ctx, remoteURL, ownerID, taskID)
}

// discardLogger keeps middleware and handler logging out of test output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiFixture struct {
	router  http.Handler
	repo    *task.MemoryRepository
	limiter *ratelimit.FixedWindowLimiter
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	repo := task.NewMemoryRepository()
	provider := &stubProvider{
		submit: func(_ context.Context, _ freepik.SubmitRequest) (string, error) {
			return "job-abc", nil
		},
	}
	rehoster := &stubRehoster{
		rehost: func(_ context.Context, _, ownerID, taskID string) (string, error) {
			return fmt.Sprintf("https://blob.example.com/videos/%s/%s.mp4", ownerID, taskID), nil
		},
	}

	svc := task.NewService(repo, provider, rehoster,
		cache.New(5*time.Second), "https://api.example.com/callback", nil)
	limiter := ratelimit.NewFixedWindow(100, time.Minute)
	h := NewHandlers(svc, discardLogger())
	return &apiFixture{
		router:  NewRouter(h, limiter, discardLogger(), DefaultConfig()),
		repo:    repo,
		limiter: limiter,
	}
}

func (f *apiFixture) do(method, path, owner string, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if owner != "" {
		r.Header.Set("X-User-ID", owner)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

// createTask posts a valid creation request and returns the new task id.
func (f *apiFixture) createTask(t *testing.T, owner string) string {
	t.Helper()
	w := f.do(http.MethodPost, "/api/v1/tasks", owner, `{
		"task_type": "image_to_video",
		"prompt": "a cat surfing",
		"duration": 5,
		"image_url": "https://example.com/cat.jpg"
	}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp CreateTaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.TaskID
}

// waitForStatus polls the repository until the background submission settles.
func (f *apiFixture) waitForStatus(t *testing.T, taskID, owner string, want task.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := f.repo.GetByID(context.Background(), taskID, owner)
		return err == nil && got.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealth(t *testing.T) {
	f := setupAPI(t)

	w := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "ok"}`, w.Body.String())
}

func TestCreateTask(t *testing.T) {
	f := setupAPI(t)

	taskID := f.createTask(t, "user-1")
	assert.True(t, strings.HasPrefix(taskID, "task-"))
	f.waitForStatus(t, taskID, "user-1", task.StatusProcessing)
}

func TestCreateTask_MissingIdentity(t *testing.T) {
	f := setupAPI(t)

	w := f.do(http.MethodPost, "/api/v1/tasks", "", `{"task_type": "image_to_video"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNAUTHORIZED", resp.Code)
}

func TestCreateTask_InvalidJSON(t *testing.T) {
	f := setupAPI(t)

	w := f.do(http.MethodPost, "/api/v1/tasks", "user-1", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestCreateTask_Validation(t *testing.T) {
	f := setupAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "unsupported task type",
			body: `{"task_type": "audio_to_video", "prompt": "x", "duration": 5}`,
		},
		{
			name: "missing prompt",
			body: `{"task_type": "text_to_video", "duration": 5}`,
		},
		{
			name: "unsupported duration",
			body: `{"task_type": "text_to_video", "prompt": "x", "duration": 7}`,
		},
		{
			name: "cfg_scale out of range",
			body: `{"task_type": "text_to_video", "prompt": "x", "duration": 5, "cfg_scale": 1.5}`,
		},
		{
			name: "unsupported aspect ratio",
			body: `{"task_type": "text_to_video", "prompt": "x", "duration": 5, "aspect_ratio": "cinema_21_9"}`,
		},
		{
			name: "image_url not a URL",
			body: `{"task_type": "image_to_video", "prompt": "x", "duration": 5, "image_url": "not-a-url"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/v1/tasks", "user-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "VALIDATION_ERROR", resp.Code)
		})
	}
}

func TestCreateTask_ImageURLRequiredForImageToVideo(t *testing.T) {
	f := setupAPI(t)

	w := f.do(http.MethodPost, "/api/v1/tasks", "user-1",
		`{"task_type": "image_to_video", "prompt": "a cat surfing", "duration": 5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nothing was persisted for the rejected request.
	_, total, err := f.repo.List(context.Background(), "user-1", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGetTask(t *testing.T) {
	f := setupAPI(t)
	taskID := f.createTask(t, "user-1")

	w := f.do(http.MethodGet, "/api/v1/tasks/"+taskID, "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, taskID, resp.TaskID)
	assert.Equal(t, "image_to_video", resp.TaskType)
	assert.Equal(t, "https://example.com/cat.jpg", resp.ThumbnailURL)
}

func TestGetTask_NotFound(t *testing.T) {
	f := setupAPI(t)

	w := f.do(http.MethodGet, "/api/v1/tasks/task-missing", "user-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTask_OtherOwner(t *testing.T) {
	f := setupAPI(t)
	taskID := f.createTask(t, "user-1")

	w := f.do(http.MethodGet, "/api/v1/tasks/"+taskID, "user-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "tasks must not leak across owners")
}

func TestListTasks(t *testing.T) {
	f := setupAPI(t)
	for i := 0; i < 12; i++ {
		f.createTask(t, "user-1")
	}
	f.createTask(t, "user-2")

	w := f.do(http.MethodGet, "/api/v1/tasks?page=1&limit=10", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListTasksResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Total)
	assert.Len(t, resp.Tasks, 10)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, 2, resp.TotalPages)
}

func TestListTasks_DefaultsAndCaps(t *testing.T) {
	f := setupAPI(t)
	f.createTask(t, "user-1")

	w := f.do(http.MethodGet, "/api/v1/tasks?page=bogus&limit=9999", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListTasksResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 100, resp.Limit)
}

func TestHandleWebhook_TopLevelShape(t *testing.T) {
	f := setupAPI(t)
	taskID := f.createTask(t, "user-1")
	f.waitForStatus(t, taskID, "user-1", task.StatusProcessing)

	w := f.do(http.MethodPost, "/api/v1/tasks/freepik_callback", "", `{
		"task_id": "job-abc",
		"status": "COMPLETED",
		"generated": ["https://cdn.freepik.com/tmp/v.mp4"]
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true}`, w.Body.String())

	got, err := f.repo.GetByID(context.Background(), taskID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusSuccess, got.Status)
	assert.Equal(t, "https://blob.example.com/videos/user-1/"+taskID+".mp4", got.VideoURL)
}

func TestHandleWebhook_NestedDataShape(t *testing.T) {
	f := setupAPI(t)
	taskID := f.createTask(t, "user-1")
	f.waitForStatus(t, taskID, "user-1", task.StatusProcessing)

	w := f.do(http.MethodPost, "/api/v1/tasks/freepik_callback", "", `{
		"data": {
			"task_id": "job-abc",
			"status": "FAILED",
			"error_message": "content policy violation"
		}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := f.repo.GetByID(context.Background(), taskID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, "content policy violation", got.ErrorMessage)
}

func TestHandleWebhook_UnknownJobAcknowledged(t *testing.T) {
	f := setupAPI(t)

	w := f.do(http.MethodPost, "/api/v1/tasks/freepik_callback", "",
		`{"task_id": "job-unknown", "status": "COMPLETED", "generated": ["https://x/v.mp4"]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true}`, w.Body.String())
}

func TestHandleWebhook_Malformed(t *testing.T) {
	f := setupAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"not JSON", `not json at all`},
		{"missing task_id", `{"status": "COMPLETED"}`},
		{"missing status", `{"task_id": "job-abc"}`},
		{"empty nested data", `{"data": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/v1/tasks/freepik_callback", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_WEBHOOK", resp.Code)
		})
	}
}

func TestWebhookPayload_Normalize(t *testing.T) {
	t.Run("lowercase status is canonicalized", func(t *testing.T) {
		p := webhookPayload{TaskID: "job-abc", Status: "completed"}
		ev, err := p.normalize()
		require.NoError(t, err)
		assert.Equal(t, freepik.StatusCompleted, ev.Status)
	})

	t.Run("top-level fields win over nested data", func(t *testing.T) {
		p := webhookPayload{
			TaskID: "job-outer",
			Status: "FAILED",
			Data:   &webhookPayload{TaskID: "job-inner", Status: "COMPLETED"},
		}
		ev, err := p.normalize()
		require.NoError(t, err)
		assert.Equal(t, "job-outer", ev.ProviderJobID)
		assert.Equal(t, freepik.StatusFailed, ev.Status)
	})

	t.Run("nested shape flattened", func(t *testing.T) {
		p := webhookPayload{
			Data: &webhookPayload{
				TaskID:    "job-abc",
				Status:    "COMPLETED",
				Generated: []string{"https://x/v.mp4"},
			},
		}
		ev, err := p.normalize()
		require.NoError(t, err)
		assert.Equal(t, "job-abc", ev.ProviderJobID)
		assert.Equal(t, []string{"https://x/v.mp4"}, ev.ResultURLs)
	})
}
