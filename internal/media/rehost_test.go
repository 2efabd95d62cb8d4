package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidforge/vidforge-api/internal/storage"
)

// uploadRecorder wraps LocalStorage with a controllable Upload so tests can
// exercise both pipeline outcomes without an object store.
type uploadRecorder struct {
	*storage.LocalStorage
	uploadErr error
	key       string
	body      []byte
}

func (u *uploadRecorder) Upload(_ context.Context, key, _ string, data io.Reader) (string, error) {
	if u.uploadErr != nil {
		return "", u.uploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	u.key = key
	u.body = b
	return "https://blob.example.com/" + key, nil
}

func setupRehoster(t *testing.T) (*HTTPRehoster, *uploadRecorder) {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := &uploadRecorder{LocalStorage: local}
	return NewHTTPRehoster(store, nil), store
}

// tempFileCount counts staged files left in the transient directory.
func tempFileCount(t *testing.T, store *uploadRecorder) int {
	t.Helper()
	entries, err := os.ReadDir(store.TempDir())
	require.NoError(t, err)
	return len(entries)
}

func TestHTTPRehoster_Rehost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake mp4 bytes"))
	}))
	defer srv.Close()

	r, store := setupRehoster(t)

	url, err := r.Rehost(context.Background(), srv.URL, "user-1", "task-1")
	require.NoError(t, err)
	assert.Equal(t, "https://blob.example.com/videos/user-1/task-1.mp4", url)
	assert.Equal(t, "videos/user-1/task-1.mp4", store.key)
	assert.Equal(t, []byte("fake mp4 bytes"), store.body)
	assert.Zero(t, tempFileCount(t, store), "transient file not removed after success")
}

func TestHTTPRehoster_Rehost_DownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r, store := setupRehoster(t)

	_, err := r.Rehost(context.Background(), srv.URL, "user-1", "task-1")
	assert.ErrorIs(t, err, ErrDownload)
	assert.Zero(t, tempFileCount(t, store))
}

func TestHTTPRehoster_Rehost_EmptyDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, store := setupRehoster(t)

	_, err := r.Rehost(context.Background(), srv.URL, "user-1", "task-1")
	assert.ErrorIs(t, err, ErrDownload)
	assert.Zero(t, tempFileCount(t, store), "transient file not removed after empty download")
}

func TestHTTPRehoster_Rehost_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake mp4 bytes"))
	}))
	defer srv.Close()

	r, store := setupRehoster(t)
	store.uploadErr = errors.New("bucket unavailable")

	_, err := r.Rehost(context.Background(), srv.URL, "user-1", "task-1")
	assert.ErrorIs(t, err, ErrStore)
	assert.Zero(t, tempFileCount(t, store), "transient file not removed after upload failure")
}

func TestHTTPRehoster_Rehost_UnreachableHost(t *testing.T) {
	r, _ := setupRehoster(t)

	_, err := r.Rehost(context.Background(), "http://127.0.0.1:1/video.mp4", "user-1", "task-1")
	assert.ErrorIs(t, err, ErrDownload)
}
