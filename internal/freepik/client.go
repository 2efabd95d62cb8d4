package freepik

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Static errors for Freepik client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("freepik: FREEPIK_API_KEY environment variable is not set")
	// ErrInvalidTaskType is returned for a task type the API does not support.
	ErrInvalidTaskType = errors.New("freepik: invalid task type")
	// ErrNoTaskIDReturned is returned when the submit response contains no task ID.
	ErrNoTaskIDReturned = errors.New("freepik: submit failed: no task ID returned")
	// ErrSubmitFailed is returned when the submit operation fails.
	ErrSubmitFailed = errors.New("freepik: submit failed")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("freepik: request failed")
)

// Client defines the interface for interacting with the Freepik API.
type Client interface {
	// Submit sends a generation job to Freepik and returns the provider
	// task ID. The result is delivered later via webhook; Submit only
	// acknowledges acceptance.
	Submit(ctx context.Context, req SubmitRequest) (providerJobID string, err error)
}

// HTTPClient is the HTTP implementation of the Freepik Client interface.
//
// Submission is a single attempt with a bounded timeout and is never
// retried: a rejected or unreachable submission is recorded as a task
// failure rather than silently retried against a paid API.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithBaseURL sets a custom base URL for the Freepik API.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// NewClient creates a new Freepik HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable FREEPIK_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://api.freepik.com/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("FREEPIK_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Submit sends a generation job to Freepik and returns the provider task ID.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	url, err := c.endpointFor(req.TaskType)
	if err != nil {
		return "", err
	}

	payload := submitPayload{
		Duration:       strconv.Itoa(req.DurationSeconds),
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		CFGScale:       req.CFGScale,
		WebhookURL:     req.WebhookURL,
	}
	switch req.TaskType {
	case "image_to_video":
		payload.Image = req.ImageURL
		payload.StaticMask = req.StaticMaskURL
	case "text_to_video":
		payload.AspectRatio = req.AspectRatio
		if payload.AspectRatio == "" {
			payload.AspectRatio = "widescreen_16_9"
		}
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("freepik: marshal request: %w", err)
	}

	var resp submitResponse
	if err := c.doRequest(ctx, url, bodyBytes, &resp); err != nil {
		return "", err
	}

	if resp.Data.TaskID == "" {
		if resp.Message != "" {
			return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Message)
		}
		return "", ErrNoTaskIDReturned
	}

	return resp.Data.TaskID, nil
}

// endpointFor maps the task type to its Kling endpoint.
func (c *HTTPClient) endpointFor(taskType string) (string, error) {
	switch taskType {
	case "image_to_video":
		return c.baseURL + "/ai/image-to-video/kling-v2-1-master", nil
	case "text_to_video":
		return c.baseURL + "/ai/text-to-video/kling-v2-1-master", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTaskType, taskType)
	}
}

// doRequest performs a single POST request and decodes the JSON response.
func (c *HTTPClient) doRequest(ctx context.Context, url string, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("freepik: create request: %w", err)
	}

	req.Header.Set("x-freepik-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("freepik: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("freepik: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("freepik: unmarshal response: %w", err)
		}
	}

	return nil
}
