// Package freepik provides an HTTP client for the Freepik Kling video
// generation API. Submission is asynchronous: the API acknowledges with a
// provider task id and delivers the result later through a webhook call to
// the URL attached to the request.
package freepik

// Status represents the status of a Freepik generation job as delivered
// in submission responses and webhook callbacks.
type Status string

// Freepik job statuses aligned with the Kling API.
const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SubmitRequest contains the parameters for submitting a generation job.
type SubmitRequest struct {
	// TaskType selects the endpoint and the type-specific payload fields.
	TaskType string
	// Prompt is the generation prompt.
	Prompt string
	// NegativePrompt steers the model away from unwanted content.
	NegativePrompt string
	// CFGScale is the guidance scale in [0, 1].
	CFGScale float64
	// DurationSeconds is the requested clip length (5 or 10).
	DurationSeconds int
	// ImageURL is the source image for image-to-video jobs.
	ImageURL string
	// StaticMaskURL marks regions of the source image to keep static.
	StaticMaskURL string
	// AspectRatio is the output aspect ratio for text-to-video jobs.
	AspectRatio string
	// WebhookURL is where Freepik delivers the completion callback.
	WebhookURL string
}

// submitPayload is the wire format of a Kling submission. The API requires
// the duration as a string.
type submitPayload struct {
	Duration       string  `json:"duration"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	CFGScale       float64 `json:"cfg_scale"`
	WebhookURL     string  `json:"webhook_url,omitempty"`
	Image          string  `json:"image,omitempty"`
	StaticMask     string  `json:"static_mask,omitempty"`
	AspectRatio    string  `json:"aspect_ratio,omitempty"`
}

// submitResponse is the acknowledgment envelope returned by the API.
type submitResponse struct {
	Data struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}
