package task

import (
	"testing"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		taskType Type
		valid    bool
	}{
		{TypeImageToVideo, true},
		{TypeTextToVideo, true},
		{Type("audio_to_video"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			if got := tt.taskType.IsValid(); got != tt.valid {
				t.Errorf("Type(%q).IsValid() = %v, want %v", tt.taskType, got, tt.valid)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusSuccess, true},
		{StatusFailed, true},
		{Status("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to success", StatusPending, StatusSuccess, false},
		{"processing to success", StatusProcessing, StatusSuccess, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"success to failed", StatusSuccess, StatusFailed, false},
		{"failed to processing", StatusFailed, StatusProcessing, false},
		{"failed to success", StatusFailed, StatusSuccess, false},
		{"unknown from state", Status("unknown"), StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("canTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestTask_Clone(t *testing.T) {
	original := &Task{
		TaskID:   "task-1",
		OwnerID:  "user-1",
		TaskType: TypeImageToVideo,
		Status:   StatusProcessing,
		Prompt:   "a cat surfing",
	}

	clone := original.Clone()
	clone.Status = StatusSuccess
	clone.VideoURL = "https://cdn.example.com/v.mp4"

	if original.Status != StatusProcessing {
		t.Errorf("mutating clone changed original status to %q", original.Status)
	}
	if original.VideoURL != "" {
		t.Error("mutating clone changed original video URL")
	}
}
