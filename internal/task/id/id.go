// Package id provides unique identifier generation for tasks.
package id

import (
	"github.com/google/uuid"
)

// Generate creates a new unique task ID.
// Format: task-<uuid>
// Example: task-1b4e28ba-2fa1-11d2-883f-0016d3cca427
func Generate() string {
	return "task-" + uuid.NewString()
}
