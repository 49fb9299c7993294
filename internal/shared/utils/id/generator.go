package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewTaskID generates a task identifier (UUIDv7, time-ordered).
func NewTaskID() string {
	return newUUID()
}

// NewSolutionID generates a solution identifier (UUIDv7, time-ordered).
func NewSolutionID() string {
	return newUUID()
}

// NewRequestID returns an identifier for a single LLM request, used to
// correlate log lines. When scope is non-empty it is embedded as a prefix.
func NewRequestID(scope string) string {
	body := "llm-" + strings.ReplaceAll(newUUID(), "-", "")[:12]
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return body
	}
	return fmt.Sprintf("%s:%s", scope, body)
}

func newUUID() string {
	if v7, err := uuid.NewV7(); err == nil {
		return v7.String()
	}
	return uuid.NewString()
}
