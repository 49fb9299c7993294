package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewRequestIDWithScope(t *testing.T) {
	requestID := NewRequestID("producer")
	if !strings.HasPrefix(requestID, "producer:llm-") {
		t.Fatalf("expected request id to embed scope, got %q", requestID)
	}

	fallback := NewRequestID(" ")
	if !strings.HasPrefix(fallback, "llm-") {
		t.Fatalf("expected request id to fall back to llm prefix, got %q", fallback)
	}
}

func TestNewSolutionIDIsUUIDv7(t *testing.T) {
	raw := NewSolutionID()
	parsed, err := uuid.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if NewSolutionID() == raw {
		t.Fatalf("expected unique identifiers")
	}
}
