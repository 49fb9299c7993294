package errors

import (
	"context"
	"errors"
)

// Kind classifies a pipeline failure for reporting.
type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindInvalidRequest  Kind = "invalid_request"
	KindTransport       Kind = "transport"
	KindHTTP            Kind = "http"
	KindRateLimited     Kind = "rate_limited"
	KindInvalidResponse Kind = "invalid_response"
	KindSchemaViolation Kind = "schema_violation"
	KindCancelled       Kind = "cancelled"
)

// Kinded is implemented by errors that carry a Kind.
type Kinded interface {
	ErrorKind() Kind
}

// KindOf returns the kind of the outermost Kinded error in the chain.
// Bare context cancellation maps to KindCancelled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage renders a short, human-readable explanation for a failure kind.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindInvalidRequest:
		return "Invalid request. Please check the configuration and task parameters."
	case KindTransport:
		return "Network connection failed. Please check your internet connection and try again."
	case KindHTTP:
		return "The API rejected the request. Please check your API key, model and parameters."
	case KindRateLimited:
		return "Rate limit exceeded. Please wait a moment before trying again."
	case KindInvalidResponse:
		return "Failed to parse server response. Please try again."
	case KindSchemaViolation:
		return "The model did not return valid structured output, even after a repair attempt."
	case KindCancelled:
		return "Request cancelled."
	default:
		return err.Error()
	}
}
