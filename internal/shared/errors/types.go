package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// TransientError represents an error that can be retried
type TransientError struct {
	Err        error
	StatusCode int           // HTTP status code if applicable
	RetryAfter time.Duration // Server-provided hint (Retry-After header)
	Message    string        // User-facing message
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents an error that should not be retried
type PermanentError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	Message    string // User-facing message
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as retryable.
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError marks err as not retryable.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// IsTransient checks if an error is retry-able
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Caller cancellation is never retried.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var permanentErr *PermanentError
	var transientErr *TransientError
	switch {
	case errors.As(err, &transientErr) && errors.As(err, &permanentErr):
		// Outermost marker wins.
		return isOuterTransient(err)
	case errors.As(err, &transientErr):
		return true
	case errors.As(err, &permanentErr):
		return false
	}

	if isNetworkError(err) {
		return true
	}

	return isSyscallError(err)
}

// RetryAfterHint returns the server-provided retry delay carried by err, if any.
func RetryAfterHint(err error) time.Duration {
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return transientErr.RetryAfter
	}
	return 0
}

// IsTransientHTTPStatus reports whether a response status should be retried.
func IsTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

func isOuterTransient(err error) bool {
	for current := err; current != nil; current = errors.Unwrap(current) {
		switch current.(type) {
		case *TransientError:
			return true
		case *PermanentError:
			return false
		}
	}
	return false
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}
