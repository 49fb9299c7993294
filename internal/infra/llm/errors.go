package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
)

const maxErrorBodyBytes = 2048

// ClientError is the single error type returned by Client.SendMessagesRaw.
type ClientError struct {
	Kind       dserrors.Kind
	StatusCode int
	// Body is a prefix of the response body for http and invalid_response failures.
	Body     string
	Attempts int
	Err      error
}

func (e *ClientError) Error() string {
	var b strings.Builder
	b.WriteString("llm ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ClientError) Unwrap() error { return e.Err }

func (e *ClientError) ErrorKind() dserrors.Kind { return e.Kind }

// classifyStatus maps a non-2xx response to an attempt error. Retryable
// statuses come back wrapped in a TransientError carrying any Retry-After hint.
func classifyStatus(resp *http.Response, body []byte, now time.Time) error {
	kind := dserrors.KindHTTP
	if resp.StatusCode == http.StatusTooManyRequests {
		kind = dserrors.KindRateLimited
	}
	clientErr := &ClientError{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Body:       truncateBody(body),
		Err:        errors.New(apiErrorMessage(resp.StatusCode, body)),
	}
	if !dserrors.IsTransientHTTPStatus(resp.StatusCode) {
		return &dserrors.PermanentError{Err: clientErr, StatusCode: resp.StatusCode}
	}
	return &dserrors.TransientError{
		Err:        clientErr,
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), now),
	}
}

func apiErrorMessage(status int, body []byte) string {
	var parsed apiErrorBody
	if err := jsonx.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		if parsed.Error.Type != "" {
			return fmt.Sprintf("%s: %s", parsed.Error.Type, parsed.Error.Message)
		}
		return parsed.Error.Message
	}
	return fmt.Sprintf("unexpected status %d %s", status, http.StatusText(status))
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func invalidResponse(body []byte, format string, args ...any) error {
	return &dserrors.PermanentError{Err: &ClientError{
		Kind: dserrors.KindInvalidResponse,
		Body: truncateBody(body),
		Err:  fmt.Errorf(format, args...),
	}}
}

func transportError(err error) error {
	return &dserrors.TransientError{Err: &ClientError{Kind: dserrors.KindTransport, Err: err}}
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		return string(body[:maxErrorBodyBytes]) + "..."
	}
	return string(body)
}
