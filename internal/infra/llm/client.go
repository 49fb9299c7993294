package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimec77/deepseek-agents/internal/infra/httpclient"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
	"github.com/nimec77/deepseek-agents/internal/shared/logging"
	id "github.com/nimec77/deepseek-agents/internal/shared/utils/id"
)

// DefaultBaseURL is the DeepSeek API root.
const DefaultBaseURL = "https://api.deepseek.com"

// SpanChatCompletion names the span wrapping one logical call, retries included.
const SpanChatCompletion = "llm.chat_completion"

// Metrics receives one observation per HTTP attempt.
type Metrics interface {
	RecordLLMRequest(ctx context.Context, model, status string, latency time.Duration, inputTokens, outputTokens int)
}

// Config wires a Client. Only APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	// JSONMode asks the endpoint for a JSON object response.
	JSONMode      bool
	Retry         dserrors.RetryConfig
	ResponseLimit int64
	HTTPClient    *http.Client
	Logger        logging.Logger
	Metrics       Metrics
}

// Client sends chat-completion requests. It keeps no state between calls
// beyond the pooled HTTP connections and is safe for concurrent use.
type Client struct {
	apiKey     string
	endpoint   string
	jsonMode   bool
	retry      dserrors.RetryConfig
	clock      dserrors.Clock
	limit      int64
	httpClient *http.Client
	logger     logging.Logger
	metrics    Metrics
	tracer     trace.Tracer
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ClientError{Kind: dserrors.KindInvalidRequest, Err: errors.New("api key is required")}
	}
	baseURL := cfg.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	baseURL, err := httpclient.ValidateBaseURL(baseURL)
	if err != nil {
		return nil, &ClientError{Kind: dserrors.KindInvalidRequest, Err: err}
	}

	logger := logging.OrNop(cfg.Logger)
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpclient.New(httpclient.Options{}, logger)
	}
	limit := cfg.ResponseLimit
	if limit == 0 {
		limit = httpclient.DefaultResponseLimit
	}
	clock := cfg.Retry.Clock
	if clock == nil {
		clock = dserrors.RealClock()
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   baseURL + "/chat/completions",
		jsonMode:   cfg.JSONMode,
		retry:      cfg.Retry,
		clock:      clock,
		limit:      limit,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer("github.com/nimec77/deepseek-agents/internal/infra/llm"),
	}, nil
}

// SendMessagesRaw sends messages and returns the raw text of the first choice.
// Every failure is a *ClientError.
func (c *Client) SendMessagesRaw(ctx context.Context, messages []Message, opts RequestOptions) (*RawCompletion, error) {
	if err := validateRequest(messages, opts); err != nil {
		return nil, &ClientError{Kind: dserrors.KindInvalidRequest, Err: err}
	}

	if opts.RequestID == "" {
		opts.RequestID = id.NewRequestID("")
	}
	prefix := fmt.Sprintf("[%s] ", opts.RequestID)

	payload := chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if c.jsonMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	body, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, &ClientError{Kind: dserrors.KindInvalidRequest, Err: fmt.Errorf("marshal request: %w", err)}
	}

	ctx, span := c.tracer.Start(ctx, SpanChatCompletion, trace.WithAttributes(
		attribute.String("llm.model", opts.Model),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	c.logger.Debug("%sPOST %s model=%s messages=%d key=%s", prefix, c.endpoint, opts.Model, len(messages), logging.SanitizeAPIKey(c.apiKey))

	retryCfg := c.retry
	retryCfg.Clock = c.clock
	retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("%sattempt %d failed: %v; retrying in %v", prefix, attempt, err, delay)
		if c.retry.OnRetry != nil {
			c.retry.OnRetry(attempt, delay, err)
		}
	}

	attempts := 0
	result, err := dserrors.RetryWithResultAndLog(ctx, retryCfg, func(ctx context.Context, attempt int) (*RawCompletion, error) {
		attempts = attempt
		return c.attempt(ctx, prefix, body, opts)
	}, c.logger)
	if err != nil {
		final := finalError(ctx, err, attempts)
		span.RecordError(final)
		span.SetStatus(codes.Error, string(final.Kind))
		c.logger.Debug("%srequest failed: %v", prefix, final)
		return nil, final
	}

	result.Attempts = attempts
	span.SetAttributes(
		attribute.Int("llm.attempts", attempts),
		attribute.Int("llm.input_tokens", result.Usage.PromptTokens),
		attribute.Int("llm.output_tokens", result.Usage.CompletionTokens),
	)
	c.logger.Debug("%scompleted in %d attempt(s): finish=%s content=%d chars tokens=%d/%d",
		prefix, attempts, result.FinishReason, len(result.Content), result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return result, nil
}

func validateRequest(messages []Message, opts RequestOptions) error {
	var errs []error
	if len(messages) == 0 {
		errs = append(errs, errors.New("messages must not be empty"))
	}
	if strings.TrimSpace(opts.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if opts.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", opts.MaxTokens))
	}
	if opts.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", opts.Timeout))
	}
	return errors.Join(errs...)
}

// attempt performs one HTTP exchange bounded by opts.Timeout.
func (c *Client) attempt(ctx context.Context, prefix string, body []byte, opts RequestOptions) (*RawCompletion, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &dserrors.PermanentError{Err: &ClientError{Kind: dserrors.KindInvalidRequest, Err: err}}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Request-ID", opts.RequestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.observe(ctx, opts.Model, start, nil, requestFailure(ctx, err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, c.limit)
	if err != nil {
		if httpclient.IsResponseTooLarge(err) {
			return nil, c.observe(ctx, opts.Model, start, nil, invalidResponse(nil, "read response: %w", err))
		}
		return nil, c.observe(ctx, opts.Model, start, nil, requestFailure(ctx, fmt.Errorf("read response: %w", err)))
	}
	c.logger.Debug("%sstatus %d, %d bytes in %v", prefix, resp.StatusCode, len(respBody), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("%serror body: %s", prefix, truncateBody(respBody))
		return nil, c.observe(ctx, opts.Model, start, nil, classifyStatus(resp, respBody, c.clock.Now()))
	}

	completion, err := decodeCompletion(respBody)
	if err != nil {
		return nil, c.observe(ctx, opts.Model, start, nil, err)
	}
	c.observe(ctx, opts.Model, start, &completion.Usage, nil)
	return completion, nil
}

// requestFailure separates caller cancellation, which is never retried, from
// transport failures including the per-attempt deadline.
func requestFailure(parent context.Context, err error) error {
	if ctxErr := parent.Err(); ctxErr != nil {
		return &dserrors.PermanentError{Err: &ClientError{Kind: dserrors.KindCancelled, Err: ctxErr}}
	}
	return transportError(err)
}

func decodeCompletion(body []byte) (*RawCompletion, error) {
	var parsed chatResponse
	if err := jsonx.Unmarshal(body, &parsed); err != nil {
		return nil, invalidResponse(body, "decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, invalidResponse(body, "no choices in response")
	}
	choice := parsed.Choices[0]
	if choice.Message == nil || choice.Message.Content == nil {
		return nil, invalidResponse(body, "first choice has no message content")
	}
	if parsed.Usage == nil || parsed.Usage.PromptTokens == nil || parsed.Usage.CompletionTokens == nil {
		return nil, invalidResponse(body, "usage counters missing")
	}
	if *parsed.Usage.PromptTokens < 0 || *parsed.Usage.CompletionTokens < 0 {
		return nil, invalidResponse(body, "usage counters are negative")
	}
	return &RawCompletion{
		Content:      *choice.Message.Content,
		Model:        parsed.Model,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     *parsed.Usage.PromptTokens,
			CompletionTokens: *parsed.Usage.CompletionTokens,
		},
	}, nil
}

// finalError collapses the retry loop's result into one ClientError.
func finalError(ctx context.Context, err error, attempts int) *ClientError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ClientError{Kind: dserrors.KindCancelled, Attempts: attempts, Err: ctxErr}
	}
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		out := *clientErr
		out.Attempts = attempts
		return &out
	}
	return &ClientError{Kind: dserrors.KindTransport, Attempts: attempts, Err: err}
}

func (c *Client) observe(ctx context.Context, model string, start time.Time, usage *Usage, err error) error {
	if c.metrics == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = string(dserrors.KindOf(err))
	}
	var in, out int
	if usage != nil {
		in, out = usage.PromptTokens, usage.CompletionTokens
	}
	c.metrics.RecordLLMRequest(ctx, model, status, time.Since(start), in, out)
	return err
}
