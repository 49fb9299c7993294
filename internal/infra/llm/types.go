// Package llm talks to an OpenAI-compatible chat-completions endpoint
// (DeepSeek by default). One call is one logical request; transient failures
// are retried inside the call with exponential backoff.
package llm

import "time"

// Chat roles understood by the endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestOptions are the per-call generation parameters.
type RequestOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout bounds each attempt, connect through full body read.
	Timeout time.Duration
	// RequestID is sent as X-Request-ID on every attempt and tags log
	// lines; generated when empty.
	RequestID string
}

// Usage holds the token counters reported by the API.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// RawCompletion is the first choice of a successful response.
type RawCompletion struct {
	Content      string
	Usage        Usage
	Model        string
	FinishReason string
	Attempts     int
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse uses pointers so absent fields are distinguishable from zero values.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     *int `json:"prompt_tokens"`
		CompletionTokens *int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
