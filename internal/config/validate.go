package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/nimec77/deepseek-agents/internal/infra/httpclient"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) ErrorKind() dserrors.Kind { return dserrors.KindInvalidRequest }

// Validate checks the values a run depends on.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.APIKey == "" {
		add("api_key is required (set DEEPSEEK_API_KEY)")
	}
	if _, err := httpclient.ValidateBaseURL(c.BaseURL); err != nil {
		add("base_url: %v", err)
	}
	for name, role := range map[string]RoleConfig{"producer": c.Producer, "auditor": c.Auditor} {
		if role.Model == "" {
			add("%s.model is required", name)
		}
		if math.IsNaN(role.Temperature) || role.Temperature < 0 || role.Temperature > 2 {
			add("%s.temperature %v is outside [0,2]", name, role.Temperature)
		}
	}
	if c.MaxTokens <= 0 {
		add("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		add("timeout must be positive, got %s", c.Timeout)
	}
	if c.EvidencePromptTokens < 0 {
		add("evidence_prompt_tokens must not be negative")
	}
	if c.ContextWindow < 0 {
		add("context_window must not be negative")
	} else if c.ContextWindow > 0 && c.MaxTokens >= c.ContextWindow {
		add("max_tokens %d leaves no room for the prompt in context_window %d", c.MaxTokens, c.ContextWindow)
	}
	switch c.ProxyMode {
	case "", "auto", "strict", "direct", "none", "off":
	default:
		add("proxy_mode %q is not one of auto, strict, direct", c.ProxyMode)
	}
	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		add("retry delays must not be negative")
	} else if c.Retry.MaxDelay < c.Retry.BaseDelay {
		add("retry.max_delay %s is below retry.base_delay %s", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		add("retry.jitter %v is outside [0,1]", c.Retry.Jitter)
	}
	if c.OutDir == "" {
		add("out_dir is required")
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return &ValidationError{Problems: problems}
}

// RetryPolicy converts the retry settings for the LLM client.
func (c Config) RetryPolicy() dserrors.RetryConfig {
	return dserrors.RetryConfig{
		MaxAttempts:  c.Retry.MaxAttempts,
		BaseDelay:    c.Retry.BaseDelay,
		MaxDelay:     c.Retry.MaxDelay,
		JitterFactor: c.Retry.Jitter,
	}
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	c.APIKey = logging.SanitizeAPIKey(c.APIKey)
	return c
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
