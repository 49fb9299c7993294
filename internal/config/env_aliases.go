package config

import "os"

// envBindings maps configuration keys to their canonical environment
// variable.
var envBindings = map[string]string{
	"api_key":                               "DEEPSEEK_API_KEY",
	"base_url":                              "DEEPSEEK_BASE_URL",
	"producer.model":                        "DEEPSEEK_PRODUCER_MODEL",
	"producer.temperature":                  "DEEPSEEK_PRODUCER_TEMPERATURE",
	"auditor.model":                         "DEEPSEEK_AUDITOR_MODEL",
	"auditor.temperature":                   "DEEPSEEK_AUDITOR_TEMPERATURE",
	"max_tokens":                            "DEEPSEEK_MAX_TOKENS",
	"timeout":                               "DEEPSEEK_TIMEOUT",
	"json_mode":                             "DEEPSEEK_JSON_MODE",
	"lenient_json":                          "DEEPSEEK_LENIENT_JSON",
	"evidence_prompt_tokens":                "DEEPSEEK_EVIDENCE_PROMPT_TOKENS",
	"context_window":                        "DEEPSEEK_CONTEXT_WINDOW",
	"proxy_mode":                            "DEEPSEEK_PROXY_MODE",
	"retry.max_attempts":                    "DEEPSEEK_RETRY_MAX_ATTEMPTS",
	"retry.base_delay":                      "DEEPSEEK_RETRY_BASE_DELAY",
	"retry.max_delay":                       "DEEPSEEK_RETRY_MAX_DELAY",
	"retry.jitter":                          "DEEPSEEK_RETRY_JITTER",
	"out_dir":                               "DEEPSEEK_OUT_DIR",
	"observability.logging.level":           "DEEPSEEK_LOG_LEVEL",
	"observability.logging.format":          "DEEPSEEK_LOG_FORMAT",
	"observability.metrics.enabled":         "DEEPSEEK_METRICS_ENABLED",
	"observability.metrics.prometheus_port": "DEEPSEEK_METRICS_PORT",
	"observability.tracing.enabled":         "DEEPSEEK_TRACING_ENABLED",
	"observability.tracing.exporter":        "DEEPSEEK_TRACING_EXPORTER",
}

// durationKeys accept a bare integer, read as seconds.
var durationKeys = map[string]bool{
	"timeout":          true,
	"retry.base_delay": true,
	"retry.max_delay":  true,
}

// DefaultEnvAliases returns the alternative names accepted for canonical
// environment variables.
func DefaultEnvAliases() map[string][]string {
	aliases := map[string][]string{
		"DEEPSEEK_PRODUCER_MODEL":       {"DEEPSEEK_MODEL"},
		"DEEPSEEK_PRODUCER_TEMPERATURE": {"DEEPSEEK_TEMPERATURE"},
		"DEEPSEEK_LOG_LEVEL":            {"LOG_LEVEL"},
	}

	out := make(map[string][]string, len(aliases))
	for key, list := range aliases {
		out[key] = append([]string(nil), list...)
	}
	return out
}

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// AliasEnvLookup wraps an EnvLookup with additional alias keys.
func AliasEnvLookup(base EnvLookup, aliases map[string][]string) EnvLookup {
	return func(key string) (string, bool) {
		if base == nil {
			base = DefaultEnvLookup
		}
		if value, ok := base(key); ok && value != "" {
			return value, true
		}
		if list, ok := aliases[key]; ok {
			for _, alias := range list {
				if value, ok := base(alias); ok && value != "" {
					return value, true
				}
			}
		}
		return "", false
	}
}

// MapEnvLookup resolves variables from a fixed map.
func MapEnvLookup(env map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}
