package config

import (
	"time"

	"github.com/nimec77/deepseek-agents/internal/infra/observability"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceDotEnv   ValueSource = "dotenv"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

const (
	DefaultBaseURL              = "https://api.deepseek.com"
	DefaultProducerModel        = "deepseek-chat"
	DefaultAuditorModel         = "deepseek-reasoner"
	DefaultProducerTemperature  = 0.2
	DefaultAuditorTemperature   = 0.0
	DefaultMaxTokens            = 2048
	DefaultTimeout              = 60 * time.Second
	DefaultEvidencePromptTokens = 1024
	DefaultContextWindow        = 64000
	DefaultMaxAttempts          = 3
	DefaultBaseDelay            = 500 * time.Millisecond
	DefaultMaxDelay             = 8 * time.Second
	DefaultJitter               = 0.25
	DefaultOutDir               = "out"

	// DefaultConfigName is searched for in the working directory when no
	// explicit config file is given.
	DefaultConfigName = "deepseek-agents"
	DefaultDotEnvPath = ".env"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	APIKey               string               `mapstructure:"api_key" yaml:"api_key"`
	BaseURL              string               `mapstructure:"base_url" yaml:"base_url"`
	Producer             RoleConfig           `mapstructure:"producer" yaml:"producer"`
	Auditor              RoleConfig           `mapstructure:"auditor" yaml:"auditor"`
	MaxTokens            int                  `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout              time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	JSONMode             bool                 `mapstructure:"json_mode" yaml:"json_mode"`
	LenientJSON          bool                 `mapstructure:"lenient_json" yaml:"lenient_json"`
	EvidencePromptTokens int                  `mapstructure:"evidence_prompt_tokens" yaml:"evidence_prompt_tokens"`
	// ContextWindow bounds prompt plus max_tokens; 0 disables the check.
	ContextWindow        int                  `mapstructure:"context_window" yaml:"context_window"`
	ProxyMode            string               `mapstructure:"proxy_mode" yaml:"proxy_mode"` // auto, strict, direct
	Retry                RetryConfig          `mapstructure:"retry" yaml:"retry"`
	OutDir               string               `mapstructure:"out_dir" yaml:"out_dir"`
	Observability        observability.Config `mapstructure:"observability" yaml:"observability"`
}

// RoleConfig holds the per-agent model settings.
type RoleConfig struct {
	Model       string  `mapstructure:"model" yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// RetryConfig mirrors the client retry policy. MaxAttempts counts every
// attempt, the first one included.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Jitter      float64       `mapstructure:"jitter" yaml:"jitter"`
}

// Metadata contains provenance details for loaded configuration.
type Metadata struct {
	sources    map[string]ValueSource
	configFile string
	loadedAt   time.Time
}

// Source returns the origin for the given configuration key.
func (m Metadata) Source(key string) ValueSource {
	if src, ok := m.sources[key]; ok {
		return src
	}
	return SourceDefault
}

// ConfigFile returns the config file that was read, if any.
func (m Metadata) ConfigFile() string {
	return m.configFile
}

// LoadedAt returns the timestamp when the configuration was constructed.
func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}

// Overrides conveys caller-specified values that should win over env/file sources.
type Overrides struct {
	APIKey        *string
	BaseURL       *string
	ProducerModel *string
	AuditorModel  *string
	MaxTokens     *int
	Timeout       *time.Duration
	LenientJSON   *bool
	OutDir        *string
	LogLevel      *string
}
