package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nimec77/deepseek-agents/internal/infra/observability"
)

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup   EnvLookup
	configPath  string
	searchPaths []string
	dotEnvPath  string
	overrides   Overrides
}

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithConfigPath forces the loader to read configuration from a specific
// file. A missing file is an error.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithSearchPaths sets the directories searched for the default config
// file. No paths disables the search.
func WithSearchPaths(paths ...string) Option {
	return func(o *loadOptions) {
		o.searchPaths = paths
	}
}

// WithDotEnv reads fallback environment values from path. An empty path
// disables .env loading; a missing file is ignored.
func WithDotEnv(path string) Option {
	return func(o *loadOptions) {
		o.dotEnvPath = path
	}
}

// WithOverrides applies caller overrides that take highest precedence.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}

// Load resolves the configuration. Precedence, lowest first: defaults,
// config file, .env file, process environment, overrides.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envLookup:   DefaultEnvLookup,
		searchPaths: []string{"."},
		dotEnvPath:  DefaultDotEnvPath,
	}
	for _, opt := range opts {
		opt(&options)
	}

	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}
	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, options); err != nil {
		return Config{}, Metadata{}, err
	}
	meta.configFile = v.ConfigFileUsed()
	for _, key := range v.AllKeys() {
		if v.InConfig(key) {
			meta.sources[key] = SourceFile
		}
	}

	dotenv, err := readDotEnv(options.dotEnvPath)
	if err != nil {
		return Config{}, Metadata{}, err
	}
	aliases := DefaultEnvAliases()
	processEnv := AliasEnvLookup(options.envLookup, aliases)
	dotenvEnv := AliasEnvLookup(MapEnvLookup(dotenv), aliases)
	for key, name := range envBindings {
		if value, ok := processEnv(name); ok {
			v.Set(key, envValue(key, value))
			meta.sources[key] = SourceEnv
		} else if value, ok := dotenvEnv(name); ok {
			v.Set(key, envValue(key, value))
			meta.sources[key] = SourceDotEnv
		}
	}

	applyOverrides(v, &meta, options.overrides)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("decode config: %w", err)
	}
	normalizeConfig(&cfg)
	return cfg, meta, nil
}

func readConfigFile(v *viper.Viper, options loadOptions) error {
	if path := strings.TrimSpace(options.configPath); path != "" {
		path = os.ExpandEnv(path)
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	if len(options.searchPaths) == 0 {
		return nil
	}
	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	for _, dir := range options.searchPaths {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	d := viper.New()
	d.SetConfigFile(path)
	d.SetConfigType("env")
	if err := d.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	values := make(map[string]string, len(d.AllKeys()))
	for _, key := range d.AllKeys() {
		values[strings.ToUpper(key)] = d.GetString(key)
	}
	return values, nil
}

// envValue reads a bare integer as seconds for duration keys.
func envValue(key, value string) string {
	value = strings.TrimSpace(value)
	if durationKeys[key] {
		if _, err := strconv.Atoi(value); err == nil {
			return value + "s"
		}
	}
	return value
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("producer.model", DefaultProducerModel)
	v.SetDefault("producer.temperature", DefaultProducerTemperature)
	v.SetDefault("auditor.model", DefaultAuditorModel)
	v.SetDefault("auditor.temperature", DefaultAuditorTemperature)
	v.SetDefault("max_tokens", DefaultMaxTokens)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("json_mode", true)
	v.SetDefault("lenient_json", false)
	v.SetDefault("evidence_prompt_tokens", DefaultEvidencePromptTokens)
	v.SetDefault("context_window", DefaultContextWindow)
	v.SetDefault("proxy_mode", "auto")
	v.SetDefault("retry.max_attempts", DefaultMaxAttempts)
	v.SetDefault("retry.base_delay", DefaultBaseDelay)
	v.SetDefault("retry.max_delay", DefaultMaxDelay)
	v.SetDefault("retry.jitter", DefaultJitter)
	v.SetDefault("out_dir", DefaultOutDir)

	obs := observability.DefaultConfig()
	v.SetDefault("observability.logging.level", obs.Logging.Level)
	v.SetDefault("observability.logging.format", obs.Logging.Format)
	v.SetDefault("observability.metrics.enabled", obs.Metrics.Enabled)
	v.SetDefault("observability.metrics.prometheus_port", obs.Metrics.PrometheusPort)
	v.SetDefault("observability.tracing.enabled", obs.Tracing.Enabled)
	v.SetDefault("observability.tracing.exporter", obs.Tracing.Exporter)
	v.SetDefault("observability.tracing.otlp_endpoint", obs.Tracing.OTLPEndpoint)
	v.SetDefault("observability.tracing.zipkin_endpoint", obs.Tracing.ZipkinEndpoint)
	v.SetDefault("observability.tracing.sample_rate", obs.Tracing.SampleRate)
	v.SetDefault("observability.tracing.service_name", obs.Tracing.ServiceName)
	v.SetDefault("observability.tracing.service_version", obs.Tracing.ServiceVersion)
}

func applyOverrides(v *viper.Viper, meta *Metadata, overrides Overrides) {
	set := func(key string, value any) {
		v.Set(key, value)
		meta.sources[key] = SourceOverride
	}
	if overrides.APIKey != nil {
		set("api_key", *overrides.APIKey)
	}
	if overrides.BaseURL != nil {
		set("base_url", *overrides.BaseURL)
	}
	if overrides.ProducerModel != nil {
		set("producer.model", *overrides.ProducerModel)
	}
	if overrides.AuditorModel != nil {
		set("auditor.model", *overrides.AuditorModel)
	}
	if overrides.MaxTokens != nil {
		set("max_tokens", *overrides.MaxTokens)
	}
	if overrides.Timeout != nil {
		set("timeout", *overrides.Timeout)
	}
	if overrides.LenientJSON != nil {
		set("lenient_json", *overrides.LenientJSON)
	}
	if overrides.OutDir != nil {
		set("out_dir", *overrides.OutDir)
	}
	if overrides.LogLevel != nil {
		set("observability.logging.level", *overrides.LogLevel)
	}
}

func normalizeConfig(cfg *Config) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Producer.Model = strings.TrimSpace(cfg.Producer.Model)
	cfg.Auditor.Model = strings.TrimSpace(cfg.Auditor.Model)
	cfg.ProxyMode = strings.ToLower(strings.TrimSpace(cfg.ProxyMode))
	cfg.OutDir = strings.TrimSpace(cfg.OutDir)
	cfg.Observability.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Observability.Logging.Level))
	cfg.Observability.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Observability.Logging.Format))
}
