package observability

// Config groups the logging, metrics and tracing settings.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// LoggingConfig configures the process-wide log handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json, text
}

// DefaultConfig returns quiet defaults for a CLI run: text logs at info,
// metrics collected but not served, tracing off.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:        false,
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			ZipkinEndpoint: "http://localhost:9411/api/v2/spans",
			SampleRate:     1.0,
			ServiceName:    "deepseek-agents",
			ServiceVersion: "dev",
		},
	}
}
