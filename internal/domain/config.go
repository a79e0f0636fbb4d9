package domain

import "time"

// Config holds the complete Kestrel configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Artifacts  ArtifactConfig   `json:"artifacts"`
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Notify     NotifyConfig     `json:"notify"`
	Logging    LoggingConfig    `json:"logging"`
	Tracing    TracingConfig    `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ArtifactConfig points at the model artifact bundle.
type ArtifactConfig struct {
	// Dir contains classifier.json, scaler.json and encoders.json.
	Dir string `json:"dir"`

	// TriagePath optionally points at a JSON file of triage flag rules.
	TriagePath string `json:"triagePath"`
}

// NotifyConfig holds alert webhook settings.
type NotifyConfig struct {
	// WebhookURL receives alert payloads; empty disables delivery.
	WebhookURL string `json:"webhookUrl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// DefaultConfig returns the default single-node configuration:
// SQLite storage, in-process cache and channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Artifacts: ArtifactConfig{
			Dir: "./model",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}
