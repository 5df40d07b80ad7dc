package models

// Config is the top-level application configuration, loaded from JSON with
// environment overrides for secrets and deployment-specific values.
type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Redis     RedisConfig     `json:"redis"`
	Database  DatabaseConfig  `json:"database"`
	RateLimit RateLimitConfig `json:"rateLimit"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Server    ServerConfig    `json:"server"`
	Tracing   TracingConfig   `json:"tracing"`
	LogLevel  string          `json:"logLevel"`
}

// GatewayConfig configures the external messaging-gateway client. The
// values are immutable once a client is constructed; there is no ambient
// global client state.
type GatewayConfig struct {
	APIBaseURL string `json:"apiBaseUrl"`
	APIKey     string `json:"apiKey"`
	TimeoutSec int    `json:"timeoutSec"`
}

// RedisConfig configures the atomic-counter store behind the rate limiter.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DatabaseConfig configures the audit store.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RateLimitConfig configures the per-recipient fixed-window quota.
type RateLimitConfig struct {
	PerRecipientPerHour int `json:"perRecipientPerHour"`
	WindowMinutes       int `json:"windowMinutes"`
}

// DispatchConfig configures outbound send behaviour.
type DispatchConfig struct {
	PacingDelayMs int `json:"pacingDelayMs"`
}

// ServerConfig configures the webhook ingress HTTP server.
type ServerConfig struct {
	Port          int    `json:"port"`
	WebhookSecret string `json:"webhookSecret"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"serviceName"`
	ServiceVersion string  `json:"serviceVersion"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlpEndpoint"`
	SampleRate     float64 `json:"sampleRate"`
	UseStdout      bool    `json:"useStdout"`
}

// ConfigError reports an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
