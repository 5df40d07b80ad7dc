package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/smartflowafrica/smartflow-sub001/internal/constants"
	"github.com/smartflowafrica/smartflow-sub001/internal/models"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing gateway API base URL"}
	ErrMissingGatewayKey = models.ConfigError{Message: "missing gateway API key"}
	ErrMissingRedisAddr  = models.ConfigError{Message: "missing redis address"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON config file, applies defaults, then applies
// environment overrides. Secrets (gateway API key, webhook secret, redis
// password) are usually supplied through the environment rather than the
// file.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(c *models.Config) {
	if c.Gateway.TimeoutSec <= 0 {
		c.Gateway.TimeoutSec = constants.DefaultGatewayTimeoutSec
	}
	if c.RateLimit.PerRecipientPerHour <= 0 {
		c.RateLimit.PerRecipientPerHour = constants.DefaultRateLimitPerHour
	}
	if c.RateLimit.WindowMinutes <= 0 {
		c.RateLimit.WindowMinutes = constants.DefaultRateLimitWindowMin
	}
	if c.Dispatch.PacingDelayMs <= 0 {
		c.Dispatch.PacingDelayMs = constants.DefaultDispatchPacingMs
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "smartflow"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("GATEWAY_API_URL"); url != "" {
		c.Gateway.APIBaseURL = url
	}
	if key := os.Getenv("GATEWAY_API_KEY"); key != "" {
		c.Gateway.APIKey = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.Redis.DB = n
		}
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if secret := os.Getenv("SMARTFLOW_WEBHOOK_SECRET"); secret != "" {
		c.Server.WebhookSecret = secret
	}
	if port := os.Getenv("SMARTFLOW_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.Port = n
		}
	}
	if level := os.Getenv("SMARTFLOW_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Tracing.OTLPEndpoint = endpoint
	}
}

func validate(c *models.Config) error {
	if c.Gateway.APIBaseURL == "" {
		return ErrMissingGatewayURL
	}
	if c.Gateway.APIKey == "" {
		return ErrMissingGatewayKey
	}
	if c.Redis.Addr == "" {
		return ErrMissingRedisAddr
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	isProduction := os.Getenv("SMARTFLOW_ENV") == "production"
	if isProduction {
		if c.Server.WebhookSecret == "" {
			return models.ConfigError{Message: "webhook secret is required in production (set SMARTFLOW_WEBHOOK_SECRET)"}
		}
		if len(c.Server.WebhookSecret) < 32 {
			return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production"}
		}
	} else if c.Server.WebhookSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set SMARTFLOW_WEBHOOK_SECRET to authenticate gateway callbacks.\n")
	}

	return nil
}
