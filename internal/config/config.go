// Package config loads service settings from the environment.
//
// Every variable carries the CALCULATOR_ prefix, e.g. CALCULATOR_SERVER_PORT,
// CALCULATOR_REDIS_ADDR, CALCULATOR_KAFKA_BROKERS.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"calculator-api/internal/cache"
	"calculator-api/internal/events"
)

const AppName = "CALCULATOR"

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Addr returns "host:port".
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// GrpcConfig holds gRPC server settings.
type GrpcConfig struct {
	Enabled bool   `envconfig:"ENABLED" default:"false"`
	Host    string `envconfig:"HOST" default:"0.0.0.0"`
	Port    string `envconfig:"PORT" default:"9090"`
}

// Addr returns "host:port".
func (c GrpcConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// CalculatorConfig selects how operation names are matched.
type CalculatorConfig struct {
	CaseInsensitive bool `envconfig:"CASE_INSENSITIVE" default:"true"`
	Symbols         bool `envconfig:"SYMBOLS" default:"true"`
}

// RateLimitConfig configures the per-client limiter on calculation routes.
type RateLimitConfig struct {
	Enabled bool          `envconfig:"ENABLED" default:"false"`
	RPS     float64       `envconfig:"RPS" default:"30"`
	Burst   int           `envconfig:"BURST" default:"60"`
	IdleTTL time.Duration `envconfig:"IDLE_TTL" default:"10m"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

// TelemetryConfig toggles OTLP export. Endpoints come from the standard
// OTEL_EXPORTER_OTLP_* variables.
type TelemetryConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"false"`
}

// Config is the full service configuration.
type Config struct {
	Env        string           `envconfig:"ENV" default:"production"`
	Version    string           `envconfig:"VERSION" default:"1.0.0"`
	LogLevel   string           `envconfig:"LOG_LEVEL" default:"info"`
	Server     ServerConfig     `envconfig:"SERVER"`
	Grpc       GrpcConfig       `envconfig:"GRPC"`
	Calculator CalculatorConfig `envconfig:"CALCULATOR"`
	RateLimit  RateLimitConfig  `envconfig:"RATELIMIT"`
	CORS       CORSConfig       `envconfig:"CORS"`
	Telemetry  TelemetryConfig  `envconfig:"TELEMETRY"`
	Redis      cache.Config     `envconfig:"REDIS"`
	Kafka      events.Config    `envconfig:"KAFKA"`
}

// Load fills Config from the environment. Call LoadDotEnv beforehand to pick up
// a local .env file.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(AppName, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would only fail later at runtime.
func (c Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is empty")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit needs positive rps and burst, got rps=%g burst=%d", c.RateLimit.RPS, c.RateLimit.Burst)
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is empty")
	}
	return nil
}
