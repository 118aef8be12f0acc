// Package config loads envgate's runtime configuration from a JSON5 or YAML
// file, environment variables and .env files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when neither --config nor ENVGATE_CONFIG is set.
const DefaultPath = "envgate.json5"

// Config is the root configuration.
type Config struct {
	// Environment is the environment hosted when init names none.
	Environment string `json:"environment" yaml:"environment"`
	// EnvConfigs holds per-environment default options, used when init
	// carries a null envConfigs.
	EnvConfigs map[string]map[string]any `json:"envConfigs,omitempty" yaml:"envConfigs,omitempty"`
	Gateway    GatewayConfig             `json:"gateway" yaml:"gateway"`
	Log        LogConfig                 `json:"log" yaml:"log"`
	Telemetry  TelemetryConfig           `json:"telemetry" yaml:"telemetry"`
}

// GatewayConfig bounds the request stream.
type GatewayConfig struct {
	MaxLineBytes int             `json:"maxLineBytes" yaml:"maxLineBytes"`
	RateLimit    RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`
}

// RateLimitConfig is a token bucket; PerSecond 0 disables it.
type RateLimitConfig struct {
	PerSecond float64 `json:"perSecond" yaml:"perSecond"`
	Burst     int     `json:"burst" yaml:"burst"`
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	Level   string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format  string `json:"format" yaml:"format"` // text, json
	NoColor bool   `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// TelemetryConfig configures OTLP trace export (otel builds only).
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled" yaml:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty" yaml:"protocol,omitempty"` // grpc, http
	Insecure    bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName string            `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// SampleRatio is the fraction of spans kept; 0 keeps every span.
	SampleRatio float64 `json:"sampleRatio,omitempty" yaml:"sampleRatio,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: "rps",
		Gateway: GatewayConfig{
			MaxLineBytes: 1 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "envgate",
		},
	}
}

// Load reads the config file at path over the defaults. A missing file is
// not an error. Files ending in .yaml or .yml are YAML; anything else is
// JSON5.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json5.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Environment = NormalizeEnvName(cfg.Environment)
	return cfg, nil
}

// LoadDotEnv loads the first existing .env file among paths into the process
// environment. Variables already set are kept.
func LoadDotEnv(paths ...string) string {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// ApplyEnv overrides fields from ENVGATE_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("ENVGATE_ENV", &c.Environment)
	str("ENVGATE_LOG_LEVEL", &c.Log.Level)
	str("ENVGATE_LOG_FORMAT", &c.Log.Format)
	flag("ENVGATE_LOG_NO_COLOR", &c.Log.NoColor)
	num("ENVGATE_MAX_LINE_BYTES", &c.Gateway.MaxLineBytes)
	num("ENVGATE_RATE_BURST", &c.Gateway.RateLimit.Burst)
	if v, ok := os.LookupEnv("ENVGATE_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("ENVGATE_RATE_LIMIT: %w", err))
		} else {
			c.Gateway.RateLimit.PerSecond = f
		}
	}
	flag("ENVGATE_OTEL_ENABLED", &c.Telemetry.Enabled)
	str("ENVGATE_OTEL_ENDPOINT", &c.Telemetry.Endpoint)
	str("ENVGATE_OTEL_PROTOCOL", &c.Telemetry.Protocol)
	flag("ENVGATE_OTEL_INSECURE", &c.Telemetry.Insecure)
	str("ENVGATE_OTEL_SERVICE_NAME", &c.Telemetry.ServiceName)

	c.Environment = NormalizeEnvName(c.Environment)
	return errors.Join(errs...)
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment == "" {
		errs = append(errs, errors.New("environment is required"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Gateway.MaxLineBytes < 0 {
		errs = append(errs, fmt.Errorf("gateway.maxLineBytes must not be negative, got %d", c.Gateway.MaxLineBytes))
	}
	if c.Gateway.RateLimit.PerSecond < 0 || c.Gateway.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("gateway.rateLimit values must not be negative"))
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		switch c.Telemetry.Protocol {
		case "", "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol))
		}
		if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sampleRatio must be within [0, 1], got %g", c.Telemetry.SampleRatio))
		}
	}
	return errors.Join(errs...)
}

// EnvDefaults returns the configured options for the named environment as
// raw JSON, or nil when there are none.
func (c *Config) EnvDefaults(name string) (json.RawMessage, error) {
	opts, ok := c.EnvConfigs[name]
	if !ok {
		return nil, nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode envConfigs.%s: %w", name, err)
	}
	return data, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
}
