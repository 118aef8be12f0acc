package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_JSON5(t *testing.T) {
	path := writeFile(t, "envgate.json5", `{
		// comments and trailing commas are fine
		environment: "Pendulum-v0",
		envConfigs: { pendulum: { g: 9.81 } },
		gateway: { rateLimit: { perSecond: 50, burst: 10 } },
		log: { level: "debug" },
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pendulum", cfg.Environment)
	assert.Equal(t, 50.0, cfg.Gateway.RateLimit.PerSecond)
	assert.Equal(t, 10, cfg.Gateway.RateLimit.Burst)
	assert.Equal(t, 1<<20, cfg.Gateway.MaxLineBytes)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	raw, err := cfg.EnvDefaults("pendulum")
	require.NoError(t, err)
	assert.JSONEq(t, `{"g": 9.81}`, string(raw))

	raw, err = cfg.EnvDefaults("rps")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "envgate.yaml", `
environment: rps_v2
envConfigs:
  rps:
    max_cycles: 5
log:
  format: json
telemetry:
  enabled: true
  endpoint: localhost:4317
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rps", cfg.Environment)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.NoError(t, cfg.Validate())

	raw, err := cfg.EnvDefaults("rps")
	require.NoError(t, err)
	assert.JSONEq(t, `{"max_cycles": 5}`, string(raw))
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load(writeFile(t, "bad.json5", `{environment: `))
	assert.ErrorContains(t, err, "parse config")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("ENVGATE_ENV", "PENDULUM")
	t.Setenv("ENVGATE_LOG_LEVEL", "warn")
	t.Setenv("ENVGATE_RATE_LIMIT", "2.5")
	t.Setenv("ENVGATE_RATE_BURST", "4")
	t.Setenv("ENVGATE_OTEL_ENABLED", "true")
	t.Setenv("ENVGATE_OTEL_ENDPOINT", "collector:4318")
	t.Setenv("ENVGATE_OTEL_PROTOCOL", "http")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "pendulum", cfg.Environment)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2.5, cfg.Gateway.RateLimit.PerSecond)
	assert.Equal(t, 4, cfg.Gateway.RateLimit.Burst)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "http", cfg.Telemetry.Protocol)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_BadValues(t *testing.T) {
	t.Setenv("ENVGATE_MAX_LINE_BYTES", "lots")
	t.Setenv("ENVGATE_OTEL_ENABLED", "maybe")

	err := Default().ApplyEnv()
	assert.ErrorContains(t, err, "ENVGATE_MAX_LINE_BYTES")
	assert.ErrorContains(t, err, "ENVGATE_OTEL_ENABLED")
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "ENVGATE_TEST_DOTENV=from-file\n")
	t.Setenv("ENVGATE_TEST_DOTENV", "")
	os.Unsetenv("ENVGATE_TEST_DOTENV")

	got := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path)
	assert.Equal(t, path, got)
	assert.Equal(t, "from-file", os.Getenv("ENVGATE_TEST_DOTENV"))
	assert.Empty(t, LoadDotEnv(filepath.Join(t.TempDir(), "none.env")))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Environment = ""
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Gateway.MaxLineBytes = -1
	cfg.Gateway.RateLimit.Burst = -3
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Protocol = "carrier-pigeon"
	cfg.Telemetry.SampleRatio = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"environment", "log.level", "log.format", "maxLineBytes", "rateLimit", "telemetry.endpoint", "telemetry.protocol", "telemetry.sampleRatio"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNormalizeEnvName(t *testing.T) {
	tests := map[string]string{
		"rps":          "rps",
		"rps_v2":       "rps",
		" Pendulum-v0": "pendulum",
		"My Env!":      "myenv",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeEnvName(in), in)
	}
}
