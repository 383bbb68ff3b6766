package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	cfg := Config{RefreshToken: "abc123"}
	cfg.applyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, 3600, cfg.ScanIntervalSeconds)
	assert.Equal(t, 24, cfg.SlowPollIntervalHours)
	assert.Equal(t, 30, cfg.OptimisticGraceSeconds)
	assert.Equal(t, 5, cfg.DebounceSeconds)
	assert.Equal(t, 100, cfg.ThrottleThreshold)
	assert.Equal(t, 25.0, cfg.BoostTemperature)
	assert.Equal(t, "00:00", cfg.ReducedPollingStart)
	assert.Equal(t, "06:00", cfg.ReducedPollingEnd)
	assert.Equal(t, 7200, cfg.ReducedPollingIntervalSeconds)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, "tado-bridge", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "homeassistant", cfg.MQTT.DiscoveryPrefix)
	assert.Equal(t, "tado_bridge.", cfg.DDNamespace)
}

func TestDefaultsDoNotOverrideExplicitValues(t *testing.T) {
	cfg := Config{
		RefreshToken:        "abc123",
		ScanIntervalSeconds: 600,
		MQTT:                MQTT{TopicPrefix: "heating"},
	}
	cfg.applyDefaults()

	assert.Equal(t, 600, cfg.ScanIntervalSeconds)
	assert.Equal(t, "heating", cfg.MQTT.TopicPrefix)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	assert.NotPanics(t, func() { cfg.validate() })
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"missing refresh token", func(cfg *Config) { cfg.RefreshToken = "" }},
		{"scan interval too small", func(cfg *Config) { cfg.ScanIntervalSeconds = 10 }},
		{"slow poll interval too small", func(cfg *Config) { cfg.SlowPollIntervalHours = 0; cfg.applyDefaults(); cfg.SlowPollIntervalHours = -1 }},
		{"negative grace period", func(cfg *Config) { cfg.OptimisticGraceSeconds = -5 }},
		{"malformed window start", func(cfg *Config) { cfg.ReducedPollingStart = "midnight" }},
		{"window hour out of range", func(cfg *Config) { cfg.ReducedPollingEnd = "25:00" }},
		{"datadog without agent address", func(cfg *Config) { cfg.EnableDatadog = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Panics(t, func() { cfg.validate() })
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLogLevel("debug").String())
	assert.Equal(t, "warn", parseLogLevel("warn").String())
	assert.Equal(t, "error", parseLogLevel("error").String())
	assert.Equal(t, "info", parseLogLevel("anything-else").String())
}

func TestValidClockTime(t *testing.T) {
	assert.True(t, validClockTime("06:30"))
	assert.True(t, validClockTime("0:00"))
	assert.False(t, validClockTime("24:00"))
	assert.False(t, validClockTime("12:60"))
	assert.False(t, validClockTime("noon"))
}
