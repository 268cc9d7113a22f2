package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// unset variables are indistinguishable from empty numeric/bool ones
	for _, k := range []string{"DATABASE_URL", "SEED", "AUTH_RATE_PER_MINUTE", "AUTH_BURST", "CHAOS_SAMPLE_INTERVAL"} {
		t.Setenv(k, "")
	}
	t.Setenv("ADDR", ":8080")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_EXPORTER", "stdout")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.Seed)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.AuthRatePerMinute)
	assert.Equal(t, 100*time.Millisecond, cfg.ChaosSampleInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("SEED", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_EXPORTER", "OTEL")
	t.Setenv("AUTH_BURST", "10")
	t.Setenv("CHAOS_SAMPLE_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.False(t, cfg.Seed)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "otel", cfg.LogExporter)
	assert.Equal(t, 10, cfg.AuthBurst)
	assert.Equal(t, 250*time.Millisecond, cfg.ChaosSampleInterval)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"SEED":                  "maybe",
		"LOG_LEVEL":             "loud",
		"LOG_EXPORTER":          "kafka",
		"AUTH_BURST":            "-1",
		"AUTH_RATE_PER_MINUTE":  "x",
		"CHAOS_SAMPLE_INTERVAL": "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
