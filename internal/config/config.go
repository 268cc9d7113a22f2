// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting of the API server and the chaos runner.
type Config struct {
	Addr         string
	DatabaseURL  string
	Seed         bool
	ServiceName  string
	LogLevel     slog.Level
	LogExporter  string
	OTLPEndpoint string

	AuthRatePerMinute int
	AuthBurst         int

	ShutdownTimeout time.Duration

	ChaosTargetURL      string
	ChaosSampleInterval time.Duration
	ChaosConcurrency    int
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset.
func Load() (Config, error) {
	cfg := Config{
		Addr:         getEnv("ADDR", ":8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		ServiceName:  getEnv("SERVICE_NAME", "infobooks"),
		LogExporter:  strings.ToLower(getEnv("LOG_EXPORTER", "stdout")),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		ChaosTargetURL: getEnv("CHAOS_TARGET_URL", ""),
	}

	var err error
	if cfg.Seed, err = getBool("SEED", true); err != nil {
		return Config{}, err
	}
	if err = cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.AuthRatePerMinute, err = getInt("AUTH_RATE_PER_MINUTE", 5); err != nil {
		return Config{}, err
	}
	if cfg.AuthBurst, err = getInt("AUTH_BURST", 5); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ChaosSampleInterval, err = getDuration("CHAOS_SAMPLE_INTERVAL", 100*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.ChaosConcurrency, err = getInt("CHAOS_CONCURRENCY", 50); err != nil {
		return Config{}, err
	}

	switch cfg.LogExporter {
	case "stdout", "otel":
	default:
		return Config{}, fmt.Errorf("invalid LOG_EXPORTER %q: want stdout or otel", cfg.LogExporter)
	}
	if cfg.AuthRatePerMinute <= 0 || cfg.AuthBurst <= 0 {
		return Config{}, fmt.Errorf("AUTH_RATE_PER_MINUTE and AUTH_BURST must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
