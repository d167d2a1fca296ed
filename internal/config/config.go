package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	MongoURI string
	RedisURL string

	// Detection
	DetectionInterval time.Duration // global sweep cadence for owners without a custom cron
	DetectionRunLimit int           // manual runs per owner per minute

	// Lifecycle
	WatchdogThreshold time.Duration // accepted/executing older than this is reconciled or failed
	CompletionWindow  time.Duration // lookback for "completed per entity" dependency checks

	// Sweeps
	ExpireSweepInterval   time.Duration
	UnsnoozeSweepInterval time.Duration
	WatchdogInterval      time.Duration

	// Dispatch
	MirrorEventsToRedis bool // also publish execution events on a Redis channel

	// Optional org-wide detector defaults (YAML, hot-reloaded)
	DefaultsFile string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3001"),
		MongoURI: getEnv("MONGODB_URI", ""),
		RedisURL: getEnv("REDIS_URL", ""),

		DetectionInterval: getDurationEnv("DETECTION_INTERVAL", 15*time.Minute),
		DetectionRunLimit: getIntEnv("DETECTION_RUN_LIMIT", 2),

		WatchdogThreshold: getDurationEnv("WATCHDOG_THRESHOLD", 10*time.Minute),
		CompletionWindow:  getDurationEnv("COMPLETION_WINDOW", 7*24*time.Hour),

		ExpireSweepInterval:   getDurationEnv("EXPIRE_SWEEP_INTERVAL", 5*time.Minute),
		UnsnoozeSweepInterval: getDurationEnv("UNSNOOZE_SWEEP_INTERVAL", 5*time.Minute),
		WatchdogInterval:      getDurationEnv("WATCHDOG_INTERVAL", 2*time.Minute),

		MirrorEventsToRedis: getBoolEnv("MIRROR_EVENTS_TO_REDIS", true),

		DefaultsFile: getEnv("AUTOPILOT_DEFAULTS_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
