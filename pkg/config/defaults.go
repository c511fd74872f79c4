// Package config provides centralized default values for the display engine.
package config

import (
	"bufio"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		file, err := os.Open(".env")
		if err != nil {
			return
		}
		defer file.Close()

		log.Println("Loading configuration overrides from .env file...")
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())

			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%v (default: %v)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration. There is deliberately no write timeout: SSE
	// streams are long-lived and a fixed deadline would sever them.
	Port              string
	ServerReadTimeout time.Duration
	ServerIdleTimeout time.Duration

	// Transition Configuration
	FadeFastDuration time.Duration
	FadeSlowDuration time.Duration

	// Preload / Metadata
	PreloadTimeout      time.Duration
	MetadataTimeout     time.Duration
	MetadataCacheTTL    time.Duration
	MetadataServiceURL  string
	MaxPreloadBytes     int
	PollerMinIntervalMS int

	// Default container geometry used until a surface reports its size
	DefaultContainerWidth  float64
	DefaultContainerHeight float64

	// SSE Configuration
	MaxSSEConnections           int
	MaxDisplayConnections       int
	SSEConnectionTimeoutMinutes int
	SSEHeartbeatIntervalSeconds int
	SSEInactivityTimeoutMinutes int

	// Durable state
	StateDBPath string

	// Operator alerts
	AlertFailureThreshold int
	AlertEmailTo          string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Transition Configuration
	FadeFastDuration = getEnvDuration("FADE_FAST_DURATION", 2*time.Second)
	FadeSlowDuration = getEnvDuration("FADE_SLOW_DURATION", 10*time.Second)

	// Preload / Metadata
	PreloadTimeout = getEnvDuration("PRELOAD_TIMEOUT", 30*time.Second)
	MetadataTimeout = getEnvDuration("METADATA_TIMEOUT", 10*time.Second)
	MetadataCacheTTL = getEnvDuration("METADATA_CACHE_TTL", 15*time.Minute)
	MetadataServiceURL = getEnvString("METADATA_SERVICE_URL", "")
	MaxPreloadBytes = getEnvInt("MAX_PRELOAD_BYTES", 64*1024*1024)
	PollerMinIntervalMS = getEnvInt("POLLER_MIN_INTERVAL_MS", 1000)

	// Default container geometry
	DefaultContainerWidth = getEnvFloat("DEFAULT_CONTAINER_WIDTH", 1920)
	DefaultContainerHeight = getEnvFloat("DEFAULT_CONTAINER_HEIGHT", 1080)

	// SSE Configuration
	MaxSSEConnections = getEnvInt("MAX_SSE_CONNECTIONS", 200)
	MaxDisplayConnections = getEnvInt("MAX_DISPLAY_CONNECTIONS", 3)
	SSEConnectionTimeoutMinutes = getEnvInt("SSE_CONNECTION_TIMEOUT_MINUTES", 30)
	SSEHeartbeatIntervalSeconds = getEnvInt("SSE_HEARTBEAT_INTERVAL_SECONDS", 30)
	SSEInactivityTimeoutMinutes = getEnvInt("SSE_INACTIVITY_TIMEOUT_MINUTES", 5)

	// Durable state
	StateDBPath = getEnvString("STATE_DB_PATH", "screen-machine.db")

	// Operator alerts
	AlertFailureThreshold = getEnvInt("ALERT_FAILURE_THRESHOLD", 3)
	AlertEmailTo = getEnvString("ALERT_EMAIL_TO", "")
}
