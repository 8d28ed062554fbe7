package utils

import (
	"os"
	"strconv"
	"strings"

	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

func GetEnv(key, defaultValue string, log *logger.Logger) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		if log != nil {
			log.Debug("Env var not set, using default", "key", key, "default", defaultValue)
		}
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int, log *logger.Logger) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		if log != nil {
			log.Warn("Env var is not an int, using default", "key", key, "value", raw, "default", defaultValue)
		}
		return defaultValue
	}
	return parsed
}

func GetEnvAsFloat(key string, defaultValue float64, log *logger.Logger) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if log != nil {
			log.Warn("Env var is not a float, using default", "key", key, "value", raw, "default", defaultValue)
		}
		return defaultValue
	}
	return parsed
}
