package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Env           string
	KafkaBrokers  []string
	KafkaTopic    string
	RedisAddr     string
	MaxUploadSize int64
	ScratchDir    string
	WorkerCount   int
	JobTimeout    time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("SERVICE_PORT", "8081"),
		Env:           getEnv("ENV", "development"),
		KafkaBrokers:  getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "image_batches"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_SIZE", 100*1024*1024),
		ScratchDir:    getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "canvasConverter")),
		WorkerCount:   int(getEnvAsInt64("WORKER_COUNT", 8)),
		JobTimeout:    getEnvAsDuration("JOB_TIMEOUT", 2*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value. An unset key yields nil.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
