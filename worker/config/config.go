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
	Env               string
	WorkerCount       int
	JobTimeout        time.Duration
	ScratchDir        string
	DefaultResolution string
	DefaultBackground string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
}

// Load reads the environment, after merging a .env file if one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:               getEnv("ENV", "production"),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 8),
		JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 0),
		ScratchDir:        getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "canvasConverter")),
		DefaultResolution: getEnv("DEFAULT_RESOLUTION", "1080x1080"),
		DefaultBackground: getEnv("DEFAULT_BACKGROUND", "f2f2f2"),
		KafkaBrokers:      getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "image_batches"),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "canvas-worker"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
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

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
