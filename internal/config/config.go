package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr string

	// Backend Configuration
	BackendURL string
	ModelName  string

	// Telemetry Configuration
	LogPath        string
	QueueSize      int
	SampleInterval time.Duration
	WarmupSettle   time.Duration

	// Monitoring Configuration (disabled when NatsURL is empty)
	NatsURL       string
	StatsInterval time.Duration

	// Data Directory Configuration
	DataDir string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Could not load env file", "file", envFile, "error", err)
		} else {
			slog.Info("Environment loaded", "file", envFile)
		}
	}

	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8090"),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:11434"),
		ModelName:      getEnv("MODEL_NAME", "llama3"),
		LogPath:        getEnv("TELEMETRY_LOG_PATH", "data/telemetry.csv"),
		QueueSize:      getEnvInt("TELEMETRY_QUEUE_SIZE", 256),
		SampleInterval: getEnvDuration("SAMPLE_INTERVAL", "100ms"),
		WarmupSettle:   getEnvDuration("WARMUP_SETTLE", "2s"),
		NatsURL:        getEnv("NATS_URL", ""),
		StatsInterval:  getEnvDuration("STATS_INTERVAL", "10s"),
		DataDir:        getEnv("DATA_DIR", "data"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
