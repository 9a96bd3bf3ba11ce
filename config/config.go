package config

import (
	"os"
	"strconv"
	"time"
)

// Service settings.
var (
	ApiPort        = GetEnv("API_PORT", "8097")
	KafkaBroker    = GetEnv("KAFKA_BROKER", "localhost:19092")
	Topic          = GetEnv("KAFKA_TOPIC", "eventsource")
	DLQTopic       = GetEnv("KAFKA_DLQ_TOPIC", "")
	Partitions     = GetEnvInt("KAFKA_PARTITIONS", 10)
	PublishTimeout = GetEnvDuration("PUBLISH_TIMEOUT", 10*time.Second)
	PublishWorkers = GetEnvInt("PUBLISH_WORKERS", 8)
	PaddingBytes   = GetEnvInt("EVENT_PADDING_BYTES", 10*1024)
	NoiseInterval  = GetEnvDuration("NOISE_INTERVAL", 3*time.Second)
	MongoURI       = GetEnv("MONGO_URI", "")
	MongoDatabase  = GetEnv("MONGO_DATABASE", "eventsource")
	ServiceName    = GetEnv("OTEL_SERVICE_NAME", "eventsource")
	ShutdownGrace  = GetEnvDuration("SHUTDOWN_GRACE", 10*time.Second)
)

// Integration harness settings. These correspond to the eventsource.host and
// kafka.host project properties forwarded by the pipeline.
var (
	EventsourceHost = GetEnv("EVENTSOURCE_HOST", "localhost:8097")
	KafkaHost       = GetEnv("KAFKA_HOST", "localhost:19092")
)

// GetEnv returns the value of the environment variable or a default value
func GetEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// GetEnvInt parses an integer variable. Unparseable or negative values fall
// back to the default.
func GetEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return defaultVal
}

// GetEnvDuration accepts Go duration syntax ("3s", "250ms") or a plain number
// of milliseconds.
func GetEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
