package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for both services.
type Config struct {
	Port          string
	KafkaBroker   string
	EventsTopic   string
	MetricsTopic  string
	ConsumerGroup string
	MongoURI      string
	MongoDatabase string
	RedisURL      string
	MaxRetries    int
}

// Load reads configuration from environment variables. Every value has
// a local-development default, matching the way the services are run
// alongside docker-compose Kafka/Mongo/Redis.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "3001"),
		KafkaBroker:   getEnv("KAFKA_BROKER", "localhost:9092"),
		EventsTopic:   getEnv("EVENTS_TOPIC", "ecommerce-events"),
		MetricsTopic:  getEnv("METRICS_TOPIC", "analytics-metrics"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "analytics-processors"),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "ecommerce-analytics"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		MaxRetries:    getEnvInt("PROCESSOR_MAX_RETRIES", 3),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
