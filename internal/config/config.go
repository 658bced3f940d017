package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	Storage StorageConfig
	DB      DBConfig
	Kafka   KafkaConfig
	Broker  BrokerConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level string
}

type StorageConfig struct {
	UploadDir string
}

type DBConfig struct {
	DSN string
}

type KafkaConfig struct {
	Brokers              []string
	MerchantCreatedTopic string
}

// BrokerConfig tunes the in-process broker used when no Kafka brokers are
// configured.
type BrokerConfig struct {
	ChannelBufferSize int
	WorkerPoolSize    int
	MaxRetries        int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		},
		DB: DBConfig{
			DSN: getEnv("DATABASE_DSN", ""),
		},
		Kafka: KafkaConfig{
			Brokers:              getSliceEnv("KAFKA_BROKERS"),
			MerchantCreatedTopic: getEnv("KAFKA_TOPIC_MERCHANT_CREATED", "merchant-created"),
		},
		Broker: BrokerConfig{
			ChannelBufferSize: getIntEnv("EVENT_CHANNEL_BUFFER_SIZE", 1000),
			WorkerPoolSize:    getIntEnv("WORKER_POOL_SIZE", 10),
			MaxRetries:        getIntEnv("MAX_RETRIES", 5),
		},
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}
