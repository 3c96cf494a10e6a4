package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Bot       BotConfig
	Payment   PaymentConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Server    ServerConfig
	Broadcast BroadcastConfig
}

type BotConfig struct {
	Token           string
	AdminIDs        []int64
	SupportUsername string
	WebAppURL       string
	PollTimeout     time.Duration
}

type PaymentConfig struct {
	SBPPhone     string
	SBPBank      string
	SBPRecipient string
}

type DatabaseConfig struct {
	Path string
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type BroadcastConfig struct {
	SendDelay time.Duration
}

func Load() *Config {
	return &Config{
		Bot: BotConfig{
			Token:           getEnv("BOT_TOKEN", ""),
			AdminIDs:        getEnvInt64Slice("ADMIN_IDS"),
			SupportUsername: getEnv("SUPPORT_USERNAME", "keyflow_support"),
			WebAppURL:       getEnv("WEBAPP_URL", "https://keyflow.example/app"),
			PollTimeout:     time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Payment: PaymentConfig{
			SBPPhone:     getEnv("SBP_PHONE", ""),
			SBPBank:      getEnv("SBP_BANK", ""),
			SBPRecipient: getEnv("SBP_RECIPIENT", ""),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "keyflow.db"),
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_ORDERS", "order-events"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Broadcast: BroadcastConfig{
			SendDelay: time.Duration(getEnvInt("BROADCAST_DELAY_MS", 50)) * time.Millisecond,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvStringSlice parses a comma-separated list, e.g. KAFKA_BROKERS=a:9092,b:9092.
func getEnvStringSlice(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

// getEnvInt64Slice parses a comma-separated list of ids, e.g. ADMIN_IDS=1,2.
func getEnvInt64Slice(key string) []int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
