package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	CoreAPI  CoreAPIConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Cron     CronConfig
	Session  SessionConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8084)
}

type CoreAPIConfig struct {
	URL     string        // Базовый URL Core API (без /api/core)
	Timeout time.Duration // Таймаут одного запроса
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type KafkaConfig struct {
	Brokers []string // Список брокеров Kafka (формат: host:port)
	Topic   string   // Топик для событий RATING_SUBMITTED
}

type JWTConfig struct {
	Secret string // Общий секрет с Core API для проверки JWT токенов
}

type CronConfig struct {
	CoreHealth string // Расписание проверки Core API
}

type SessionConfig struct {
	TTL              time.Duration // Время жизни неактивной сессии оценки
	ViewCacheTTL     time.Duration // Время жизни кеша списков оценок и статистики
	StaleSubmitAfter time.Duration // Через сколько зависшая отправка возвращается к редактированию
}

type LogConfig struct {
	Level        string
	LogstashAddr string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8084"),
		},
		CoreAPI: CoreAPIConfig{
			URL:     getEnv("CORE_API_URL", "http://localhost:8000"),
			Timeout: time.Duration(getEnvInt("CORE_API_TIMEOUT_SEC", 10)) * time.Second,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 3), // Отдельная БД для сессий оценки
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "rating_service"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "rating_events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
		Cron: CronConfig{
			CoreHealth: getEnv("CORE_HEALTH_SCHEDULE", "@every 30s"),
		},
		Session: SessionConfig{
			TTL:              getEnvDuration("SESSION_TTL", 30*time.Minute),
			ViewCacheTTL:     getEnvDuration("VIEW_CACHE_TTL", 5*time.Minute),
			StaleSubmitAfter: getEnvDuration("SESSION_STALE_SUBMIT_AFTER", time.Minute),
		},
		Log: LogConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			LogstashAddr: getEnv("LOGSTASH_ADDR", ""),
		},
	}

	if cfg.Session.TTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.Session.TTL)
	}
	if cfg.Session.StaleSubmitAfter <= cfg.CoreAPI.Timeout {
		return nil, fmt.Errorf("SESSION_STALE_SUBMIT_AFTER must exceed CORE_API_TIMEOUT_SEC, got %s", cfg.Session.StaleSubmitAfter)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}

	return cfg, nil
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// DSN возвращает строку подключения к PostgreSQL в формате libpq
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Address возвращает адрес Redis в формате host:port
func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает значение переменной окружения как int
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration понимает формат time.ParseDuration (30m, 1h)
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// splitList разбирает список через запятую: "kafka1:9092,kafka2:9092"
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
