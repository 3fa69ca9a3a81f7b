package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config собирает все настройки приложения из переменных окружения.
type Config struct {
	Port string

	DatabaseDSN string

	RedisHost     string
	RedisPassword string
	KafkaBroker   string
	ElasticURL    string
	SentryDSN     string

	// Часовой пояс, в котором работают залы. Все слоты интерпретируются
	// и сравниваются в этом поясе.
	Location *time.Location

	// Горизонт записи: насколько далеко вперёд можно бронировать.
	BookingHorizon time.Duration
	// Длительность тренировки для проверки пересечений слотов.
	SessionDuration time.Duration
	// Время после начала тренировки, по истечении которого она
	// считается завершённой. Намеренно больше SessionDuration.
	CompletionGrace time.Duration

	// Рабочие часы залов: запись возможна с OpenHour до CloseHour.
	OpenHour  int
	CloseHour int

	SweepInterval time.Duration
	AuthTokenTTL  time.Duration
}

func Load() (*Config, error) {
	tzName := getEnv("APP_TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		DatabaseDSN: fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			getEnv("DB_NAME", "kachalka"),
			getEnv("DB_PORT", "5432"),
		),
		RedisHost:       getEnv("REDIS_HOST", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		KafkaBroker:     getEnv("KAFKA_BROKER", "localhost:9092"),
		ElasticURL:      getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		Location:        loc,
		BookingHorizon:  time.Duration(getEnvInt("BOOKING_HORIZON_DAYS", 30)) * 24 * time.Hour,
		SessionDuration: getEnvDuration("SESSION_DURATION", time.Hour),
		CompletionGrace: getEnvDuration("COMPLETION_GRACE", 90*time.Minute),
		OpenHour:        getEnvInt("OPEN_HOUR", 8),
		CloseHour:       getEnvInt("CLOSE_HOUR", 21),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		AuthTokenTTL:    getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
	}

	if cfg.OpenHour < 0 || cfg.CloseHour > 24 || cfg.OpenHour >= cfg.CloseHour {
		return nil, fmt.Errorf("invalid operating hours: %d-%d", cfg.OpenHour, cfg.CloseHour)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
