package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN       string
	RedisAddr   string
	HTTPAddr    string
	Environment string

	MigrationsPath string

	DefaultDayCapacity    int
	RescheduleHorizonDays int
	VotingWindowHours     int
	SessionTTLBufferHours int

	TelegramToken  string
	TelegramChatID string
}

func Load() (*Config, error) {
	// Try to load a .env file; missing is fine, plain env vars still apply.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		DBDSN:          os.Getenv("DB_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		Environment:    os.Getenv("ENV"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),

		DefaultDayCapacity:    intEnv("DEFAULT_DAY_CAPACITY", 10),
		RescheduleHorizonDays: intEnv("RESCHEDULE_HORIZON_DAYS", 30),
		VotingWindowHours:     intEnv("VOTING_WINDOW_HOURS", 24),
		SessionTTLBufferHours: intEnv("SESSION_TTL_BUFFER_HOURS", 1),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "migrations"
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	log.Printf("Config loaded\n")

	return cfg, nil
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️  %s=%q is not an integer, using default %d", name, raw, fallback)
		return fallback
	}
	return n
}
