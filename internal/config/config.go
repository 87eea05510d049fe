package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN         string
	Environment   string
	LogLevel      string
	HTTPAddr      string
	TelegramToken string

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// Максимальный возраст initData мини-приложения
	InitDataTTL time.Duration

	RedisAddr      string
	RedisEventsKey string

	Timezone string
	Location *time.Location

	// Параметры окна посещаемости
	OpenBefore    time.Duration
	CloseAfter    time.Duration
	LateThreshold time.Duration
	SweepInterval time.Duration
	PlanCron      string

	AdminTelegramIDs []int64
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv собирает конфиг из произвольного источника переменных
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		DBDSN:          env("DB_DSN", ""),
		Environment:    env("ENV", "development"),
		LogLevel:       env("LOG_LEVEL", ""),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		TelegramToken:  env("TELEGRAM_TOKEN", ""),
		JWTSecret:      env("JWT_SECRET", ""),
		JWTIssuer:      env("JWT_ISSUER", "attendance"),
		RedisAddr:      env("REDIS_ADDR", ""),
		RedisEventsKey: env("REDIS_EVENTS_KEY", "attendance:lesson-events"),
		Timezone:       env("TIMEZONE", "Asia/Tashkent"),
		PlanCron:       env("PLAN_CRON", "5 0 * * *"),
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		if cfg.Environment == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.OpenBefore, err = minutesEnv(env, "OPEN_BEFORE_MINUTES", 5); err != nil {
		return nil, err
	}
	if cfg.CloseAfter, err = minutesEnv(env, "CLOSE_AFTER_MINUTES", 45); err != nil {
		return nil, err
	}
	if cfg.LateThreshold, err = minutesEnv(env, "LATE_THRESHOLD_MINUTES", 15); err != nil {
		return nil, err
	}

	cfg.JWTTTL, err = time.ParseDuration(env("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse JWT_TTL: %w", err)
	}

	cfg.InitDataTTL, err = time.ParseDuration(env("INIT_DATA_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse INIT_DATA_TTL: %w", err)
	}

	cfg.SweepInterval, err = time.ParseDuration(env("SWEEP_INTERVAL", "60s"))
	if err != nil {
		return nil, fmt.Errorf("parse SWEEP_INTERVAL: %w", err)
	}

	cfg.AdminTelegramIDs, err = parseIDs(env("ADMIN_TELEGRAM_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("parse ADMIN_TELEGRAM_IDS: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность порогов окна
func (c *Config) Validate() error {
	if c.OpenBefore < 0 || c.CloseAfter <= 0 || c.LateThreshold < 0 {
		return fmt.Errorf("window thresholds must be non-negative and CLOSE_AFTER must be positive")
	}
	if c.LateThreshold >= c.CloseAfter {
		return fmt.Errorf("LATE_THRESHOLD (%s) must be less than CLOSE_AFTER (%s)", c.LateThreshold, c.CloseAfter)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	// Тик не должен быть длиннее самого короткого порога, иначе окно можно пропустить
	smallest := c.CloseAfter
	for _, d := range []time.Duration{c.OpenBefore, c.LateThreshold} {
		if d > 0 && d < smallest {
			smallest = d
		}
	}
	if c.SweepInterval > smallest {
		return fmt.Errorf("SWEEP_INTERVAL (%s) must not exceed the smallest threshold (%s)", c.SweepInterval, smallest)
	}
	return nil
}

// IsAdmin проверяет, входит ли Telegram ID в список администраторов
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminTelegramIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func minutesEnv(env func(string, string) string, key string, fallback int) (time.Duration, error) {
	raw := env(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(n) * time.Minute, nil
}

func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
