package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken        string
	DatabaseURL          string
	SuperadminTelegramID int64
	DefaultTimezone      string
	LogLevel             string
	Environment          string
	// The cron specs fire hourly sweeps by default; the per-user local send
	// hours below decide when a sweep actually dispatches for a given user.
	CronSpecDaily      string
	CronSpecWeekly     string
	DailySendHour      int
	WeeklySendHour     int
	WeeklySendWeekday  time.Weekday
	UpcomingWindowDays int
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite://birthday_bot.db"
	}

	superadminStr := os.Getenv("SUPERADMIN_TELEGRAM_ID")
	if superadminStr == "" {
		return nil, fmt.Errorf("SUPERADMIN_TELEGRAM_ID is not set")
	}
	cfg.SuperadminTelegramID, err = strconv.ParseInt(superadminStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SUPERADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.DefaultTimezone = os.Getenv("DEFAULT_TIMEZONE")
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecDaily = os.Getenv("CRON_SPEC_DAILY")
	if cfg.CronSpecDaily == "" {
		cfg.CronSpecDaily = "0 * * * *" // hourly sweep; covers every timezone's 09:00
	}
	cfg.CronSpecWeekly = os.Getenv("CRON_SPEC_WEEKLY")
	if cfg.CronSpecWeekly == "" {
		cfg.CronSpecWeekly = "15 * * * *" // hourly sweep, offset from the daily one
	}

	cfg.DailySendHour, err = intFromEnv("DAILY_SEND_HOUR", 9)
	if err != nil {
		return nil, err
	}
	cfg.WeeklySendHour, err = intFromEnv("WEEKLY_SEND_HOUR", 8)
	if err != nil {
		return nil, err
	}

	weekday, err := intFromEnv("WEEKLY_SEND_WEEKDAY", int(time.Sunday))
	if err != nil {
		return nil, err
	}
	if weekday < 0 || weekday > 6 {
		return nil, fmt.Errorf("WEEKLY_SEND_WEEKDAY must be 0 (Sunday) through 6 (Saturday)")
	}
	cfg.WeeklySendWeekday = time.Weekday(weekday)

	cfg.UpcomingWindowDays, err = intFromEnv("UPCOMING_WINDOW_DAYS", 7)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
