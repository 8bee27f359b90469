package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken       string
	DatabaseURL         string
	ReminderChatID      int64
	DefaultReminderTime string // "HH:MM", used when no time has ever been set
	CronSpecWatchdog    string // daily reschedule safety net
	ScheduleFeedURL     string // published schedule feed (JSON)
	VAPIDPublicKey      string // web push; channel disabled when keys are empty
	VAPIDPrivateKey     string
	VAPIDContactEmail   string
	LogLevel            string
	Environment         string
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
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	chatIDStr := os.Getenv("REMINDER_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("REMINDER_CHAT_ID is not set")
	}
	cfg.ReminderChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_CHAT_ID: %w", err)
	}

	cfg.DefaultReminderTime = os.Getenv("DEFAULT_REMINDER_TIME")
	if cfg.DefaultReminderTime == "" {
		cfg.DefaultReminderTime = "07:00"
	}

	cfg.CronSpecWatchdog = os.Getenv("CRON_SPEC_WATCHDOG")
	if cfg.CronSpecWatchdog == "" {
		cfg.CronSpecWatchdog = "0 12 * * *" // Default: noon daily
	}

	cfg.ScheduleFeedURL = os.Getenv("SCHEDULE_FEED_URL")
	if cfg.ScheduleFeedURL == "" {
		cfg.ScheduleFeedURL = "https://gist.githubusercontent.com/realkinglion/4859d37c601e6f3b3a07cc049356234b/raw/schedule.json"
	}

	cfg.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	cfg.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	cfg.VAPIDContactEmail = os.Getenv("VAPID_CONTACT_EMAIL")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}

// WebPushEnabled reports whether the web push channel is fully configured.
func (c *AppConfig) WebPushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != "" && c.VAPIDContactEmail != ""
}
