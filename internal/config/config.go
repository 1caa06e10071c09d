package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath      string `envconfig:"DB_PATH" default:"./data/birthdays.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	TelegramToken   string `envconfig:"TELEGRAM_BOT_TOKEN"`        // empty disables the bot
	FirebaseCreds   string `envconfig:"FIREBASE_CREDENTIALS_PATH"` // empty disables web push
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`            // empty uses canned wishes
	GeminiModel     string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	NotificationURL string `envconfig:"NOTIFICATION_LINK"` // absolute https URL opened on click
	PDFFontPath     string `envconfig:"PDF_FONT_PATH"`     // UTF-8 TrueType font for PDF export

	CronSecret       string        `envconfig:"CRON_SECRET"`
	CheckInterval    time.Duration `envconfig:"CHECK_INTERVAL" default:"1m"`
	SchedulerEnabled bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads an optional .env file and then environment variables into Config.
// Variables already present in the environment take precedence over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	// Notification times match to the minute, so every minute must be checked.
	if c.CheckInterval < time.Second || c.CheckInterval > time.Minute {
		return fmt.Errorf("CHECK_INTERVAL must be between 1s and 1m, got %s", c.CheckInterval)
	}
	return nil
}
