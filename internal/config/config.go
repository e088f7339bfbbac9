package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Order submission modes. The backend revisions disagree on whether a confirmed
// order is sent anywhere, so it is a deployment choice.
const (
	OrderSubmitNone  = "none"
	OrderSubmitLinks = "links"
)

// Config holds the configuration for the application.
type Config struct {
	AppEnv   string
	LogLevel string

	MealAPIURL  string
	HTTPTimeout time.Duration

	// Discovery
	RefillThreshold int
	SelectionNudge  int
	ResolveImages   bool

	// Ordering
	DeliveryOffset   time.Duration
	OrderSubmitMode  string
	OrderSubmitPath  string
	RestockDelay     time.Duration
	ReminderSchedule string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
	Port                   string
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	mealAPIURL := os.Getenv("MEAL_API_URL")
	if mealAPIURL == "" {
		return nil, fmt.Errorf("MEAL_API_URL environment variable not set")
	}

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", ""),
		MealAPIURL:       strings.TrimRight(mealAPIURL, "/"),
		OrderSubmitMode:  getEnv("ORDER_SUBMIT_MODE", OrderSubmitNone),
		OrderSubmitPath:  getEnv("ORDER_SUBMIT_PATH", "/groceries"),
		ReminderSchedule: getEnv("REMINDER_SCHEDULE", "@every 6h"),
		Port:             getEnv("PORT", "8080"),

		// Telegram Config (Optional for CLI, required for Bot)
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.RefillThreshold, err = getInt("REFILL_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.SelectionNudge, err = getInt("SELECTION_NUDGE", 7); err != nil {
		return nil, err
	}
	if cfg.ResolveImages, err = getBool("RESOLVE_IMAGES", false); err != nil {
		return nil, err
	}
	if cfg.DeliveryOffset, err = getDuration("DELIVERY_OFFSET", 48*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RestockDelay, err = getDuration("RESTOCK_DELAY", 5*time.Second); err != nil {
		return nil, err
	}

	switch cfg.OrderSubmitMode {
	case OrderSubmitNone, OrderSubmitLinks:
	default:
		return nil, fmt.Errorf("ORDER_SUBMIT_MODE must be %q or %q, got %q", OrderSubmitNone, OrderSubmitLinks, cfg.OrderSubmitMode)
	}

	if raw := os.Getenv("TELEGRAM_ALLOWED_USER_IDS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", part, err)
			}
			cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
		}
	}
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID %q: %w", raw, err)
		}
		cfg.AdminTelegramID = id
	}

	return cfg, nil
}

// RequireTelegram checks the settings the bot cannot start without.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
