package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config holds all the configuration for the application
type Config struct {
	DeepseekAPIKey string
	DatabasePath   string
	ListenAddr     string
	AdminSecret    string

	// Optional Telegram notifier. Enabled when both values are set.
	BotToken     string
	NotifyChatID int64
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	deepseekAPIKey := os.Getenv("DEEPSEEK_API_KEY")
	if deepseekAPIKey == "" {
		return nil, errors.New("DEEPSEEK_API_KEY environment variable is required")
	}

	adminSecret := os.Getenv("ADMIN_SECRET")
	if adminSecret == "" {
		return nil, errors.New("ADMIN_SECRET environment variable is required")
	}

	// Set database path with default
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/zahlbot.db"
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	var chatID int64
	if raw := os.Getenv("NOTIFY_CHAT_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_CHAT_ID: %w", err)
		}
		chatID = parsed
	}

	return &Config{
		DeepseekAPIKey: deepseekAPIKey,
		DatabasePath:   dbPath,
		ListenAddr:     listenAddr,
		AdminSecret:    adminSecret,
		BotToken:       os.Getenv("BOT_TOKEN"),
		NotifyChatID:   chatID,
	}, nil
}

// TelegramEnabled reports whether the optional Telegram notifier is configured
func (c *Config) TelegramEnabled() bool {
	return c.BotToken != "" && c.NotifyChatID != 0
}
